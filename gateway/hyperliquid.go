package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/market"
	"perp-trader-go/order"
)

const (
	TestnetURL = "https://api.hyperliquid-testnet.xyz"
	MainnetURL = "https://api.hyperliquid.xyz"

	defaultCallTimeout = 5 * time.Second
	// perps allow at most (6 - szDecimals) price decimals
	maxPerpPxDecimals = 6
)

// Signer produces the exchange signature for an action payload. The concrete
// implementation (key custody, EIP-712 hashing) lives outside the trading
// core; without one the client runs dry.
type Signer interface {
	Sign(action json.RawMessage, nonce int64, vault string) (json.RawMessage, error)
}

// Config for the Hyperliquid client.
type Config struct {
	BaseURL     string
	Account     string
	Vault       string
	DryRun      bool
	CallTimeout time.Duration
	RestRate    float64
	RestBurst   int
}

// HyperliquidClient implements Gateway against the Hyperliquid REST API.
// Market data comes from the public /info endpoint; authenticated actions go
// through /exchange with signatures supplied by the Signer. In dry-run mode
// actions are logged and acknowledged locally, reads stay real.
type HyperliquidClient struct {
	http    *resty.Client
	limiter RateLimiter
	cfg     Config
	signer  Signer
	log     *logger.Logger

	mu     sync.RWMutex
	assets map[string]assetMeta
}

type assetMeta struct {
	id         int
	szDecimals int
}

// NewHyperliquidClient builds the client. signer may be nil only in dry-run.
func NewHyperliquidClient(cfg Config, signer Signer, log *logger.Logger) (*HyperliquidClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = TestnetURL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.RestRate <= 0 {
		cfg.RestRate = 5
	}
	if cfg.RestBurst <= 0 {
		cfg.RestBurst = 10
	}
	if !cfg.DryRun && signer == nil {
		return nil, errors.New("hyperliquid: live mode requires a signer")
	}
	if log == nil {
		log = logger.Nop()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.CallTimeout).
		SetHeader("Content-Type", "application/json")

	return &HyperliquidClient{
		http:    httpClient,
		limiter: NewTokenBucketLimiter(cfg.RestRate, cfg.RestBurst),
		cfg:     cfg,
		signer:  signer,
		log:     log,
		assets:  make(map[string]assetMeta),
	}, nil
}

// ---- /info reads ----

type l2Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

type l2BookResp struct {
	Levels [][]l2Level `json:"levels"`
	Time   int64       `json:"time"`
}

// TopOfBook reads the L2 snapshot and returns its top.
func (c *HyperliquidClient) TopOfBook(ctx context.Context, instrument string) (market.Snapshot, error) {
	var resp l2BookResp
	if err := c.info(ctx, map[string]any{"type": "l2Book", "coin": instrument}, &resp); err != nil {
		return market.Snapshot{}, err
	}
	if len(resp.Levels) < 2 || len(resp.Levels[0]) == 0 || len(resp.Levels[1]) == 0 {
		return market.Snapshot{}, fmt.Errorf("%w: %s empty book", ErrRejected, instrument)
	}
	bid := parseFloat(resp.Levels[0][0].Px)
	ask := parseFloat(resp.Levels[1][0].Px)
	if bid <= 0 || ask <= 0 {
		return market.Snapshot{}, fmt.Errorf("%w: %s invalid top of book", ErrRejected, instrument)
	}
	ts := time.UnixMilli(resp.Time)
	if resp.Time == 0 {
		ts = time.Now()
	}
	return market.Snapshot{
		BestBid: bid,
		BestAsk: ask,
		Mid:     (bid + ask) / 2.0,
		Ts:      ts,
	}, nil
}

type clearinghouseResp struct {
	AssetPositions []struct {
		Position struct {
			Coin string `json:"coin"`
			Szi  string `json:"szi"`
		} `json:"position"`
	} `json:"assetPositions"`
}

// Position returns the signed size held on the instrument; authoritative,
// read fresh every call.
func (c *HyperliquidClient) Position(ctx context.Context, instrument string) (float64, error) {
	var resp clearinghouseResp
	if err := c.info(ctx, map[string]any{"type": "clearinghouseState", "user": c.cfg.Account}, &resp); err != nil {
		return 0, err
	}
	for _, p := range resp.AssetPositions {
		if p.Position.Coin == instrument {
			return parseFloat(p.Position.Szi), nil
		}
	}
	return 0, nil
}

type openOrder struct {
	Coin string `json:"coin"`
	Oid  int64  `json:"oid"`
}

// CancelAll cancels every resting order on the instrument.
func (c *HyperliquidClient) CancelAll(ctx context.Context, instrument string) (int, error) {
	var orders []openOrder
	if err := c.info(ctx, map[string]any{"type": "openOrders", "user": c.cfg.Account}, &orders); err != nil {
		return 0, err
	}

	var cancels []map[string]any
	meta, err := c.asset(ctx, instrument)
	if err != nil {
		return 0, err
	}
	for _, o := range orders {
		if o.Coin == instrument {
			cancels = append(cancels, map[string]any{"a": meta.id, "o": o.Oid})
		}
	}
	if len(cancels) == 0 {
		return 0, nil
	}

	action := map[string]any{"type": "cancel", "cancels": cancels}
	if err := c.exchange(ctx, action); err != nil {
		return 0, err
	}
	return len(cancels), nil
}

// PlaceOrder submits a limit order with the requested TIF.
func (c *HyperliquidClient) PlaceOrder(ctx context.Context, req Request) (string, error) {
	meta, err := c.asset(ctx, req.Instrument)
	if err != nil {
		return "", err
	}
	if req.Size <= 0 || req.Price <= 0 {
		return "", fmt.Errorf("%w: non-positive px/sz", ErrRejected)
	}
	if req.ClientID == "" {
		req.ClientID = newCloid()
	}
	tif := req.Tif
	if tif == "" {
		tif = order.TifAlo
	}

	action := map[string]any{
		"type": "order",
		"orders": []map[string]any{{
			"a": meta.id,
			"b": req.Side == SideBuy,
			"p": formatPx(req.Price, meta.szDecimals),
			"s": formatSz(req.Size, meta.szDecimals),
			"r": req.ReduceOnly,
			"t": map[string]any{"limit": map[string]any{"tif": string(tif)}},
			"c": req.ClientID,
		}},
		"grouping": "na",
	}
	if err := c.exchange(ctx, action); err != nil {
		return "", err
	}
	return req.ClientID, nil
}

// MarketOrder emulates a market order with a marketable IOC limit priced
// slippage away from mid, the same way the exchange SDK does.
func (c *HyperliquidClient) MarketOrder(ctx context.Context, instrument string, size, slippage float64) (string, error) {
	if size == 0 {
		return "", fmt.Errorf("%w: zero size", ErrRejected)
	}
	snap, err := c.TopOfBook(ctx, instrument)
	if err != nil {
		return "", err
	}
	px := snap.Mid * (1.0 + slippage)
	side := SideBuy
	if size < 0 {
		px = snap.Mid * (1.0 - slippage)
		side = SideSell
	}
	return c.PlaceOrder(ctx, Request{
		Instrument: instrument,
		Side:       side,
		Price:      px,
		Size:       math.Abs(size),
		Tif:        order.TifIoc,
	})
}

// UpdateLeverage re-asserts the leverage setting; safe to repeat.
func (c *HyperliquidClient) UpdateLeverage(ctx context.Context, instrument string, leverage int, cross bool) error {
	meta, err := c.asset(ctx, instrument)
	if err != nil {
		return err
	}
	action := map[string]any{
		"type":     "updateLeverage",
		"asset":    meta.id,
		"isCross":  cross,
		"leverage": leverage,
	}
	return c.exchange(ctx, action)
}

type userFill struct {
	Coin string `json:"coin"`
	Time int64  `json:"time"`
}

// LastFillAge scans recent fills for the instrument.
func (c *HyperliquidClient) LastFillAge(ctx context.Context, instrument string) (time.Duration, error) {
	var fills []userFill
	if err := c.info(ctx, map[string]any{"type": "userFills", "user": c.cfg.Account}, &fills); err != nil {
		return 0, err
	}
	for _, f := range fills {
		if f.Coin == instrument && f.Time > 0 {
			age := time.Since(time.UnixMilli(f.Time))
			if age < 0 {
				age = 0
			}
			return age, nil
		}
	}
	// no fill on record
	return time.Duration(math.MaxInt64), nil
}

// ---- plumbing ----

type metaResp struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"universe"`
}

func (c *HyperliquidClient) asset(ctx context.Context, instrument string) (assetMeta, error) {
	c.mu.RLock()
	m, ok := c.assets[instrument]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	var resp metaResp
	if err := c.info(ctx, map[string]any{"type": "meta"}, &resp); err != nil {
		return assetMeta{}, err
	}
	c.mu.Lock()
	for i, u := range resp.Universe {
		c.assets[u.Name] = assetMeta{id: i, szDecimals: u.SzDecimals}
	}
	m, ok = c.assets[instrument]
	c.mu.Unlock()
	if !ok {
		return assetMeta{}, fmt.Errorf("%w: unknown asset %s", ErrRejected, instrument)
	}
	return m, nil
}

func (c *HyperliquidClient) info(ctx context.Context, body map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.mapResponse(nil, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post("/info")
	return c.mapResponse(resp, err)
}

func (c *HyperliquidClient) exchange(ctx context.Context, action map[string]any) error {
	if c.cfg.DryRun {
		c.log.Info("dry-run exchange action", zap.Any("action", action))
		return nil
	}

	raw, err := json.Marshal(action)
	if err != nil {
		return err
	}
	nonce := time.Now().UnixMilli()
	sig, err := c.signer.Sign(raw, nonce, c.cfg.Vault)
	if err != nil {
		return fmt.Errorf("sign action: %w", err)
	}

	payload := map[string]any{
		"action":    json.RawMessage(raw),
		"nonce":     nonce,
		"signature": sig,
	}
	if c.cfg.Vault != "" {
		payload["vaultAddress"] = c.cfg.Vault
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return c.mapResponse(nil, err)
	}
	var status struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&status).
		Post("/exchange")
	if err := c.mapResponse(resp, err); err != nil {
		return err
	}
	if status.Status != "" && status.Status != "ok" {
		return fmt.Errorf("%w: status=%s", ErrRejected, status.Status)
	}
	return nil
}

func (c *HyperliquidClient) mapResponse(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		// resty wraps net timeouts without the context sentinel
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: http %d: %s", ErrRejected, resp.StatusCode(), resp.String())
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// formatPx rounds to the perp price precision: at most 6-szDecimals decimals.
func formatPx(px float64, szDecimals int) string {
	dec := maxPerpPxDecimals - szDecimals
	if dec < 0 {
		dec = 0
	}
	return decimal.NewFromFloat(px).Round(int32(dec)).String()
}

func formatSz(sz float64, szDecimals int) string {
	return decimal.NewFromFloat(sz).Round(int32(szDecimals)).String()
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func newCloid() string {
	// hyperliquid cloids are 16-byte hex strings
	u := uuid.New()
	return "0x" + fmt.Sprintf("%x", u[:])
}
