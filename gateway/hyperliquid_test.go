package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader-go/order"
)

type infoHandler func(reqType string, body map[string]any) any

func newTestServer(t *testing.T, onInfo infoHandler, onExchange func(body map[string]any) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		var resp any
		switch r.URL.Path {
		case "/info":
			resp = onInfo(body["type"].(string), body)
		case "/exchange":
			if onExchange != nil {
				resp = onExchange(body)
			} else {
				resp = map[string]any{"status": "ok"}
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func metaPayload() any {
	return map[string]any{
		"universe": []map[string]any{
			{"name": "BTC", "szDecimals": 5},
			{"name": "ETH", "szDecimals": 4},
		},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, dryRun bool) *HyperliquidClient {
	t.Helper()
	c, err := NewHyperliquidClient(Config{
		BaseURL: srv.URL,
		Account: "0xabc",
		DryRun:  dryRun,
	}, nil, nil)
	require.NoError(t, err)
	return c
}

func TestTopOfBook(t *testing.T) {
	srv := newTestServer(t, func(reqType string, _ map[string]any) any {
		require.Equal(t, "l2Book", reqType)
		return map[string]any{
			"levels": [][]map[string]string{
				{{"px": "64999.0", "sz": "1.2"}},
				{{"px": "65001.0", "sz": "0.8"}},
			},
			"time": time.Now().UnixMilli(),
		}
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	snap, err := c.TopOfBook(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 64999.0, snap.BestBid)
	assert.Equal(t, 65001.0, snap.BestAsk)
	assert.Equal(t, 65000.0, snap.Mid)
	assert.True(t, snap.Valid())
}

func TestTopOfBookEmptyBookRejected(t *testing.T) {
	srv := newTestServer(t, func(reqType string, _ map[string]any) any {
		return map[string]any{"levels": [][]map[string]string{{}, {}}}
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	_, err := c.TopOfBook(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestPosition(t *testing.T) {
	srv := newTestServer(t, func(reqType string, body map[string]any) any {
		require.Equal(t, "clearinghouseState", reqType)
		require.Equal(t, "0xabc", body["user"])
		return map[string]any{
			"assetPositions": []map[string]any{
				{"position": map[string]any{"coin": "ETH", "szi": "-2.5"}},
				{"position": map[string]any{"coin": "BTC", "szi": "0.125"}},
			},
		}
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	pos, err := c.Position(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0.125, pos)

	pos, err = c.Position(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos, "unknown instrument reads as flat")
}

func TestCancelAllCountsInstrumentOrders(t *testing.T) {
	srv := newTestServer(t, func(reqType string, _ map[string]any) any {
		switch reqType {
		case "openOrders":
			return []map[string]any{
				{"coin": "BTC", "oid": 1},
				{"coin": "ETH", "oid": 2},
				{"coin": "BTC", "oid": 3},
			}
		case "meta":
			return metaPayload()
		}
		return nil
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	n, err := c.CancelAll(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.CancelAll(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPlaceOrderDryRun(t *testing.T) {
	srv := newTestServer(t, func(reqType string, _ map[string]any) any {
		if reqType == "meta" {
			return metaPayload()
		}
		return nil
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	id, err := c.PlaceOrder(context.Background(), Request{
		Instrument: "BTC",
		Side:       SideBuy,
		Price:      64990.123456789,
		Size:       0.012345678,
		Tif:        order.TifAlo,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestPlaceOrderRejectsNonPositive(t *testing.T) {
	srv := newTestServer(t, func(reqType string, _ map[string]any) any {
		if reqType == "meta" {
			return metaPayload()
		}
		return nil
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	_, err := c.PlaceOrder(context.Background(), Request{Instrument: "BTC", Side: SideBuy, Price: 0, Size: 1})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestLiveModeRequiresSigner(t *testing.T) {
	_, err := NewHyperliquidClient(Config{BaseURL: "http://x", DryRun: false}, nil, nil)
	assert.Error(t, err)
}

func TestLastFillAge(t *testing.T) {
	fillTime := time.Now().Add(-42 * time.Second).UnixMilli()
	srv := newTestServer(t, func(reqType string, _ map[string]any) any {
		require.Equal(t, "userFills", reqType)
		return []map[string]any{
			{"coin": "ETH", "time": time.Now().UnixMilli()},
			{"coin": "BTC", "time": fillTime},
		}
	}, nil)
	defer srv.Close()

	c := newTestClient(t, srv, true)
	age, err := c.LastFillAge(context.Background(), "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, age.Seconds(), 2.0)

	age, err = c.LastFillAge(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Greater(t, age, 24*time.Hour, "no fill on record reads as very old")
}

func TestFormatPxSz(t *testing.T) {
	// BTC szDecimals=5 -> at most 1 price decimal
	assert.Equal(t, "64990.1", formatPx(64990.123, 5))
	assert.Equal(t, "0.01235", formatSz(0.0123456, 5))
	// no negative decimals
	assert.Equal(t, "101", formatPx(100.6, 7))
}

func TestMapResponseTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c, err := NewHyperliquidClient(Config{
		BaseURL:     srv.URL,
		Account:     "0xabc",
		DryRun:      true,
		CallTimeout: 50 * time.Millisecond,
	}, nil, nil)
	require.NoError(t, err)

	_, err = c.TopOfBook(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrTimeout)
}
