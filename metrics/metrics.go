// Package metrics provides Prometheus metrics for the trading stack
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Quote model gauges, labelled per instrument.
	ReservationPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pt_reservation_price",
		Help: "Inventory-adjusted reservation price",
	}, []string{"instrument"})
	SpreadBps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pt_spread_bps",
		Help: "Quoted full spread in basis points of mid",
	}, []string{"instrument"})
	PositionNet = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pt_position_net",
		Help: "Signed position as last read from the gateway",
	}, []string{"instrument"})
	LifecycleStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pt_lifecycle_state",
		Help: "Order lifecycle state (0=passive, 1=fill_pressure)",
	}, []string{"instrument"})
	VarianceEstimate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pt_variance_estimate",
		Help: "Rolling sample variance of log returns",
	}, []string{"instrument"})

	// 周期计数
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_cycles_total",
		Help: "Completed strategy cycles",
	}, []string{"instrument"})
	CyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_cycles_skipped_total",
		Help: "Cycles skipped (stale data or previous cycle still running)",
	}, []string{"instrument", "reason"})
	CycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_cycle_errors_total",
		Help: "Cycles degraded to no-op by an error",
	}, []string{"instrument", "kind"})
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pt_cycle_duration_seconds",
		Help:    "Wall time of one full strategy cycle",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"instrument"})

	// 订单计数
	QuotesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_quotes_generated_total",
		Help: "Quotes generated by the quote model",
	}, []string{"instrument", "side"})
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_orders_placed_total",
		Help: "Orders accepted by the gateway",
	}, []string{"instrument", "side"})
	OrdersCanceled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_orders_canceled_total",
		Help: "Resting orders canceled by cancel-all",
	}, []string{"instrument"})
	FillsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_fills_detected_total",
		Help: "Fills inferred from position deltas between cycles",
	}, []string{"instrument"})
	RiskClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_risk_clamps_total",
		Help: "Decisions altered by the position/risk limiter",
	}, []string{"instrument"})
)

// UpdateQuoteMetrics 每周期更新报价相关指标
func UpdateQuoteMetrics(instrument string, reservation, spreadBps, position, variance float64) {
	ReservationPrice.WithLabelValues(instrument).Set(reservation)
	SpreadBps.WithLabelValues(instrument).Set(spreadBps)
	PositionNet.WithLabelValues(instrument).Set(position)
	VarianceEstimate.WithLabelValues(instrument).Set(variance)
}

// SetLifecycleState 记录状态机当前状态
func SetLifecycleState(instrument string, fillPressure bool) {
	v := 0.0
	if fillPressure {
		v = 1.0
	}
	LifecycleStateGauge.WithLabelValues(instrument).Set(v)
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
