package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bar engine.
type Metrics struct {
	DaysProcessed *prometheus.CounterVec // labels: engine
	DaysSkipped   *prometheus.CounterVec // labels: engine
	DaysFailed    *prometheus.CounterVec // labels: engine
	BarsTotal     *prometheus.CounterVec // labels: engine
	TicksTotal    *prometheus.CounterVec // labels: engine
	DayDuration   *prometheus.HistogramVec

	Target       *prometheus.GaugeVec // labels: engine
	WindowLen    *prometheus.GaugeVec // labels: engine
	LastDate     *prometheus.GaugeVec // labels: engine
	CacheCBState prometheus.Gauge     // 0=closed, 1=open, 2=half-open
	CacheCBTrips prometheus.Counter
}

// NewMetrics creates the bar engine metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DaysProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barengine_days_processed_total",
			Help: "Days committed to the destination",
		}, []string{"engine"}),
		DaysSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barengine_days_skipped_total",
			Help: "Days skipped because they were already processed",
		}, []string{"engine"}),
		DaysFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barengine_days_failed_total",
			Help: "Days that stopped the run",
		}, []string{"engine"}),
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barengine_bars_total",
			Help: "Bars emitted",
		}, []string{"engine"}),
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barengine_ticks_total",
			Help: "Ticks consumed",
		}, []string{"engine"}),
		DayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barengine_day_duration_seconds",
			Help:    "Time to process and commit one day",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"engine"}),

		Target: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barengine_target",
			Help: "Threshold in force after the last processed day (+Inf during warm-up)",
		}, []string{"engine"}),
		WindowLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barengine_window_length",
			Help: "Daily totals held by the adaptive window",
		}, []string{"engine"}),
		LastDate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barengine_last_processed_date_seconds",
			Help: "Unix time of the last committed day",
		}, []string{"engine"}),

		CacheCBState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "barengine_cache_circuit_breaker_state",
			Help: "Cache store circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CacheCBTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barengine_cache_circuit_breaker_trips_total",
			Help: "Times the cache store circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.DaysProcessed,
		m.DaysSkipped,
		m.DaysFailed,
		m.BarsTotal,
		m.TicksTotal,
		m.DayDuration,
		m.Target,
		m.WindowLen,
		m.LastDate,
		m.CacheCBState,
		m.CacheCBTrips,
	)

	return m
}

// ObserveDay records a committed day.
func (m *Metrics) ObserveDay(engine string, date time.Time, ticks, bars int, took time.Duration) {
	m.DaysProcessed.WithLabelValues(engine).Inc()
	m.TicksTotal.WithLabelValues(engine).Add(float64(ticks))
	m.BarsTotal.WithLabelValues(engine).Add(float64(bars))
	m.DayDuration.WithLabelValues(engine).Observe(took.Seconds())
	m.LastDate.WithLabelValues(engine).Set(float64(date.Unix()))
}

// SetCircuitState mirrors the cache breaker state. A transition to open
// counts as a trip.
func (m *Metrics) SetCircuitState(state int) {
	m.CacheCBState.Set(float64(state))
	if state == 1 {
		m.CacheCBTrips.Inc()
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *Health
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
}

// NewServer creates a metrics and health server over gatherer.
func NewServer(addr string, health *Health, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		mux:    mux,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Mux returns the server's mux so callers can mount extra routes before Start.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
