package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDay(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	m.ObserveDay("threshold", date, 120, 4, 30*time.Millisecond)
	m.ObserveDay("threshold", date.AddDate(0, 0, 1), 80, 2, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.DaysProcessed.WithLabelValues("threshold")); got != 2 {
		t.Errorf("expected 2 days, got %v", got)
	}
	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("threshold")); got != 200 {
		t.Errorf("expected 200 ticks, got %v", got)
	}
	if got := testutil.ToFloat64(m.BarsTotal.WithLabelValues("threshold")); got != 6 {
		t.Errorf("expected 6 bars, got %v", got)
	}
	want := float64(date.AddDate(0, 0, 1).Unix())
	if got := testutil.ToFloat64(m.LastDate.WithLabelValues("threshold")); got != want {
		t.Errorf("expected last date %v, got %v", want, got)
	}

	m.Target.WithLabelValues("adaptive_threshold").Set(math.Inf(1))
	if got := testutil.ToFloat64(m.Target.WithLabelValues("adaptive_threshold")); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf target during warm-up, got %v", got)
	}
}

func TestSetCircuitState(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetCircuitState(1)
	m.SetCircuitState(2)
	m.SetCircuitState(0)

	if got := testutil.ToFloat64(m.CacheCBState); got != 0 {
		t.Errorf("expected closed state, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheCBTrips); got != 1 {
		t.Errorf("expected 1 trip, got %v", got)
	}
}

func TestHealthz(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	h := NewHealth()
	h.Register("redis", RedisCheck(rdb))
	h.Register("sqlite", SQLCheck(db))
	h.SetLastDate("2024-03-01")

	serve := func() (int, healthBody) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body healthBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rec.Code, body
	}

	if code, body := serve(); code != http.StatusServiceUnavailable || body.Status != "unhealthy" {
		t.Errorf("expected 503 unhealthy before first check, got %d %q", code, body.Status)
	}

	h.Refresh(context.Background())
	code, body := serve()
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Status != "healthy" || body.LastDate != "2024-03-01" || len(body.Checks) != 2 {
		t.Errorf("unexpected body %+v", body)
	}

	mr.Close()
	h.Refresh(context.Background())
	code, body = serve()
	if code != http.StatusServiceUnavailable || body.Status != "degraded" {
		t.Errorf("expected 503 degraded with redis down, got %d %q", code, body.Status)
	}
	if body.Checks["redis"].OK || body.Checks["redis"].Error == "" || !body.Checks["sqlite"].OK {
		t.Errorf("unexpected checks %+v", body.Checks)
	}
}

type healthBody struct {
	Status   string                 `json:"status"`
	LastDate string                 `json:"last_date"`
	Checks   map[string]checkResult `json:"checks"`
}

func TestHealthz_NoChecksIsHealthy(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealth().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.DaysSkipped.WithLabelValues("threshold").Inc()

	srv := NewServer(":0", NewHealth(), reg)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `barengine_days_skipped_total{engine="threshold"} 1`) {
		t.Errorf("metric missing from /metrics output:\n%s", rec.Body.String())
	}
}
