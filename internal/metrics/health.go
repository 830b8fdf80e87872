package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Checker tests one dependency of the run.
type Checker func(ctx context.Context) error

// RedisCheck pings the cache store's server.
func RedisCheck(rdb *goredis.Client) Checker {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// SQLCheck pings a SQLite store.
func SQLCheck(db *sql.DB) Checker { return db.PingContext }

type checkResult struct {
	OK        bool    `json:"ok"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Health serves /healthz from the last result of each registered check and
// the last committed date.
type Health struct {
	mu       sync.RWMutex
	started  time.Time
	checks   map[string]Checker
	results  map[string]checkResult
	lastDate string
	checked  time.Time
}

func NewHealth() *Health {
	return &Health{
		started: time.Now(),
		checks:  map[string]Checker{},
		results: map[string]checkResult{},
	}
}

// Register adds a named check. It is reported as down until first checked.
func (h *Health) Register(name string, c Checker) {
	h.mu.Lock()
	h.checks[name] = c
	h.results[name] = checkResult{Error: "not checked yet"}
	h.mu.Unlock()
}

func (h *Health) SetLastDate(id string) {
	h.mu.Lock()
	h.lastDate = id
	h.mu.Unlock()
}

// Refresh runs every check once, each bounded by a 3s timeout.
func (h *Health) Refresh(ctx context.Context) {
	h.mu.RLock()
	checks := make(map[string]Checker, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	results := make(map[string]checkResult, len(checks))
	for name, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		start := time.Now()
		err := c(checkCtx)
		cancel()
		r := checkResult{OK: err == nil, LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0}
		if err != nil {
			r.Error = err.Error()
		}
		results[name] = r
	}

	h.mu.Lock()
	for name, r := range results {
		h.results[name] = r
	}
	h.checked = time.Now()
	h.mu.Unlock()
}

// Watch checks now and then every interval until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()
}

// ServeHTTP reports 200 when every check passed and 503 otherwise.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	down := 0
	names := make([]string, 0, len(h.results))
	for name, r := range h.results {
		names = append(names, name)
		if !r.OK {
			down++
		}
	}
	sort.Strings(names)

	status, code := "healthy", http.StatusOK
	switch {
	case down > 0 && down == len(names):
		status, code = "unhealthy", http.StatusServiceUnavailable
	case down > 0:
		status, code = "degraded", http.StatusServiceUnavailable
	}

	checks := make(map[string]checkResult, len(names))
	for _, name := range names {
		checks[name] = h.results[name]
	}
	lastCheck := ""
	if !h.checked.IsZero() {
		lastCheck = h.checked.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(struct {
		Status      string                 `json:"status"`
		Uptime      string                 `json:"uptime"`
		LastDate    string                 `json:"last_date"`
		LastCheckAt string                 `json:"last_check_at,omitempty"`
		Checks      map[string]checkResult `json:"checks"`
	}{status, time.Since(h.started).Round(time.Second).String(), h.lastDate, lastCheck, checks})
}
