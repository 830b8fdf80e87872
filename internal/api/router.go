// Package api serves a read-only HTTP view of a run's destination: the
// bars committed for a date and the latest processed date.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tickbars/internal/calendar"
	"tickbars/internal/model"
)

// BarReader reads one date's committed bars.
type BarReader interface {
	ReadBars(ctx context.Context, date time.Time) ([]model.Bar, error)
}

// LatestReader reports the most recent processed date id.
type LatestReader interface {
	Latest(ctx context.Context) (string, bool, error)
}

// NewRouter sets up the API routes on a new mux.
func NewRouter(bars BarReader, cache LatestReader) *http.ServeMux {
	mux := http.NewServeMux()
	Register(mux, bars, cache)
	return mux
}

// Register adds the API routes to mux.
//
//	GET /api/v1/bars?date=YYYY-MM-DD
//	GET /api/v1/latest
func Register(mux *http.ServeMux, bars BarReader, cache LatestReader) {
	mux.HandleFunc("/api/v1/bars", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		date, err := calendar.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := bars.ReadBars(r.Context(), date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []model.Bar{}
		}
		writeJSON(w, struct {
			Date string      `json:"date"`
			Bars []model.Bar `json:"bars"`
		}{calendar.DocumentID(date), out})
	})

	mux.HandleFunc("/api/v1/latest", func(w http.ResponseWriter, r *http.Request) {
		id, ok, err := cache.Latest(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if !ok {
			http.Error(w, "nothing processed yet", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"date": id})
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
