package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"tickbars/internal/calendar"
	"tickbars/internal/model"
)

type memTicks struct {
	days map[string][]model.Tick
}

func (m *memTicks) Ticks(_ context.Context, date time.Time, f model.Filter) ([]model.Tick, error) {
	var out []model.Tick
	for _, t := range m.days[calendar.DocumentID(date)] {
		if f.Match(&t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTicks) MinDate(_ context.Context, _ model.Filter) (time.Time, bool, error) {
	var first time.Time
	for id := range m.days {
		d, _ := calendar.ParseDate(id)
		if first.IsZero() || d.Before(first) {
			first = d
		}
	}
	return first, !first.IsZero(), nil
}

type memCache struct {
	mu      sync.Mutex
	docs    map[string][]byte
	failPut map[string]bool
}

func newMemCache() *memCache {
	return &memCache{docs: map[string][]byte{}, failPut: map[string]bool{}}
}

func (m *memCache) Get(_ context.Context, id string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (m *memCache) Put(_ context.Context, id string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut[id] {
		return errors.New("cache unavailable")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[id] = data
	return nil
}

func (m *memCache) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok, nil
}

type memSink struct {
	days    map[string][]model.Bar
	writes  int
	deletes int
}

func newMemSink() *memSink { return &memSink{days: map[string][]model.Bar{}} }

func (m *memSink) WriteBars(_ context.Context, date time.Time, bars []model.Bar) error {
	m.writes++
	m.days[calendar.DocumentID(date)] = append([]model.Bar(nil), bars...)
	return nil
}

func (m *memSink) DeleteBars(_ context.Context, date time.Time) error {
	m.deletes++
	delete(m.days, calendar.DocumentID(date))
	return nil
}

func (m *memSink) Close() error { return nil }
