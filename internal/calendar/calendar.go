// Package calendar handles the UTC trading days the pipeline walks.
// Days are contiguous: every calendar date is a trading day.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the date format used for document ids and partitions.
const Layout = "2006-01-02"

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// DocumentID is the cache document id for date.
func DocumentID(date time.Time) string {
	return Day(date).Format(Layout)
}

// Previous returns the day before date.
func Previous(date time.Time) time.Time {
	return Day(date).AddDate(0, 0, -1)
}

// Yesterday returns the last fully elapsed UTC day as of now.
func Yesterday(now time.Time) time.Time {
	return Previous(now)
}

// Days returns every date from from to to inclusive. It is empty when
// to is before from.
func Days(from, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	n := int(to.Sub(from).Hours()/24) + 1
	days := make([]time.Time, 0, n)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
