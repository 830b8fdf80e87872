package calendar

import (
	"testing"
	"time"
)

func TestDays(t *testing.T) {
	from := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	days := Days(from, to)
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if DocumentID(d) != want[i] {
			t.Errorf("day %d: expected %s, got %s", i, want[i], DocumentID(d))
		}
	}

	if got := Days(to, from); len(got) != 0 {
		t.Errorf("reversed range should be empty, got %d days", len(got))
	}
	if got := Days(from, from); len(got) != 1 {
		t.Errorf("single day range should have one day, got %d", len(got))
	}
}

func TestYesterday(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	now := time.Date(2024, 3, 2, 3, 0, 0, 0, ist) // 2024-03-01 21:30 UTC
	if got := DocumentID(Yesterday(now)); got != "2024-02-29" {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-01 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Location() != time.UTC || d.Day() != 1 {
		t.Errorf("unexpected date %v", d)
	}
	if _, err := ParseDate("01/03/2024"); err == nil {
		t.Error("expected error for non ISO date")
	}
	if got := DocumentID(Previous(d)); got != "2024-02-29" {
		t.Errorf("expected leap day, got %s", got)
	}
}
