package bars

import (
	"fmt"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

const day = 24 * time.Hour

// ParseDuration accepts Go durations plus day and week units ("7d", "1w",
// "1d12h").
func ParseDuration(s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q: %v", ErrConfig, s, err)
	}
	return d, nil
}

// ParseWindowSize converts a duration string into a whole number of days.
// Windows shorter than one day, or not a multiple of a day, are rejected.
func ParseWindowSize(s string) (int, error) {
	d, err := ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < day {
		return 0, fmt.Errorf("%w: minimum window size is 1 day, got %q", ErrConfig, s)
	}
	if d%day != 0 {
		return 0, fmt.Errorf("%w: window size %q is not a whole number of days", ErrConfig, s)
	}
	return int(d / day), nil
}

// ParseFrequency parses the per-bar target frequency. It must be positive.
func ParseFrequency(s string) (time.Duration, error) {
	d, err := ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: target frequency must be positive, got %q", ErrConfig, s)
	}
	return d, nil
}
