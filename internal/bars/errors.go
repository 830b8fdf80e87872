package bars

import "errors"

var (
	// ErrConfig is returned by constructors and parsers for invalid settings.
	// It is never returned while processing ticks.
	ErrConfig = errors.New("bars: invalid configuration")

	// ErrEmptyRange means a bar was requested over zero ticks. Engines guard
	// against this, so seeing it indicates a logic defect.
	ErrEmptyRange = errors.New("bars: empty tick range")
)
