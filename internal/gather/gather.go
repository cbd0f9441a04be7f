// Package gather orchestrates data collection against the external rates
// source: the one-shot backfiller and the continuous poller, plus the
// chunked range-fetch they share.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run starts the data gathering process. It blocks until the work is
	// done or ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days the range spans.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// RatesSource is the consumed surface of the external rates API.
type RatesSource interface {
	// Timeframe returns daily rates for the inclusive date range,
	// keyed by "YYYY-MM-DD" date, then by metal symbol.
	Timeframe(ctx context.Context, start, end time.Time) (map[string]map[string]float64, error)
	// Latest returns the current rates keyed by metal symbol.
	Latest(ctx context.Context) (map[string]float64, error)
}
