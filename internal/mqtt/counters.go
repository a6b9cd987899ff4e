package mqtt

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/agent"
)

// DailyCounters tracks resolutions and token usage for the current local
// day and resets at midnight. It is an agent.Observer and safe for
// concurrent use.
type DailyCounters struct {
	mu          sync.Mutex
	byOutcome   map[string]int64
	input       int64
	output      int64
	lastRequest time.Time
	resetDay    int // day-of-year of last reset
	loc         *time.Location
}

// Counts is a snapshot of DailyCounters.
type Counts struct {
	Requests     int64
	ByOutcome    map[string]int64
	InputTokens  int64
	OutputTokens int64
	// LastRequest survives the midnight reset.
	LastRequest time.Time
}

// NewDailyCounters creates counters using loc for midnight detection. If
// loc is nil, [time.Local] is used.
func NewDailyCounters(loc *time.Location) *DailyCounters {
	if loc == nil {
		loc = time.Local
	}
	return &DailyCounters{
		byOutcome: make(map[string]int64),
		resetDay:  time.Now().In(loc).YearDay(),
		loc:       loc,
	}
}

// ObserveResolution counts a finished resolution.
func (d *DailyCounters) ObserveResolution(_ context.Context, r agent.Resolution) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeReset()
	d.byOutcome[string(r.Outcome.Kind)]++
	if r.Result != nil {
		d.input += int64(r.Result.InputTokens)
		d.output += int64(r.Result.OutputTokens)
	}
	d.lastRequest = r.Started.Add(r.Duration)
}

// Snapshot returns today's totals after checking for midnight rollover.
func (d *DailyCounters) Snapshot() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeReset()
	c := Counts{
		ByOutcome:    maps.Clone(d.byOutcome),
		InputTokens:  d.input,
		OutputTokens: d.output,
		LastRequest:  d.lastRequest,
	}
	for _, n := range d.byOutcome {
		c.Requests += n
	}
	return c
}

// maybeReset zeroes the counters if the local day-of-year has changed.
// Must be called with d.mu held.
func (d *DailyCounters) maybeReset() {
	today := time.Now().In(d.loc).YearDay()
	if today != d.resetDay {
		clear(d.byOutcome)
		d.input = 0
		d.output = 0
		d.resetDay = today
	}
}
