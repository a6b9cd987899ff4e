// Package connwatch tracks whether the generator backend is reachable.
//
// A Watcher probes on a schedule: exponential backoff while the backend
// is down, a fixed poll interval while it is up. Queries are never
// blocked on the watcher; it only feeds /health and the logs.
package connwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProbeFunc checks whether the backend is reachable. Return nil if healthy.
type ProbeFunc func(ctx context.Context) error

// Schedule controls probe timing.
type Schedule struct {
	InitialDelay time.Duration // first retry after a failure (default 2s)
	MaxDelay     time.Duration // backoff ceiling (default 60s)
	Multiplier   float64       // backoff growth (default 2)
	PollInterval time.Duration // interval while healthy (default 60s)
	ProbeTimeout time.Duration // per-probe limit (default 10s)
}

// DefaultSchedule returns 2s, 4s, 8s ... capped at 60s while down, and a
// 60-second poll while up.
func DefaultSchedule() Schedule {
	return Schedule{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		PollInterval: 60 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

func (s Schedule) withDefaults() Schedule {
	d := DefaultSchedule()
	if s.InitialDelay <= 0 {
		s.InitialDelay = d.InitialDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = d.MaxDelay
	}
	if s.Multiplier < 1 {
		s.Multiplier = d.Multiplier
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = d.ProbeTimeout
	}
	return s
}

// Status is the JSON form reported by /health.
type Status struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	Probes    int       `json:"probes"`
	LastCheck time.Time `json:"last_check,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher probes one backend in a background goroutine.
type Watcher struct {
	name     string
	probe    ProbeFunc
	schedule Schedule
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status Status
}

// Start launches a watcher. It runs until ctx is cancelled or Stop is
// called. The first probe happens immediately.
func Start(ctx context.Context, name string, probe ProbeFunc, schedule Schedule, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		name:     name,
		probe:    probe,
		schedule: schedule.withDefaults(),
		logger:   logger.With("service", name),
		cancel:   cancel,
		done:     make(chan struct{}),
		status:   Status{Name: name},
	}
	go w.run(ctx)
	return w
}

// Ready reports whether the last probe succeeded.
func (w *Watcher) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.Ready
}

// Status returns a snapshot of the watcher state. A nil Watcher reports
// an empty status.
func (w *Watcher) Status() Status {
	if w == nil {
		return Status{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	delay := w.schedule.InitialDelay
	for {
		err := w.check(ctx)
		if ctx.Err() != nil {
			return
		}

		wait := w.schedule.PollInterval
		if err != nil {
			wait = delay
			delay = min(time.Duration(float64(delay)*w.schedule.Multiplier), w.schedule.MaxDelay)
		} else {
			delay = w.schedule.InitialDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// check runs one probe and logs state transitions.
func (w *Watcher) check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.schedule.ProbeTimeout)
	err := w.probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	w.mu.Lock()
	wasReady, first := w.status.Ready, w.status.Probes == 0
	w.status.Probes++
	w.status.LastCheck = time.Now()
	w.status.Ready = err == nil
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	w.mu.Unlock()

	switch {
	case err == nil && (first || !wasReady):
		w.logger.Info("backend reachable")
	case err != nil && (first || wasReady):
		w.logger.Warn("backend unreachable", "error", err)
	case err != nil:
		w.logger.Debug("backend still unreachable", "error", err)
	}
	return err
}
