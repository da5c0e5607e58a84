package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-billing/internal/obs"
)

// State describes the scheduler lifecycle, exposed for UI feedback.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateSaving    State = "saving"
	StateStopped   State = "stopped"
)

// ErrStopped is returned when starting a scheduler that was already torn down.
var ErrStopped = errors.New("autosave: scheduler stopped")

// SaveFunc persists the current document snapshot. A save already in flight
// is never cancelled mid-way; the context only carries values and tracing.
type SaveFunc func(ctx context.Context) error

// Scheduler triggers periodic saves with at most one save in flight. Ticks
// that fire while a save is pending are skipped, never queued. Stop is
// idempotent and releases the underlying ticker.
type Scheduler struct {
	Interval time.Duration
	Save     SaveFunc
	Logger   *zerolog.Logger
	Now      func() time.Time

	mu       sync.Mutex
	state    State
	inFlight bool
	lastSave time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval <= 0 {
		return 30 * time.Second
	}
	return s.Interval
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start begins the periodic save loop. Starting an already running scheduler
// is a no-op; starting a stopped scheduler returns ErrStopped.
func (s *Scheduler) Start() error {
	if s.Save == nil {
		return errors.New("autosave: save func not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStopped:
		return ErrStopped
	case StateScheduled, StateSaving:
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateScheduled
	go s.run(ctx, s.done)
	return nil
}

// Stop cancels the save loop. It may be called at any time, from any state,
// repeatedly. A save already in flight finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status reports the current state and the last successful save time.
func (s *Scheduler) Status() (State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	if state == "" {
		state = StateIdle
	}
	return state, s.lastSave
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		if obs.AutosaveSkippedTotal != nil {
			obs.AutosaveSkippedTotal.Inc()
		}
		if s.Logger != nil {
			s.Logger.Debug().Msg("autosave tick skipped, save in flight")
		}
		return
	}
	s.inFlight = true
	s.state = StateSaving
	s.mu.Unlock()

	// The save must outlive a Stop issued mid-flight.
	saveCtx := context.WithoutCancel(ctx)
	go func() {
		err := s.Save(saveCtx)

		s.mu.Lock()
		s.inFlight = false
		if err == nil {
			s.lastSave = s.now()
		}
		if s.state == StateSaving {
			s.state = StateScheduled
		}
		s.mu.Unlock()

		result := "ok"
		if err != nil {
			result = "error"
			if s.Logger != nil {
				s.Logger.Error().Err(err).Msg("autosave failed")
			}
		}
		if obs.AutosaveRunsTotal != nil {
			obs.AutosaveRunsTotal.WithLabelValues(result).Inc()
		}
	}()
}
