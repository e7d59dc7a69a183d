// Package schedule runs recurring tasks on an injectable clock. It
// replaces ad hoc timer loops with an abstraction tests can drive
// deterministically through a fake clock.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock abstracts the time source. The zero-dependency real clock is
// RealClock; tests supply their own to advance virtual time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall-clock Clock.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Task is one scheduled unit of work. Errors are logged, not fatal; the
// schedule keeps running.
type Task func(ctx context.Context) error

// Scheduler invokes named tasks at fixed intervals.
type Scheduler struct {
	clock Clock
}

// New creates a Scheduler. A nil clock selects the wall clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock}
}

// Every runs task at the given interval until ctx is done. The first
// invocation happens one interval after the call, not immediately.
// Blocks; callers run it in a goroutine.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, task Task) {
	log.Debug().Str("task", name).Dur("interval", interval).Msg("Scheduled task started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("task", name).Msg("Scheduled task stopped")
			return
		case <-s.clock.After(interval):
		}

		start := s.clock.Now()
		if err := task(ctx); err != nil {
			log.Warn().Err(err).Str("task", name).Msg("Scheduled task failed")
			continue
		}
		log.Debug().
			Str("task", name).
			Dur("duration", s.clock.Now().Sub(start)).
			Msg("Scheduled task complete")
	}
}
