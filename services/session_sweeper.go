package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itpetinwtbap/quiz/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SessionSweeper deactivates session rows left active by connections this
// process no longer holds, typically after a crash or restart.
type SessionSweeper struct {
	sessions   store.SessionStore
	registry   *RoomRegistry
	clock      clockwork.Clock
	interval   time.Duration
	staleAfter time.Duration
	scheduler  gocron.Scheduler
}

func NewSessionSweeper(sessions store.SessionStore, registry *RoomRegistry, clock clockwork.Clock, interval, staleAfter time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sessions:   sessions,
		registry:   registry,
		clock:      clock,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

func (s *SessionSweeper) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			defer cancel()
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("session sweep failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}

	s.scheduler = sched
	sched.Start()
	log.Info().Dur("interval", s.interval).Dur("stale_after", s.staleAfter).Msg("session sweeper started")
	return nil
}

func (s *SessionSweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

// Sweep runs one pass and returns how many rows it deactivated.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.sessions.ListActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().Add(-s.staleAfter)
	swept := 0
	for _, row := range rows {
		if row.LastActivity.After(cutoff) || s.registry.IsAttached(row.MatchID, row.ConnectionID) {
			continue
		}
		err := s.sessions.DeactivateSession(ctx, row.ConnectionID, row.MatchID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return swept, err
		}
		swept++
	}

	if swept > 0 {
		log.Info().Int("sessions", swept).Msg("deactivated orphaned sessions")
	}
	return swept, nil
}
