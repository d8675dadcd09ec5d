package services

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TimerState is the outcome of a timer transition.
type TimerState struct {
	Running   bool
	StartedAt *time.Time
	Basis     int
	Remaining int
}

// MatchTimer computes countdown state from server-observed timestamps only.
// It keeps no state of its own beyond the clock.
type MatchTimer struct {
	clock clockwork.Clock
}

func NewMatchTimer(clock clockwork.Clock) *MatchTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MatchTimer{clock: clock}
}

func (t *MatchTimer) Now() time.Time {
	return t.clock.Now()
}

// Start begins a countdown from the selected duration, or the default one
// when nothing was selected.
func (t *MatchTimer) Start(selected *int, defaultDuration int) TimerState {
	now := t.clock.Now()
	basis := defaultDuration
	if selected != nil {
		basis = *selected
	}
	return TimerState{
		Running:   true,
		StartedAt: &now,
		Basis:     basis,
		Remaining: basis,
	}
}

// Pause snapshots the remaining time and drops the start instant.
func (t *MatchTimer) Pause(startedAt time.Time, basis int) TimerState {
	return TimerState{
		Running:   false,
		Basis:     basis,
		Remaining: ElapsedRemaining(startedAt, basis, t.clock.Now()),
	}
}

// Reset stops the countdown at explicit seconds, or the default duration.
func (t *MatchTimer) Reset(explicit *int, defaultDuration int) TimerState {
	remaining := defaultDuration
	if explicit != nil {
		remaining = *explicit
	}
	if remaining < 0 {
		remaining = 0
	}
	return TimerState{
		Running:   false,
		Basis:     defaultDuration,
		Remaining: remaining,
	}
}

// ElapsedRemaining is basis minus the whole seconds elapsed since startedAt,
// floored at zero. A now before startedAt counts as no time elapsed.
func ElapsedRemaining(startedAt time.Time, basis int, now time.Time) int {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := basis - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}
