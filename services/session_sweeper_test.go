package services

import (
	"context"
	"testing"
	"time"

	"github.com/itpetinwtbap/quiz/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))
	registry := NewRoomRegistry(clock)
	m, _ := seedMatch(t, st, 1)

	rows := []models.Session{
		{ConnectionID: "stale", MatchID: m.ID, IsActive: true, LastActivity: clock.Now().Add(-10 * time.Minute)},
		{ConnectionID: "fresh", MatchID: m.ID, IsActive: true, LastActivity: clock.Now().Add(-30 * time.Second)},
		{ConnectionID: "attached", MatchID: m.ID, IsActive: true, LastActivity: clock.Now().Add(-10 * time.Minute)},
		{ConnectionID: "gone", MatchID: m.ID, IsActive: false, LastActivity: clock.Now().Add(-time.Hour)},
	}
	for i := range rows {
		require.NoError(t, st.UpsertSession(ctx, &rows[i]))
	}
	registry.Attach(m.ID, "attached", nil, models.SessionRoleParticipant)

	sweeper := NewSessionSweeper(st, registry, clock, time.Minute, 5*time.Minute)
	swept, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	active, err := st.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "attached", active[0].ConnectionID)
	assert.Equal(t, "fresh", active[1].ConnectionID)

	swept, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestSessionSweeper_StartStop(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClock()
	sweeper := NewSessionSweeper(st, NewRoomRegistry(clock), clock, time.Minute, 5*time.Minute)

	require.NoError(t, sweeper.Stop(), "stopping an unstarted sweeper is a no-op")
	require.NoError(t, sweeper.Start())
	assert.NoError(t, sweeper.Stop())
}
