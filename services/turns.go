package services

import (
	"context"
	"fmt"
	"sync"
)

// matchTurns hands out one mutation turn at a time per match. Different
// matches never wait on each other. Idle entries are dropped so the map only
// holds matches with a turn held or awaited.
type matchTurns struct {
	mu    sync.Mutex
	turns map[string]*turn
}

type turn struct {
	slot  chan struct{}
	users int
}

func newMatchTurns() *matchTurns {
	return &matchTurns{turns: make(map[string]*turn)}
}

// acquire blocks until the caller owns matchID's turn or ctx ends.
func (t *matchTurns) acquire(ctx context.Context, matchID string) (func(), error) {
	t.mu.Lock()
	tr, ok := t.turns[matchID]
	if !ok {
		tr = &turn{slot: make(chan struct{}, 1)}
		t.turns[matchID] = tr
	}
	tr.users++
	t.mu.Unlock()

	select {
	case tr.slot <- struct{}{}:
	case <-ctx.Done():
		t.leave(matchID, tr)
		return nil, fmt.Errorf("waiting for match %s: %w: %v", matchID, ErrPersistenceUnavailable, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-tr.slot
			t.leave(matchID, tr)
		})
	}, nil
}

func (t *matchTurns) leave(matchID string, tr *turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr.users--
	if tr.users == 0 && t.turns[matchID] == tr {
		delete(t.turns, matchID)
	}
}

func (t *matchTurns) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}
