package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/itpetinwtbap/quiz/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRegistry_AttachIsIdempotentUpsert(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())

	assert.Equal(t, 1, reg.Attach("m1", "c1", nil, models.SessionRoleObserver))
	assert.Equal(t, 1, reg.Attach("m1", "c1", strPtr("Ann"), models.SessionRoleHost))
	assert.Equal(t, 2, reg.Attach("m1", "c2", nil, models.SessionRoleParticipant))

	members := reg.Members("m1")
	require.Len(t, members, 2)
	assert.Equal(t, "c1", members[0].ConnectionID)
	assert.Equal(t, models.SessionRoleHost, members[0].Role)
	require.NotNil(t, members[0].DisplayName)
	assert.Equal(t, "Ann", *members[0].DisplayName)
}

func TestRoomRegistry_DetachDropsEmptyRoom(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())
	reg.Attach("m1", "c1", nil, models.SessionRoleObserver)
	reg.Attach("m1", "c2", nil, models.SessionRoleObserver)

	assert.Equal(t, 1, reg.Detach("m1", "c1"))
	assert.Equal(t, 0, reg.Detach("m1", "c2"))

	assert.Empty(t, reg.Members("m1"))
	assert.Nil(t, reg.lookup("m1"), "empty room must be removed")
	assert.Equal(t, 0, reg.Stats()["active_rooms"])
}

func TestRoomRegistry_UnknownIsNoop(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())

	assert.Equal(t, 0, reg.Detach("missing", "c1"))
	assert.Empty(t, reg.DetachAll("c1"))
	assert.Empty(t, reg.Members("missing"))
	assert.False(t, reg.IsAttached("missing", "c1"))

	reg.Attach("m1", "c1", nil, models.SessionRoleObserver)
	assert.Equal(t, 1, reg.Detach("m1", "other"))
}

func TestRoomRegistry_DetachAllReportsAffectedRooms(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())
	reg.Attach("m1", "c1", nil, models.SessionRoleObserver)
	reg.Attach("m1", "c2", nil, models.SessionRoleObserver)
	reg.Attach("m2", "c1", nil, models.SessionRoleObserver)
	reg.Attach("m3", "c3", nil, models.SessionRoleObserver)

	affected := reg.DetachAll("c1")

	assert.Equal(t, []RoomCount{{MatchID: "m1", Count: 1}, {MatchID: "m2", Count: 0}}, affected)
	assert.Nil(t, reg.lookup("m2"))
	assert.Equal(t, 1, reg.Count("m3"))
}

func TestRoomRegistry_MembersIsSnapshot(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())
	reg.Attach("m1", "c1", nil, models.SessionRoleObserver)

	snapshot := reg.Members("m1")
	reg.Attach("m1", "c2", nil, models.SessionRoleObserver)
	reg.Detach("m1", "c1")

	require.Len(t, snapshot, 1)
	assert.Equal(t, "c1", snapshot[0].ConnectionID)
}

func TestRoomRegistry_TouchUpdatesActivity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRoomRegistry(clock)
	reg.Attach("m1", "c1", nil, models.SessionRoleObserver)
	attachedAt := clock.Now()

	clock.Advance(time.Minute)
	reg.Touch("m1", "c1")

	members := reg.Members("m1")
	require.Len(t, members, 1)
	assert.Equal(t, attachedAt, members[0].AttachedAt)
	assert.Equal(t, attachedAt.Add(time.Minute), members[0].LastActivity)
}

func TestRoomRegistry_ConcurrentCountMatchesDistinctConnections(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			reg.Attach("m1", conn, nil, models.SessionRoleObserver)
			reg.Attach("m1", conn, nil, models.SessionRoleObserver)
			if i%2 == 0 {
				reg.Detach("m1", conn)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, reg.Count("m1"))
	assert.Len(t, reg.Members("m1"), 25)

	for i := 1; i < 50; i += 2 {
		reg.Detach("m1", fmt.Sprintf("c%d", i))
	}
	assert.Nil(t, reg.lookup("m1"))
}

func TestRoomRegistry_AttachAfterEmptyingRecreatesRoom(t *testing.T) {
	reg := NewRoomRegistry(clockwork.NewFakeClock())
	reg.Attach("m1", "c1", nil, models.SessionRoleObserver)
	reg.Detach("m1", "c1")

	assert.Equal(t, 1, reg.Attach("m1", "c2", nil, models.SessionRoleObserver))
	assert.True(t, reg.IsAttached("m1", "c2"))
}
