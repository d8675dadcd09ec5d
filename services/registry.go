package services

import (
	"sort"
	"sync"
	"time"

	"github.com/itpetinwtbap/quiz/models"

	"github.com/jonboulle/clockwork"
)

// Attachment is one live connection's presence in a match room.
type Attachment struct {
	ConnectionID string             `json:"connectionId"`
	DisplayName  *string            `json:"displayName,omitempty"`
	Role         models.SessionRole `json:"role"`
	AttachedAt   time.Time          `json:"attachedAt"`
	LastActivity time.Time          `json:"lastActivity"`
}

// RoomCount is a match's membership count after a removal.
type RoomCount struct {
	MatchID string
	Count   int
}

// RoomRegistry tracks which connections are attached to which match. It is
// purely in-memory and independent of the persisted session rows.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	clock clockwork.Clock
}

type room struct {
	mu      sync.RWMutex
	members map[string]Attachment
	// retired rooms have been emptied and are (being) removed from the map
	retired bool
}

func NewRoomRegistry(clock clockwork.Clock) *RoomRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoomRegistry{
		rooms: make(map[string]*room),
		clock: clock,
	}
}

// Attach upserts the (matchID, connectionID) entry and returns the match's
// membership count.
func (r *RoomRegistry) Attach(matchID, connectionID string, displayName *string, role models.SessionRole) int {
	now := r.clock.Now()
	for {
		rm := r.roomFor(matchID)

		rm.mu.Lock()
		if rm.retired {
			rm.mu.Unlock()
			continue
		}
		entry, exists := rm.members[connectionID]
		if !exists {
			entry = Attachment{ConnectionID: connectionID, AttachedAt: now}
		}
		entry.DisplayName = displayName
		entry.Role = role
		entry.LastActivity = now
		rm.members[connectionID] = entry
		count := len(rm.members)
		rm.mu.Unlock()
		return count
	}
}

// Detach removes the entry and returns the remaining membership count.
// An emptied room is dropped from the registry.
func (r *RoomRegistry) Detach(matchID, connectionID string) int {
	rm := r.lookup(matchID)
	if rm == nil {
		return 0
	}
	count, _ := r.detachFrom(matchID, rm, connectionID)
	return count
}

// DetachAll removes connectionID from every room it is attached to and
// returns the post-removal count of each affected match.
func (r *RoomRegistry) DetachAll(connectionID string) []RoomCount {
	r.mu.RLock()
	candidates := make(map[string]*room, len(r.rooms))
	for matchID, rm := range r.rooms {
		candidates[matchID] = rm
	}
	r.mu.RUnlock()

	var affected []RoomCount
	for matchID, rm := range candidates {
		if count, removed := r.detachFrom(matchID, rm, connectionID); removed {
			affected = append(affected, RoomCount{MatchID: matchID, Count: count})
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].MatchID < affected[j].MatchID })
	return affected
}

// Members returns a copy of the current attachments of matchID, oldest first.
func (r *RoomRegistry) Members(matchID string) []Attachment {
	rm := r.lookup(matchID)
	if rm == nil {
		return nil
	}

	rm.mu.RLock()
	members := make([]Attachment, 0, len(rm.members))
	for _, a := range rm.members {
		members = append(members, a)
	}
	rm.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		if members[i].AttachedAt.Equal(members[j].AttachedAt) {
			return members[i].ConnectionID < members[j].ConnectionID
		}
		return members[i].AttachedAt.Before(members[j].AttachedAt)
	})
	return members
}

func (r *RoomRegistry) Count(matchID string) int {
	rm := r.lookup(matchID)
	if rm == nil {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

func (r *RoomRegistry) IsAttached(matchID, connectionID string) bool {
	rm := r.lookup(matchID)
	if rm == nil {
		return false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.members[connectionID]
	return ok
}

// Touch refreshes the last-activity stamp of an attachment, if present.
func (r *RoomRegistry) Touch(matchID, connectionID string) {
	rm := r.lookup(matchID)
	if rm == nil {
		return
	}
	rm.mu.Lock()
	if a, ok := rm.members[connectionID]; ok {
		a.LastActivity = r.clock.Now()
		rm.members[connectionID] = a
	}
	rm.mu.Unlock()
}

// Stats reports room and attachment totals for health output.
func (r *RoomRegistry) Stats() map[string]interface{} {
	r.mu.RLock()
	rooms := make(map[string]*room, len(r.rooms))
	for id, rm := range r.rooms {
		rooms[id] = rm
	}
	r.mu.RUnlock()

	total := 0
	perMatch := make(map[string]int, len(rooms))
	for id, rm := range rooms {
		rm.mu.RLock()
		n := len(rm.members)
		rm.mu.RUnlock()
		if n == 0 {
			continue
		}
		perMatch[id] = n
		total += n
	}

	return map[string]interface{}{
		"total_attachments": total,
		"active_rooms":      len(perMatch),
		"room_attachments":  perMatch,
	}
}

// Close drops every room. The registry is unusable for delivery afterwards
// until connections attach again.
func (r *RoomRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rm := range r.rooms {
		rm.mu.Lock()
		rm.retired = true
		rm.members = map[string]Attachment{}
		rm.mu.Unlock()
		delete(r.rooms, id)
	}
}

func (r *RoomRegistry) lookup(matchID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[matchID]
}

func (r *RoomRegistry) roomFor(matchID string) *room {
	if rm := r.lookup(matchID); rm != nil {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[matchID]
	if !ok {
		rm = &room{members: make(map[string]Attachment)}
		r.rooms[matchID] = rm
	}
	return rm
}

func (r *RoomRegistry) detachFrom(matchID string, rm *room, connectionID string) (int, bool) {
	rm.mu.Lock()
	if rm.retired {
		rm.mu.Unlock()
		return 0, false
	}
	_, removed := rm.members[connectionID]
	delete(rm.members, connectionID)
	count := len(rm.members)
	if count == 0 {
		rm.retired = true
	}
	rm.mu.Unlock()

	if count == 0 {
		r.mu.Lock()
		if r.rooms[matchID] == rm {
			delete(r.rooms, matchID)
		}
		r.mu.Unlock()
	}
	return count, removed
}
