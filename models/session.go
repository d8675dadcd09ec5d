package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRole string

const (
	SessionRoleHost        SessionRole = "host"
	SessionRoleParticipant SessionRole = "participant"
	SessionRoleObserver    SessionRole = "observer"
)

// ParseSessionRole maps an inbound role string to a known role; anything
// unrecognised becomes an observer.
func ParseSessionRole(s string) SessionRole {
	switch SessionRole(s) {
	case SessionRoleHost, SessionRoleParticipant:
		return SessionRole(s)
	}
	return SessionRoleObserver
}

// Session is the persisted history row of one connection attached to one
// match. Rows are deactivated, never deleted, except by the match cascade.
type Session struct {
	ID           string      `json:"id" gorm:"primaryKey;type:uuid"`
	ConnectionID string      `json:"connectionId" gorm:"size:255;not null;uniqueIndex:idx_session_connection_match"`
	MatchID      string      `json:"matchId" gorm:"type:uuid;not null;uniqueIndex:idx_session_connection_match"`
	DisplayName  *string     `json:"displayName,omitempty"`
	Role         SessionRole `json:"role" gorm:"type:varchar(16);not null;default:'observer'"`
	IsActive     bool        `json:"isActive" gorm:"not null;default:true;index"`
	LastActivity time.Time   `json:"lastActivity"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
