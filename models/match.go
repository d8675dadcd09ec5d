package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatchStatus string

const (
	MatchStatusWaiting  MatchStatus = "waiting"
	MatchStatusActive   MatchStatus = "active"
	MatchStatusPaused   MatchStatus = "paused"
	MatchStatusFinished MatchStatus = "finished"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusWaiting, MatchStatusActive, MatchStatusPaused, MatchStatusFinished:
		return true
	}
	return false
}

const DefaultTimeLimit = 60

// Match is the canonical, persisted record of one trivia game.
//
// IsTimerRunning is true exactly when State.TimerStartTime is set, and
// CurrentTimeLeft never goes below zero.
type Match struct {
	ID                string         `json:"id" gorm:"primaryKey;type:uuid"`
	Name              string         `json:"name" gorm:"not null"`
	Status            MatchStatus    `json:"status" gorm:"type:varchar(16);not null;default:'waiting';index"`
	Team1Name         string         `json:"team1Name"`
	Team2Name         string         `json:"team2Name"`
	Team1Score        int            `json:"team1Score" gorm:"not null;default:0"`
	Team2Score        int            `json:"team2Score" gorm:"not null;default:0"`
	DefaultTimeLimit  int            `json:"defaultTimeLimit" gorm:"not null;default:60"` // seconds
	PackageID         *string        `json:"packageId,omitempty" gorm:"type:uuid;index"`
	UsedQuestions     []string       `json:"usedQuestions" gorm:"serializer:json"`
	CurrentQuestionID *string        `json:"currentQuestionId"`
	IsTimerRunning    bool           `json:"isTimerRunning" gorm:"not null;default:false"`
	CurrentTimeLeft   int            `json:"currentTimeLeft" gorm:"not null;default:0"`
	Log               []LogEntry     `json:"gameLog" gorm:"serializer:json"`
	State             TransientState `json:"gameState" gorm:"serializer:json"`
	Version           int            `json:"version" gorm:"not null;default:0"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`

	// Relationships
	Package  *Package  `json:"package,omitempty" gorm:"foreignKey:PackageID;constraint:OnDelete:SET NULL"`
	Sessions []Session `json:"sessions,omitempty" gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

// LogEntry is one append-only line of the match history.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// HasUsed reports whether questionID is already in the used list.
func (m *Match) HasUsed(questionID string) bool {
	for _, id := range m.UsedQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or pointers with m.
func (m *Match) Clone() *Match {
	c := *m
	c.UsedQuestions = append([]string(nil), m.UsedQuestions...)
	c.Log = append([]LogEntry(nil), m.Log...)
	if m.PackageID != nil {
		id := *m.PackageID
		c.PackageID = &id
	}
	if m.CurrentQuestionID != nil {
		id := *m.CurrentQuestionID
		c.CurrentQuestionID = &id
	}
	c.State = m.State.Clone()
	c.Sessions = nil
	c.Package = nil
	return &c
}
