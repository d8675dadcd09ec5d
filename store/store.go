// Package store is the persistent record store for matches, question
// packages and session history rows.
package store

import (
	"context"
	"errors"

	"github.com/itpetinwtbap/quiz/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record was modified concurrently")
	ErrUnavailable = errors.New("persistence unavailable")
)

// MatchStore reads and writes match records.
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	CreateMatch(ctx context.Context, m *models.Match) error
	// SaveMatch persists m if the stored version still equals m.Version and
	// returns the record with its version advanced. A stale version yields
	// ErrConflict.
	SaveMatch(ctx context.Context, m *models.Match) (*models.Match, error)
	DeleteMatch(ctx context.Context, id string) (bool, error)
	ListMatchesByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error)
}

// QuestionStore reads and writes packages and their questions.
type QuestionStore interface {
	ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error)
	GetPackage(ctx context.Context, id string, withQuestions bool) (*models.Package, error)
	FirstActivePackage(ctx context.Context) (*models.Package, error)
	CreatePackage(ctx context.Context, p *models.Package) error
	SavePackage(ctx context.Context, p *models.Package) error
	DeletePackage(ctx context.Context, id string) (bool, error)
	QuestionsByPackage(ctx context.Context, packageID string) ([]models.Question, error)
	ListQuestions(ctx context.Context, packageID string) ([]models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
}

// SessionStore keeps the session history rows keyed by (connection, match).
type SessionStore interface {
	UpsertSession(ctx context.Context, s *models.Session) error
	DeactivateSession(ctx context.Context, connectionID, matchID string) error
	ListActiveSessions(ctx context.Context) ([]models.Session, error)
}

// Store is everything the service layer needs from persistence.
type Store interface {
	MatchStore
	QuestionStore
	SessionStore
}
