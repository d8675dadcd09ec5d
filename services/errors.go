package services

import (
	"errors"

	"github.com/itpetinwtbap/quiz/store"
)

// Error kinds surfaced to transports. Compare with errors.Is.
var (
	ErrNotFound               = store.ErrNotFound
	ErrConflict               = store.ErrConflict
	ErrPersistenceUnavailable = store.ErrUnavailable
	ErrExhausted              = errors.New("no available questions")
	ErrInvalidAction          = errors.New("invalid action")
)

// ErrorKind names the kind of err for wire payloads.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrPersistenceUnavailable):
		return "persistence_unavailable"
	default:
		return "internal"
	}
}
