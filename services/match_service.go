package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/rs/zerolog/log"
)

// MatchService covers match creation, lookup and deletion. Everything that
// changes a live match goes through SyncService instead.
type MatchService struct {
	store            store.Store
	timer            *MatchTimer
	defaultTimeLimit int
}

func NewMatchService(st store.Store, timer *MatchTimer, defaultTimeLimit int) *MatchService {
	if defaultTimeLimit <= 0 {
		defaultTimeLimit = models.DefaultTimeLimit
	}
	return &MatchService{store: st, timer: timer, defaultTimeLimit: defaultTimeLimit}
}

type CreateMatchRequest struct {
	Name             string  `json:"name" binding:"required"`
	Team1Name        string  `json:"team1Name"`
	Team2Name        string  `json:"team2Name"`
	DefaultTimeLimit int     `json:"defaultTimeLimit" binding:"omitempty,min=1,max=3600"`
	PackageID        *string `json:"packageId"`
}

// CreateMatch stores a new waiting match. Without an explicit package the
// oldest active one is used, if any.
func (s *MatchService) CreateMatch(ctx context.Context, req *CreateMatchRequest) (*models.Match, error) {
	limit := req.DefaultTimeLimit
	if limit <= 0 {
		limit = s.defaultTimeLimit
	}

	packageID := req.PackageID
	if packageID != nil {
		if _, err := s.store.GetPackage(ctx, *packageID, false); err != nil {
			return nil, fmt.Errorf("package %s: %w", *packageID, err)
		}
	} else {
		pkg, err := s.store.FirstActivePackage(ctx)
		switch {
		case err == nil:
			packageID = &pkg.ID
		case errors.Is(err, ErrNotFound):
			log.Warn().Str("name", req.Name).Msg("creating match without a question package")
		default:
			return nil, err
		}
	}

	team1, team2 := req.Team1Name, req.Team2Name
	if team1 == "" {
		team1 = "Team 1"
	}
	if team2 == "" {
		team2 = "Team 2"
	}

	now := s.timer.Now()
	flipped := false
	selected := limit
	m := &models.Match{
		Name:             req.Name,
		Status:           models.MatchStatusWaiting,
		Team1Name:        team1,
		Team2Name:        team2,
		DefaultTimeLimit: limit,
		PackageID:        packageID,
		UsedQuestions:    []string{},
		CurrentTimeLeft:  limit,
		Log:              []models.LogEntry{{Timestamp: now, Action: "Match created"}},
		State: models.TransientState{
			IsCardFlipped: &flipped,
			SelectedTime:  &selected,
			LastActivity:  &now,
		},
	}
	if err := s.store.CreateMatch(ctx, m); err != nil {
		return nil, err
	}

	log.Info().Str("match_id", m.ID).Str("name", m.Name).Msg("match created")
	return m, nil
}

func (s *MatchService) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	return s.store.GetMatch(ctx, id)
}

func (s *MatchService) ListActive(ctx context.Context) ([]models.Match, error) {
	return s.ListByStatus(ctx, models.MatchStatusActive)
}

func (s *MatchService) ListByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, ErrInvalidAction)
	}
	return s.store.ListMatchesByStatus(ctx, status)
}

func (s *MatchService) DeleteMatch(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteMatch(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	log.Info().Str("match_id", id).Msg("match deleted")
	return nil
}
