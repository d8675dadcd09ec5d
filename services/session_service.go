package services

import (
	"context"
	"errors"
	"time"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/rs/zerolog/log"
)

// MatchView is the full bootstrap state a viewer receives on join or on an
// explicit state request.
type MatchView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Status            models.MatchStatus `json:"status"`
	Team1Name         string             `json:"team1Name"`
	Team2Name         string             `json:"team2Name"`
	Team1Score        int                `json:"team1Score"`
	Team2Score        int                `json:"team2Score"`
	DefaultTimeLimit  int                `json:"defaultTimeLimit"`
	PackageID         *string            `json:"packageId,omitempty"`
	UsedQuestions     []string           `json:"usedQuestions"`
	CurrentQuestionID *string            `json:"currentQuestionId"`
	CurrentQuestion   *models.Question   `json:"currentQuestion"`
	IsTimerRunning    bool               `json:"isTimerRunning"`
	CurrentTimeLeft   int                `json:"currentTimeLeft"`
	TimerStartTime    *time.Time         `json:"timerStartTime,omitempty"`
	Log               []models.LogEntry  `json:"gameLog"`
	Package           *models.Package    `json:"package,omitempty"`
	Questions         []models.Question  `json:"questions"`
	ActiveSessions    int                `json:"activeSessions"`
	IsCardFlipped     bool               `json:"isCardFlipped"`
	SelectedTime      int                `json:"selectedTime"`
	LastActivity      time.Time          `json:"lastActivity"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// SessionService bridges live attachments in the RoomRegistry to the
// persisted session rows.
//
// Join, Leave and View expect the caller to hold the match turn.
// OnDisconnect takes the turns itself.
type SessionService struct {
	store       store.Store
	registry    *RoomRegistry
	reconciler  *StateReconciler
	broadcaster *Broadcaster
	turns       *matchTurns
	timeout     time.Duration
}

func NewSessionService(st store.Store, registry *RoomRegistry, reconciler *StateReconciler, broadcaster *Broadcaster, turns *matchTurns, timeout time.Duration) *SessionService {
	return &SessionService{
		store:       st,
		registry:    registry,
		reconciler:  reconciler,
		broadcaster: broadcaster,
		turns:       turns,
		timeout:     timeout,
	}
}

// Join attaches connectionID to matchID and records the session row. The
// registry entry is kept even if the row cannot be written.
func (s *SessionService) Join(ctx context.Context, matchID, connectionID string, displayName *string, role models.SessionRole) (*MatchView, int, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, 0, err
	}

	count := s.registry.Attach(matchID, connectionID, displayName, role)

	err := s.store.UpsertSession(ctx, &models.Session{
		ConnectionID: connectionID,
		MatchID:      matchID,
		DisplayName:  displayName,
		Role:         role,
		IsActive:     true,
		LastActivity: s.reconciler.timer.Now(),
	})
	if err != nil {
		log.Error().Err(err).
			Str("match_id", matchID).
			Str("connection_id", connectionID).
			Msg("failed to persist session row")
		return nil, count, err
	}

	view, err := s.View(ctx, matchID)
	if err != nil {
		return nil, count, err
	}

	log.Info().
		Str("match_id", matchID).
		Str("connection_id", connectionID).
		Str("role", string(role)).
		Int("participants", count).
		Msg("connection joined match")
	return view, count, nil
}

// Leave detaches connectionID from matchID and marks its row inactive.
func (s *SessionService) Leave(ctx context.Context, matchID, connectionID string) (int, error) {
	count := s.registry.Detach(matchID, connectionID)

	if err := s.store.DeactivateSession(ctx, connectionID, matchID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).
			Str("match_id", matchID).
			Str("connection_id", connectionID).
			Msg("failed to deactivate session row")
		return count, err
	}

	log.Info().
		Str("match_id", matchID).
		Str("connection_id", connectionID).
		Int("participants", count).
		Msg("connection left match")
	return count, nil
}

// OnDisconnect removes a dropped connection from every room it was in and
// tells each room's remaining members once.
func (s *SessionService) OnDisconnect(ctx context.Context, connectionID string) {
	affected := s.registry.DetachAll(connectionID)
	for _, rc := range affected {
		s.notifyLeft(ctx, rc, connectionID)
	}
	if len(affected) > 0 {
		log.Info().Str("connection_id", connectionID).Int("matches", len(affected)).Msg("connection dropped")
	}
}

func (s *SessionService) notifyLeft(ctx context.Context, rc RoomCount, connectionID string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	release, err := s.turns.acquire(ctx, rc.MatchID)
	if err != nil {
		log.Error().Err(err).Str("match_id", rc.MatchID).Str("connection_id", connectionID).Msg("gave up waiting for match turn")
		return
	}
	defer release()

	err = s.store.DeactivateSession(ctx, connectionID, rc.MatchID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).
			Str("match_id", rc.MatchID).
			Str("connection_id", connectionID).
			Msg("failed to deactivate session row after disconnect")
		return
	}

	s.broadcaster.Publish(rc.MatchID, connectionID, Message{
		Type: EventParticipantLeft,
		Payload: ParticipantPayload{
			ConnectionID:      connectionID,
			ParticipantsCount: rc.Count,
		},
	}, nil)
}

// View builds the bootstrap state of matchID, persisting a lazy timer expiry
// first if one is due.
func (s *SessionService) View(ctx context.Context, matchID string) (*MatchView, error) {
	m, err := s.reconciler.Current(ctx, matchID)
	if err != nil {
		return nil, err
	}

	questions, err := s.reconciler.Questions(ctx, m)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []models.Question{}
	}

	var pkg *models.Package
	if m.PackageID != nil {
		pkg, err = s.store.GetPackage(ctx, *m.PackageID, false)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	view := &MatchView{
		ID:                m.ID,
		Name:              m.Name,
		Status:            m.Status,
		Team1Name:         m.Team1Name,
		Team2Name:         m.Team2Name,
		Team1Score:        m.Team1Score,
		Team2Score:        m.Team2Score,
		DefaultTimeLimit:  m.DefaultTimeLimit,
		PackageID:         m.PackageID,
		UsedQuestions:     m.UsedQuestions,
		CurrentQuestionID: m.CurrentQuestionID,
		IsTimerRunning:    m.IsTimerRunning,
		CurrentTimeLeft:   s.reconciler.Remaining(m),
		TimerStartTime:    m.State.TimerStartTime,
		Log:               m.Log,
		Package:           pkg,
		Questions:         questions,
		ActiveSessions:    s.registry.Count(matchID),
		IsCardFlipped:     m.State.CardFlipped(),
		SelectedTime:      timerBasis(m),
		LastActivity:      m.UpdatedAt,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if view.UsedQuestions == nil {
		view.UsedQuestions = []string{}
	}
	if view.Log == nil {
		view.Log = []models.LogEntry{}
	}
	if m.State.LastActivity != nil {
		view.LastActivity = *m.State.LastActivity
	}
	if m.CurrentQuestionID != nil {
		for i := range questions {
			if questions[i].ID == *m.CurrentQuestionID {
				view.CurrentQuestion = &questions[i]
				break
			}
		}
	}
	return view, nil
}
