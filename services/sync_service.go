package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/rs/zerolog/log"
)

// SyncService is the entry point for every inbound action, whichever
// transport carried it. Each action runs inside its match's turn: the
// reconciler mutation, the save and the broadcast all happen before the next
// action on that match starts.
type SyncService struct {
	registry    *RoomRegistry
	reconciler  *StateReconciler
	sessions    *SessionService
	broadcaster *Broadcaster
	turns       *matchTurns
	timeout     time.Duration
}

func NewSyncService(st store.Store, registry *RoomRegistry, timer *MatchTimer, broadcaster *Broadcaster, timeout time.Duration) *SyncService {
	turns := newMatchTurns()
	reconciler := NewStateReconciler(st, st, timer)
	return &SyncService{
		registry:    registry,
		reconciler:  reconciler,
		sessions:    NewSessionService(st, registry, reconciler, broadcaster, turns, timeout),
		broadcaster: broadcaster,
		turns:       turns,
		timeout:     timeout,
	}
}

// Handle runs action for connectionID against matchID. An empty
// connectionID means the action came from outside any live connection (HTTP)
// and every room member receives the event. The returned value is what the
// originator is acknowledged with.
func (s *SyncService) Handle(ctx context.Context, connectionID, matchID, requestID string, action Action) (interface{}, error) {
	if _, ok := action.(PingAction); ok {
		s.broadcaster.SendTo(connectionID, Message{Type: EventPong, MatchID: matchID, RequestID: requestID, Payload: map[string]int64{"timestamp": s.reconciler.timer.Now().UnixMilli()}})
		return nil, nil
	}
	if matchID == "" {
		return nil, fmt.Errorf("%s without match id: %w", action.Name(), ErrInvalidAction)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	release, err := s.turns.acquire(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	if connectionID != "" {
		s.registry.Touch(matchID, connectionID)
	}

	event, result, err := s.apply(ctx, connectionID, matchID, action)
	if err != nil {
		return nil, err
	}

	var ack *Message
	if connectionID != "" {
		ack = &Message{
			Type:      EventAck,
			RequestID: requestID,
			Payload:   AckPayload{Action: action.Name(), Result: result},
		}
	}
	if event != nil {
		s.broadcaster.Publish(matchID, connectionID, *event, ack)
	} else if ack != nil {
		ack.MatchID = matchID
		s.broadcaster.SendTo(connectionID, *ack)
	}
	return result, nil
}

func (s *SyncService) apply(ctx context.Context, connectionID, matchID string, action Action) (*Message, interface{}, error) {
	switch a := action.(type) {
	case JoinAction:
		if connectionID == "" {
			return nil, nil, fmt.Errorf("join without a connection: %w", ErrInvalidAction)
		}
		role := models.ParseSessionRole(a.Role)
		view, count, err := s.sessions.Join(ctx, matchID, connectionID, a.DisplayName, role)
		if err != nil {
			return nil, nil, err
		}
		return &Message{
				Type: EventParticipantJoined,
				Payload: ParticipantPayload{
					ConnectionID:      connectionID,
					DisplayName:       a.DisplayName,
					Role:              role,
					ParticipantsCount: count,
				},
			},
			JoinResult{Match: view, ParticipantsCount: count}, nil

	case LeaveAction:
		if connectionID == "" {
			return nil, nil, fmt.Errorf("leave without a connection: %w", ErrInvalidAction)
		}
		count, err := s.sessions.Leave(ctx, matchID, connectionID)
		if err != nil {
			return nil, nil, err
		}
		payload := ParticipantPayload{ConnectionID: connectionID, ParticipantsCount: count}
		return &Message{Type: EventParticipantLeft, Payload: payload}, payload, nil

	case UpdateStateAction:
		m, err := s.reconciler.ApplyPartial(ctx, matchID, a.Patch)
		if err != nil {
			return nil, nil, err
		}
		payload := StateUpdatedPayload{Updates: a.Patch, Match: s.snapshot(m)}
		return &Message{Type: EventMatchStateUpdated, Payload: payload}, payload, nil

	case SelectQuestionAction:
		m, sel, err := s.reconciler.SelectQuestion(ctx, matchID, QuestionRef{Number: a.QuestionNumber, ID: a.QuestionID})
		if err != nil {
			return nil, nil, err
		}
		payload := QuestionSelectedPayload{Question: sel.Question, QuestionNumber: sel.QuestionNumber, Match: s.snapshot(m)}
		return &Message{Type: EventQuestionSelected, Payload: payload}, payload, nil

	case RandomQuestionAction:
		m, sel, err := s.reconciler.SelectRandomQuestion(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		payload := QuestionSelectedPayload{
			Question:       sel.Question,
			QuestionNumber: sel.QuestionNumber,
			SelectedBy:     connectionID,
			Match:          s.snapshot(m),
		}
		return &Message{Type: EventRandomQuestionSelected, Payload: payload}, payload, nil

	case TimerControlAction:
		m, err := s.reconciler.ControlTimer(ctx, matchID, a.Action, a.Time)
		if err != nil {
			return nil, nil, err
		}
		payload := TimerPayload{Action: a.Action, Time: a.Time, Match: s.snapshot(m)}
		return &Message{Type: EventTimerUpdated, Payload: payload}, payload, nil

	case TimerTimeUpdateAction:
		m, err := s.reconciler.UpdateTimerTime(ctx, matchID, a.CurrentTime)
		if err != nil {
			return nil, nil, err
		}
		payload := TimerTimePayload{CurrentTime: m.CurrentTimeLeft, Match: s.snapshot(m)}
		return &Message{Type: EventTimerTimeUpdated, Payload: payload}, payload, nil

	case UpdateScoreAction:
		m, err := s.reconciler.UpdateScore(ctx, matchID, a.Team, a.Score)
		if err != nil {
			return nil, nil, err
		}
		payload := ScorePayload{Team: a.Team, Score: a.Score, Match: s.snapshot(m)}
		return &Message{Type: EventScoreUpdated, Payload: payload}, payload, nil

	case AddLogAction:
		m, err := s.reconciler.AppendLog(ctx, matchID, a.Message, a.Details)
		if err != nil {
			return nil, nil, err
		}
		payload := LogPayload{Entry: m.Log[len(m.Log)-1], Match: s.snapshot(m)}
		return &Message{Type: EventLogAdded, Payload: payload}, payload, nil

	case FlipCardAction:
		m, err := s.reconciler.FlipCard(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		payload := CardPayload{IsCardFlipped: m.State.CardFlipped(), Match: s.snapshot(m)}
		return &Message{Type: EventCardFlipped, Payload: payload}, payload, nil

	case ResetMatchAction:
		m, err := s.reconciler.ResetMatch(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		payload := MatchPayload{Match: s.snapshot(m)}
		return &Message{Type: EventMatchReset, Payload: payload}, payload, nil

	case ShuffleAction:
		m, err := s.reconciler.Shuffle(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		payload := MatchPayload{Match: s.snapshot(m)}
		return &Message{Type: EventQuestionsShuffled, Payload: payload}, payload, nil

	case RequestStateAction:
		view, err := s.sessions.View(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		return nil, view, nil
	}

	return nil, nil, fmt.Errorf("unhandled action %q: %w", action.Name(), ErrInvalidAction)
}

// HandleMessage decodes one websocket frame and runs it. Failures are
// reported to the sending connection only.
func (s *SyncService) HandleMessage(ctx context.Context, connectionID string, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(connectionID, "", "", "", fmt.Errorf("malformed message: %w: %v", ErrInvalidAction, err))
		return
	}

	action, err := DecodeAction(msg.Type, msg.Payload)
	if err != nil {
		s.sendError(connectionID, msg.MatchID, msg.RequestID, msg.Type, err)
		return
	}

	if _, err := s.Handle(ctx, connectionID, msg.MatchID, msg.RequestID, action); err != nil {
		s.sendError(connectionID, msg.MatchID, msg.RequestID, msg.Type, err)
	}
}

// Disconnect cleans up after a connection that went away without leaving.
func (s *SyncService) Disconnect(ctx context.Context, connectionID string) {
	s.sessions.OnDisconnect(ctx, connectionID)
}

// State returns the full view of matchID.
func (s *SyncService) State(ctx context.Context, matchID string) (*MatchView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	release, err := s.turns.acquire(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.sessions.View(ctx, matchID)
}

// SaveState is the last-resort write a page sends while unloading. It never
// reports failure.
func (s *SyncService) SaveState(ctx context.Context, matchID string, patch MatchPatch) {
	if _, err := s.Handle(ctx, "", matchID, "", UpdateStateAction{Patch: patch}); err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("best-effort state save failed")
	}
}

func (s *SyncService) snapshot(m *models.Match) *models.Match {
	c := m.Clone()
	c.CurrentTimeLeft = s.reconciler.Remaining(m)
	return c
}

func (s *SyncService) sendError(connectionID, matchID, requestID string, action ActionName, err error) {
	kind := ErrorKind(err)
	evt := log.Warn()
	if kind == "internal" || errors.Is(err, ErrPersistenceUnavailable) {
		evt = log.Error()
	}
	evt.Err(err).
		Str("connection_id", connectionID).
		Str("match_id", matchID).
		Str("action", string(action)).
		Str("kind", kind).
		Msg("action failed")

	s.broadcaster.SendTo(connectionID, Message{
		Type:      EventError,
		MatchID:   matchID,
		RequestID: requestID,
		Payload:   ErrorPayload{Action: action, Kind: kind, Message: err.Error()},
	})
}
