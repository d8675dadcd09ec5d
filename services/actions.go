package services

import (
	"encoding/json"
	"fmt"
)

// ActionName is the wire name of an inbound action.
type ActionName string

const (
	ActionJoin            ActionName = "join"
	ActionLeave           ActionName = "leave"
	ActionUpdateState     ActionName = "update-state"
	ActionSelectQuestion  ActionName = "select-question"
	ActionRandomQuestion  ActionName = "random-question"
	ActionTimerControl    ActionName = "timer-control"
	ActionTimerTimeUpdate ActionName = "timer-time-update"
	ActionUpdateScore     ActionName = "update-score"
	ActionAddLog          ActionName = "add-log"
	ActionFlipCard        ActionName = "flip-card"
	ActionResetMatch      ActionName = "reset-match"
	ActionShuffle         ActionName = "shuffle-questions"
	ActionRequestState    ActionName = "request-state"
	ActionPing            ActionName = "ping"
)

// Action is one decoded inbound action. The set of implementations is closed;
// SyncService.Handle switches over all of them.
type Action interface {
	Name() ActionName
}

type JoinAction struct {
	DisplayName *string `json:"userName,omitempty"`
	Role        string  `json:"role,omitempty"`
}

type LeaveAction struct{}

type UpdateStateAction struct {
	Patch MatchPatch
}

type SelectQuestionAction struct {
	QuestionNumber int    `json:"questionNumber,omitempty"`
	QuestionID     string `json:"questionId,omitempty"`
}

type RandomQuestionAction struct{}

type TimerControlAction struct {
	Action TimerCommand `json:"action"`
	Time   *int         `json:"time,omitempty"`
}

type TimerTimeUpdateAction struct {
	CurrentTime int `json:"currentTime"`
}

type UpdateScoreAction struct {
	Team  Team `json:"team"`
	Score int  `json:"score"`
}

type AddLogAction struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type FlipCardAction struct{}

type ResetMatchAction struct{}

type ShuffleAction struct{}

type RequestStateAction struct{}

type PingAction struct{}

func (JoinAction) Name() ActionName            { return ActionJoin }
func (LeaveAction) Name() ActionName           { return ActionLeave }
func (UpdateStateAction) Name() ActionName     { return ActionUpdateState }
func (SelectQuestionAction) Name() ActionName  { return ActionSelectQuestion }
func (RandomQuestionAction) Name() ActionName  { return ActionRandomQuestion }
func (TimerControlAction) Name() ActionName    { return ActionTimerControl }
func (TimerTimeUpdateAction) Name() ActionName { return ActionTimerTimeUpdate }
func (UpdateScoreAction) Name() ActionName     { return ActionUpdateScore }
func (AddLogAction) Name() ActionName          { return ActionAddLog }
func (FlipCardAction) Name() ActionName        { return ActionFlipCard }
func (ResetMatchAction) Name() ActionName      { return ActionResetMatch }
func (ShuffleAction) Name() ActionName         { return ActionShuffle }
func (RequestStateAction) Name() ActionName    { return ActionRequestState }
func (PingAction) Name() ActionName            { return ActionPing }

// InboundMessage is the websocket envelope a client sends.
type InboundMessage struct {
	Type      ActionName      `json:"type"`
	MatchID   string          `json:"matchId"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DecodeAction builds the typed action for name from its JSON payload.
func DecodeAction(name ActionName, payload json.RawMessage) (Action, error) {
	var action Action
	switch name {
	case ActionJoin:
		var a JoinAction
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionLeave:
		action = LeaveAction{}
	case ActionUpdateState:
		var a UpdateStateAction
		if err := unmarshalPayload(payload, &a.Patch); err != nil {
			return nil, err
		}
		action = a
	case ActionSelectQuestion:
		var a SelectQuestionAction
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		if a.QuestionID == "" && a.QuestionNumber < 1 {
			return nil, fmt.Errorf("select-question needs questionNumber or questionId: %w", ErrInvalidAction)
		}
		action = a
	case ActionRandomQuestion:
		action = RandomQuestionAction{}
	case ActionTimerControl:
		var a TimerControlAction
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionTimerTimeUpdate:
		var a TimerTimeUpdateAction
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionUpdateScore:
		var a UpdateScoreAction
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionAddLog:
		var a AddLogAction
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionFlipCard:
		action = FlipCardAction{}
	case ActionResetMatch:
		action = ResetMatchAction{}
	case ActionShuffle:
		action = ShuffleAction{}
	case ActionRequestState:
		action = RequestStateAction{}
	case ActionPing:
		action = PingAction{}
	default:
		return nil, fmt.Errorf("unknown action %q: %w", name, ErrInvalidAction)
	}
	return action, nil
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w: %v", ErrInvalidAction, err)
	}
	return nil
}
