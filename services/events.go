package services

import (
	"github.com/itpetinwtbap/quiz/models"
)

// Outbound event types.
const (
	EventConnected              = "connected"
	EventAck                    = "ack"
	EventError                  = "error"
	EventPong                   = "pong"
	EventParticipantJoined      = "participant-joined"
	EventParticipantLeft        = "participant-left"
	EventMatchStateUpdated      = "match-state-updated"
	EventQuestionSelected       = "question-selected"
	EventRandomQuestionSelected = "random-question-selected"
	EventTimerUpdated           = "timer-updated"
	EventTimerTimeUpdated       = "timer-time-updated"
	EventScoreUpdated           = "score-updated"
	EventLogAdded               = "log-added"
	EventCardFlipped            = "card-flipped"
	EventMatchReset             = "match-reset"
	EventQuestionsShuffled      = "questions-shuffled"
)

type ParticipantPayload struct {
	ConnectionID      string             `json:"connectionId"`
	DisplayName       *string            `json:"userName,omitempty"`
	Role              models.SessionRole `json:"role,omitempty"`
	ParticipantsCount int                `json:"participantsCount"`
}

type JoinResult struct {
	Match             *MatchView `json:"match"`
	ParticipantsCount int        `json:"participantsCount"`
}

type StateUpdatedPayload struct {
	Updates MatchPatch    `json:"updates"`
	Match   *models.Match `json:"match"`
}

type QuestionSelectedPayload struct {
	Question       models.Question `json:"question"`
	QuestionNumber int             `json:"questionNumber"`
	SelectedBy     string          `json:"selectedBy,omitempty"`
	Match          *models.Match   `json:"match"`
}

type TimerPayload struct {
	Action TimerCommand  `json:"action"`
	Time   *int          `json:"time,omitempty"`
	Match  *models.Match `json:"match"`
}

type TimerTimePayload struct {
	CurrentTime int           `json:"currentTime"`
	Match       *models.Match `json:"match"`
}

type ScorePayload struct {
	Team  Team          `json:"team"`
	Score int           `json:"score"`
	Match *models.Match `json:"match"`
}

type LogPayload struct {
	Entry models.LogEntry `json:"entry"`
	Match *models.Match   `json:"match"`
}

type CardPayload struct {
	IsCardFlipped bool          `json:"isCardFlipped"`
	Match         *models.Match `json:"match"`
}

type MatchPayload struct {
	Match *models.Match `json:"match"`
}
