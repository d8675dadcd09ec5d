package models

import "time"

// TransientState holds the fast-changing match fields that are stored as a
// single JSON column. A nil field means "never set".
type TransientState struct {
	IsCardFlipped   *bool             `json:"isCardFlipped,omitempty"`
	SelectedTime    *int              `json:"selectedTime,omitempty"`
	CurrentQuestion *QuestionSnapshot `json:"currentQuestion,omitempty"`
	LastActivity    *time.Time        `json:"lastActivity,omitempty"`
	// Set only while the countdown runs.
	TimerStartTime *time.Time `json:"timerStartTime,omitempty"`
}

// QuestionSnapshot is the denormalized copy of the current question kept in
// the transient state.
type QuestionSnapshot struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	Comment   string       `json:"comment,omitempty"`
	Type      QuestionType `json:"type"`
	ImageURL  string       `json:"imageUrl,omitempty"`
	AudioURL  string       `json:"audioUrl,omitempty"`
	VideoURL  string       `json:"videoUrl,omitempty"`
	TimeLimit int          `json:"timeLimit"`
}

func (s TransientState) Clone() TransientState {
	c := TransientState{}
	if s.IsCardFlipped != nil {
		v := *s.IsCardFlipped
		c.IsCardFlipped = &v
	}
	if s.SelectedTime != nil {
		v := *s.SelectedTime
		c.SelectedTime = &v
	}
	if s.CurrentQuestion != nil {
		v := *s.CurrentQuestion
		c.CurrentQuestion = &v
	}
	if s.LastActivity != nil {
		v := *s.LastActivity
		c.LastActivity = &v
	}
	if s.TimerStartTime != nil {
		v := *s.TimerStartTime
		c.TimerStartTime = &v
	}
	return c
}

// CardFlipped reads the card flag, treating an unset flag as face down.
func (s TransientState) CardFlipped() bool {
	return s.IsCardFlipped != nil && *s.IsCardFlipped
}
