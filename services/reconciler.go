package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/rs/zerolog/log"
)

// MatchPatch is an inbound partial update. A nil field means "no opinion"
// and leaves the stored value untouched.
type MatchPatch struct {
	Name              *string             `json:"name,omitempty"`
	Status            *models.MatchStatus `json:"status,omitempty"`
	Team1Name         *string             `json:"team1Name,omitempty"`
	Team2Name         *string             `json:"team2Name,omitempty"`
	Team1Score        *int                `json:"team1Score,omitempty"`
	Team2Score        *int                `json:"team2Score,omitempty"`
	DefaultTimeLimit  *int                `json:"defaultTimeLimit,omitempty"`
	UsedQuestions     *[]string           `json:"usedQuestions,omitempty"`
	CurrentQuestionID *string             `json:"currentQuestionId,omitempty"`
	IsTimerRunning    *bool               `json:"isTimerRunning,omitempty"`
	CurrentTimeLeft   *int                `json:"currentTimeLeft,omitempty"`

	// transient state
	IsCardFlipped   *bool                    `json:"isCardFlipped,omitempty"`
	SelectedTime    *int                     `json:"selectedTime,omitempty"`
	CurrentQuestion *models.QuestionSnapshot `json:"currentQuestion,omitempty"`
}

type Team string

const (
	Team1 Team = "team1"
	Team2 Team = "team2"
)

type TimerCommand string

const (
	TimerStart TimerCommand = "start"
	TimerPause TimerCommand = "pause"
	TimerReset TimerCommand = "reset"
)

// QuestionRef addresses a question either by its 1-based position in the
// package or by identity. ID wins when both are set.
type QuestionRef struct {
	Number int
	ID     string
}

// SelectedQuestion is a resolved question and its 1-based package position.
type SelectedQuestion struct {
	Question       models.Question `json:"question"`
	QuestionNumber int             `json:"questionNumber"`
}

// StateReconciler turns inbound updates into new canonical match records.
// Every public mutation loads the record, applies one change, appends at most
// one log entry, stamps last activity and persists with a single save.
//
// Callers serialize mutations per match (see matchTurns); the reconciler
// itself holds no locks.
type StateReconciler struct {
	matches   store.MatchStore
	questions store.QuestionStore
	timer     *MatchTimer
	intn      func(n int) int
}

func NewStateReconciler(matches store.MatchStore, questions store.QuestionStore, timer *MatchTimer) *StateReconciler {
	return &StateReconciler{
		matches:   matches,
		questions: questions,
		timer:     timer,
		intn:      rand.Intn,
	}
}

type mutation func(m *models.Match, now time.Time) (*models.LogEntry, error)

func (r *StateReconciler) mutate(ctx context.Context, matchID string, fn mutation) (*models.Match, error) {
	current, err := r.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	now := r.timer.Now()
	expireIfDue(working, now)

	entry, err := fn(working, now)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		entry.Timestamp = now
		working.Log = append(working.Log, *entry)
	}
	working.State.LastActivity = &now

	saved, err := r.matches.SaveMatch(ctx, working)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Current returns the match record, first persisting a lazy timer expiry when
// the running countdown has reached zero.
func (r *StateReconciler) Current(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := r.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !timerDue(m, r.timer.Now()) {
		return m, nil
	}

	log.Debug().Str("match_id", matchID).Msg("countdown expired on read, persisting stop")
	return r.mutate(ctx, matchID, func(*models.Match, time.Time) (*models.LogEntry, error) {
		return nil, nil
	})
}

// Remaining is the live remaining time of m at now.
func (r *StateReconciler) Remaining(m *models.Match) int {
	if m.IsTimerRunning && m.State.TimerStartTime != nil {
		return ElapsedRemaining(*m.State.TimerStartTime, timerBasis(m), r.timer.Now())
	}
	return m.CurrentTimeLeft
}

func (r *StateReconciler) ApplyPartial(ctx context.Context, matchID string, patch MatchPatch) (*models.Match, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		r.applyPatch(m, patch, now)
		return nil, nil
	})
}

func (r *StateReconciler) SelectQuestion(ctx context.Context, matchID string, ref QuestionRef) (*models.Match, *SelectedQuestion, error) {
	var selected *SelectedQuestion
	m, err := r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		questions, err := r.packageQuestions(ctx, m)
		if err != nil {
			return nil, err
		}

		index := -1
		if ref.ID != "" {
			for i := range questions {
				if questions[i].ID == ref.ID {
					index = i
					break
				}
			}
		} else if ref.Number >= 1 && ref.Number <= len(questions) {
			index = ref.Number - 1
		}
		if index < 0 {
			return nil, fmt.Errorf("question %s in match %s: %w", ref, matchID, ErrNotFound)
		}

		selected = &SelectedQuestion{Question: questions[index], QuestionNumber: index + 1}
		markCurrent(m, &questions[index])
		return &models.LogEntry{
			Action:  fmt.Sprintf("Question %d selected", selected.QuestionNumber),
			Details: map[string]any{"questionId": questions[index].ID},
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return m, selected, nil
}

func (r *StateReconciler) SelectRandomQuestion(ctx context.Context, matchID string) (*models.Match, *SelectedQuestion, error) {
	var selected *SelectedQuestion
	m, err := r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		questions, err := r.packageQuestions(ctx, m)
		if err != nil {
			return nil, err
		}

		available := make([]int, 0, len(questions))
		for i := range questions {
			if !m.HasUsed(questions[i].ID) {
				available = append(available, i)
			}
		}
		if len(available) == 0 {
			return nil, fmt.Errorf("match %s: %w", matchID, ErrExhausted)
		}

		index := available[r.intn(len(available))]
		selected = &SelectedQuestion{Question: questions[index], QuestionNumber: index + 1}
		markCurrent(m, &questions[index])
		return &models.LogEntry{
			Action:  fmt.Sprintf("Random question %d selected", selected.QuestionNumber),
			Details: map[string]any{"questionId": questions[index].ID},
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return m, selected, nil
}

func (r *StateReconciler) ControlTimer(ctx context.Context, matchID string, cmd TimerCommand, seconds *int) (*models.Match, error) {
	if seconds != nil && *seconds < 0 {
		return nil, fmt.Errorf("timer seconds %d: %w", *seconds, ErrInvalidAction)
	}
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		switch cmd {
		case TimerStart:
			if seconds != nil {
				v := *seconds
				m.State.SelectedTime = &v
			}
			r.startTimer(m)
		case TimerPause:
			r.pauseTimer(m)
		case TimerReset:
			ts := r.timer.Reset(seconds, m.DefaultTimeLimit)
			m.IsTimerRunning = false
			m.State.TimerStartTime = nil
			m.CurrentTimeLeft = ts.Remaining
		default:
			return nil, fmt.Errorf("timer command %q: %w", cmd, ErrInvalidAction)
		}

		action := fmt.Sprintf("Timer %s", cmd)
		if seconds != nil {
			action = fmt.Sprintf("Timer %s (%ds)", cmd, *seconds)
		}
		return &models.LogEntry{Action: action}, nil
	})
}

// UpdateTimerTime overwrites the remaining-seconds snapshot.
func (r *StateReconciler) UpdateTimerTime(ctx context.Context, matchID string, seconds int) (*models.Match, error) {
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		m.CurrentTimeLeft = max(seconds, 0)
		return nil, nil
	})
}

func (r *StateReconciler) UpdateScore(ctx context.Context, matchID string, team Team, score int) (*models.Match, error) {
	if team != Team1 && team != Team2 {
		return nil, fmt.Errorf("team %q: %w", team, ErrInvalidAction)
	}
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		if team == Team1 {
			m.Team1Score = score
		} else {
			m.Team2Score = score
		}
		return &models.LogEntry{Action: fmt.Sprintf("%s score updated to %d", team, score)}, nil
	})
}

func (r *StateReconciler) AppendLog(ctx context.Context, matchID, message string, details map[string]any) (*models.Match, error) {
	if message == "" {
		return nil, fmt.Errorf("empty log message: %w", ErrInvalidAction)
	}
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		return &models.LogEntry{Action: message, Details: details}, nil
	})
}

// FlipCard toggles the card face.
func (r *StateReconciler) FlipCard(ctx context.Context, matchID string) (*models.Match, error) {
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		flipped := !m.State.CardFlipped()
		m.State.IsCardFlipped = &flipped
		return &models.LogEntry{Action: "Card flipped"}, nil
	})
}

// ResetMatch rewinds scores, question history and timer.
func (r *StateReconciler) ResetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		flipped := false
		selected := m.DefaultTimeLimit

		m.Status = models.MatchStatusWaiting
		m.Team1Score = 0
		m.Team2Score = 0
		m.UsedQuestions = []string{}
		m.CurrentQuestionID = nil
		m.IsTimerRunning = false
		m.CurrentTimeLeft = m.DefaultTimeLimit
		m.State.TimerStartTime = nil
		m.State.CurrentQuestion = nil
		m.State.IsCardFlipped = &flipped
		m.State.SelectedTime = &selected
		return &models.LogEntry{Action: "Match reset"}, nil
	})
}

// Shuffle makes every question selectable again without touching scores or
// the timer.
func (r *StateReconciler) Shuffle(ctx context.Context, matchID string) (*models.Match, error) {
	return r.mutate(ctx, matchID, func(m *models.Match, now time.Time) (*models.LogEntry, error) {
		m.UsedQuestions = []string{}
		m.CurrentQuestionID = nil
		m.State.CurrentQuestion = nil
		return &models.LogEntry{Action: "Questions shuffled"}, nil
	})
}

// Questions returns the ordered question list of the match's package.
func (r *StateReconciler) Questions(ctx context.Context, m *models.Match) ([]models.Question, error) {
	if m.PackageID == nil {
		return nil, nil
	}
	return r.questions.QuestionsByPackage(ctx, *m.PackageID)
}

func (r *StateReconciler) packageQuestions(ctx context.Context, m *models.Match) ([]models.Question, error) {
	if m.PackageID == nil {
		return nil, fmt.Errorf("match %s has no question package: %w", m.ID, ErrNotFound)
	}
	return r.questions.QuestionsByPackage(ctx, *m.PackageID)
}

func (r *StateReconciler) applyPatch(m *models.Match, p MatchPatch, now time.Time) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Team1Name != nil {
		m.Team1Name = *p.Team1Name
	}
	if p.Team2Name != nil {
		m.Team2Name = *p.Team2Name
	}
	if p.Team1Score != nil {
		m.Team1Score = *p.Team1Score
	}
	if p.Team2Score != nil {
		m.Team2Score = *p.Team2Score
	}
	if p.DefaultTimeLimit != nil {
		m.DefaultTimeLimit = *p.DefaultTimeLimit
	}
	if p.UsedQuestions != nil {
		m.UsedQuestions = dedupe(*p.UsedQuestions)
	}
	if p.CurrentQuestionID != nil {
		id := *p.CurrentQuestionID
		m.CurrentQuestionID = &id
	}
	if p.IsCardFlipped != nil {
		v := *p.IsCardFlipped
		m.State.IsCardFlipped = &v
	}
	if p.SelectedTime != nil {
		v := *p.SelectedTime
		m.State.SelectedTime = &v
	}
	if p.CurrentQuestion != nil {
		q := *p.CurrentQuestion
		m.State.CurrentQuestion = &q
	}

	if p.IsTimerRunning != nil && *p.IsTimerRunning != m.IsTimerRunning {
		if *p.IsTimerRunning {
			r.startTimer(m)
		} else {
			r.pauseTimer(m)
		}
	}
	if p.CurrentTimeLeft != nil {
		m.CurrentTimeLeft = max(*p.CurrentTimeLeft, 0)
	}
}

func (r *StateReconciler) startTimer(m *models.Match) {
	ts := r.timer.Start(m.State.SelectedTime, m.DefaultTimeLimit)
	m.IsTimerRunning = true
	m.State.TimerStartTime = ts.StartedAt
	m.CurrentTimeLeft = ts.Remaining
}

func (r *StateReconciler) pauseTimer(m *models.Match) {
	if m.State.TimerStartTime != nil {
		ts := r.timer.Pause(*m.State.TimerStartTime, timerBasis(m))
		m.CurrentTimeLeft = ts.Remaining
	}
	m.IsTimerRunning = false
	m.State.TimerStartTime = nil
}

func (p MatchPatch) validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("status %q: %w", *p.Status, ErrInvalidAction)
	}
	if p.DefaultTimeLimit != nil && *p.DefaultTimeLimit <= 0 {
		return fmt.Errorf("default time limit %d: %w", *p.DefaultTimeLimit, ErrInvalidAction)
	}
	if p.SelectedTime != nil && *p.SelectedTime <= 0 {
		return fmt.Errorf("selected time %d: %w", *p.SelectedTime, ErrInvalidAction)
	}
	return nil
}

func (q QuestionRef) String() string {
	if q.ID != "" {
		return q.ID
	}
	return fmt.Sprintf("#%d", q.Number)
}

// timerBasis is the duration a running countdown started from.
func timerBasis(m *models.Match) int {
	if m.State.SelectedTime != nil {
		return *m.State.SelectedTime
	}
	return m.DefaultTimeLimit
}

func timerDue(m *models.Match, now time.Time) bool {
	if !m.IsTimerRunning {
		return false
	}
	if m.State.TimerStartTime == nil {
		return true
	}
	return ElapsedRemaining(*m.State.TimerStartTime, timerBasis(m), now) <= 0
}

// expireIfDue clamps a countdown that has run out to stopped at zero.
func expireIfDue(m *models.Match, now time.Time) bool {
	if !timerDue(m, now) {
		return false
	}
	if m.State.TimerStartTime != nil {
		m.CurrentTimeLeft = 0
	}
	m.IsTimerRunning = false
	m.State.TimerStartTime = nil
	return true
}

func markCurrent(m *models.Match, q *models.Question) {
	id := q.ID
	m.CurrentQuestionID = &id
	if !m.HasUsed(q.ID) {
		m.UsedQuestions = append(m.UsedQuestions, q.ID)
	}
	m.State.CurrentQuestion = q.Snapshot()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
