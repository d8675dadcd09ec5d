package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory store.Store with the same version semantics as
// the gorm implementation.
type memStore struct {
	mu        sync.Mutex
	matches   map[string]*models.Match
	packages  map[string]*models.Package
	questions map[string][]models.Question
	sessions  map[string]*models.Session

	saveErr    error
	sessionErr error
	saves      int
}

func newMemStore() *memStore {
	return &memStore{
		matches:   make(map[string]*models.Match),
		packages:  make(map[string]*models.Package),
		questions: make(map[string][]models.Question),
		sessions:  make(map[string]*models.Session),
	}
}

var _ store.Store = (*memStore)(nil)

func (s *memStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("get match: %w", store.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *memStore) CreateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *memStore) SaveMatch(_ context.Context, m *models.Match) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	current, ok := s.matches[m.ID]
	if !ok {
		return nil, fmt.Errorf("save match: %w", store.ErrNotFound)
	}
	if current.Version != m.Version {
		return nil, fmt.Errorf("save match: %w", store.ErrConflict)
	}
	next := m.Clone()
	next.Version++
	next.UpdatedAt = time.Now()
	s.matches[m.ID] = next
	s.saves++
	return next.Clone(), nil
}

func (s *memStore) DeleteMatch(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return false, nil
	}
	delete(s.matches, id)
	for key, row := range s.sessions {
		if row.MatchID == id {
			delete(s.sessions, key)
		}
	}
	return true, nil
}

func (s *memStore) ListMatchesByStatus(_ context.Context, status models.MatchStatus) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.Status == status {
			out = append(out, *m.Clone())
		}
	}
	return out, nil
}

func (s *memStore) ListPackages(_ context.Context, activeOnly bool) ([]models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Package
	for _, p := range s.packages {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) GetPackage(_ context.Context, id string, withQuestions bool) (*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, fmt.Errorf("get package: %w", store.ErrNotFound)
	}
	c := *p
	c.Questions = nil
	if withQuestions {
		c.Questions = append([]models.Question(nil), s.questions[id]...)
	}
	return &c, nil
}

func (s *memStore) FirstActivePackage(_ context.Context) (*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first *models.Package
	for _, p := range s.packages {
		if p.IsActive && (first == nil || p.CreatedAt.Before(first.CreatedAt)) {
			first = p
		}
	}
	if first == nil {
		return nil, fmt.Errorf("first active package: %w", store.ErrNotFound)
	}
	c := *first
	return &c, nil
}

func (s *memStore) CreatePackage(_ context.Context, p *models.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	for i := range p.Questions {
		if p.Questions[i].ID == "" {
			p.Questions[i].ID = uuid.NewString()
		}
		p.Questions[i].PackageID = p.ID
	}
	c := *p
	c.Questions = nil
	s.packages[p.ID] = &c
	s.questions[p.ID] = append([]models.Question(nil), p.Questions...)
	return nil
}

func (s *memStore) SavePackage(_ context.Context, p *models.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	c.Questions = nil
	s.packages[p.ID] = &c
	return nil
}

func (s *memStore) DeletePackage(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packages[id]; !ok {
		return false, nil
	}
	delete(s.packages, id)
	delete(s.questions, id)
	return true, nil
}

func (s *memStore) QuestionsByPackage(_ context.Context, packageID string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Question(nil), s.questions[packageID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *memStore) ListQuestions(ctx context.Context, packageID string) ([]models.Question, error) {
	if packageID != "" {
		return s.QuestionsByPackage(ctx, packageID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Question
	for _, qs := range s.questions {
		out = append(out, qs...)
	}
	return out, nil
}

func (s *memStore) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, qs := range s.questions {
		for i := range qs {
			if qs[i].ID == id {
				q := qs[i]
				return &q, nil
			}
		}
	}
	return nil, fmt.Errorf("get question: %w", store.ErrNotFound)
}

func sessionKey(connectionID, matchID string) string {
	return connectionID + "|" + matchID
}

func (s *memStore) UpsertSession(_ context.Context, row *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return s.sessionErr
	}
	key := sessionKey(row.ConnectionID, row.MatchID)
	if existing, ok := s.sessions[key]; ok {
		existing.DisplayName = row.DisplayName
		existing.Role = row.Role
		existing.IsActive = row.IsActive
		existing.LastActivity = row.LastActivity
		return nil
	}
	c := *row
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.sessions[key] = &c
	return nil
}

func (s *memStore) DeactivateSession(_ context.Context, connectionID, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return s.sessionErr
	}
	row, ok := s.sessions[sessionKey(connectionID, matchID)]
	if !ok {
		return fmt.Errorf("deactivate session: %w", store.ErrNotFound)
	}
	row.IsActive = false
	return nil
}

func (s *memStore) ListActiveSessions(_ context.Context) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, row := range s.sessions {
		if row.IsActive {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out, nil
}

func (s *memStore) session(connectionID, matchID string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[sessionKey(connectionID, matchID)]
	if !ok {
		return models.Session{}, false
	}
	return *row, true
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) setSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *memStore) setSessionErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionErr = err
}

// seedMatch stores a package with n questions and a waiting match using it.
func seedMatch(t *testing.T, st *memStore, n int) (*models.Match, []models.Question) {
	t.Helper()
	ctx := context.Background()

	pkg := &models.Package{Name: "General knowledge", IsActive: true}
	for i := 0; i < n; i++ {
		pkg.Questions = append(pkg.Questions, models.Question{
			Question:   fmt.Sprintf("Question %d?", i+1),
			Answer:     fmt.Sprintf("Answer %d", i+1),
			Type:       models.QuestionTypeText,
			OrderIndex: i,
			TimeLimit:  models.DefaultTimeLimit,
		})
	}
	require.NoError(t, st.CreatePackage(ctx, pkg))

	m := &models.Match{
		Name:             "Friday night",
		Status:           models.MatchStatusWaiting,
		Team1Name:        "Owls",
		Team2Name:        "Foxes",
		DefaultTimeLimit: models.DefaultTimeLimit,
		PackageID:        &pkg.ID,
		UsedQuestions:    []string{},
		CurrentTimeLeft:  models.DefaultTimeLimit,
	}
	require.NoError(t, st.CreateMatch(ctx, m))

	questions, err := st.QuestionsByPackage(ctx, pkg.ID)
	require.NoError(t, err)
	return m, questions
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
