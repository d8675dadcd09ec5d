package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itpetinwtbap/quiz/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates every table the store owns.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Package{},
		&models.Question{},
		&models.Match{},
		&models.Session{},
	)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&match).Error; err != nil {
		return nil, wrapErr("get match", err)
	}
	return &match, nil
}

func (s *GormStore) CreateMatch(ctx context.Context, m *models.Match) error {
	return wrapErr("create match", s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

func (s *GormStore) SaveMatch(ctx context.Context, m *models.Match) (*models.Match, error) {
	next := m.Clone()
	next.Version = m.Version + 1
	next.UpdatedAt = time.Now()

	res := s.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ? AND version = ?", m.ID, m.Version).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(next)
	if res.Error != nil {
		return nil, wrapErr("save match", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Match{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return nil, wrapErr("save match", err)
		}
		if count == 0 {
			return nil, fmt.Errorf("save match %s: %w", m.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("save match %s at version %d: %w", m.ID, m.Version, ErrConflict)
	}
	return next, nil
}

func (s *GormStore) DeleteMatch(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Match{})
	if res.Error != nil {
		return false, wrapErr("delete match", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ListMatchesByStatus(ctx context.Context, status models.MatchStatus) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, wrapErr("list matches", err)
}

func (s *GormStore) ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error) {
	var packages []models.Package
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	return packages, wrapErr("list packages", q.Find(&packages).Error)
}

func (s *GormStore) GetPackage(ctx context.Context, id string, withQuestions bool) (*models.Package, error) {
	var pkg models.Package
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if withQuestions {
		q = q.Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_index ASC")
		})
	}
	if err := q.First(&pkg).Error; err != nil {
		return nil, wrapErr("get package", err)
	}
	return &pkg, nil
}

func (s *GormStore) FirstActivePackage(ctx context.Context) (*models.Package, error) {
	var pkg models.Package
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		First(&pkg).Error
	if err != nil {
		return nil, wrapErr("first active package", err)
	}
	return &pkg, nil
}

// CreatePackage inserts the package and its questions in one transaction.
func (s *GormStore) CreatePackage(ctx context.Context, p *models.Package) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions := p.Questions
		p.Questions = nil
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].PackageID = p.ID
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		p.Questions = questions
		return nil
	})
	return wrapErr("create package", err)
}

func (s *GormStore) SavePackage(ctx context.Context, p *models.Package) error {
	return wrapErr("save package", s.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error)
}

func (s *GormStore) DeletePackage(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Package{})
	if res.Error != nil {
		return false, wrapErr("delete package", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) QuestionsByPackage(ctx context.Context, packageID string) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("package_id = ?", packageID).
		Order("order_index ASC").
		Order("created_at ASC").
		Find(&questions).Error
	return questions, wrapErr("questions by package", err)
}

func (s *GormStore) ListQuestions(ctx context.Context, packageID string) ([]models.Question, error) {
	if packageID != "" {
		return s.QuestionsByPackage(ctx, packageID)
	}
	var questions []models.Question
	err := s.db.WithContext(ctx).Order("order_index ASC").Find(&questions).Error
	return questions, wrapErr("list questions", err)
}

func (s *GormStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		return nil, wrapErr("get question", err)
	}
	return &question, nil
}

// UpsertSession inserts the row or, when (connection, match) already exists,
// updates it in place.
func (s *GormStore) UpsertSession(ctx context.Context, session *models.Session) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "connection_id"}, {Name: "match_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "role", "is_active", "last_activity", "updated_at"}),
	}).Create(session).Error
	return wrapErr("upsert session", err)
}

func (s *GormStore) DeactivateSession(ctx context.Context, connectionID, matchID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("connection_id = ? AND match_id = ?", connectionID, matchID).
		Updates(map[string]any{"is_active": false, "last_activity": time.Now()})
	if res.Error != nil {
		return wrapErr("deactivate session", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deactivate session %s/%s: %w", connectionID, matchID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) ListActiveSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&sessions).Error
	return sessions, wrapErr("list active sessions", err)
}
