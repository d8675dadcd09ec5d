package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeText  QuestionType = "text"
	QuestionTypeImage QuestionType = "image"
	QuestionTypeAudio QuestionType = "audio"
	QuestionTypeVideo QuestionType = "video"
)

type Question struct {
	ID         string         `json:"id" gorm:"primaryKey;type:uuid"`
	PackageID  string         `json:"packageId" gorm:"type:uuid;not null;index"`
	Question   string         `json:"question" gorm:"type:text;not null"`
	Answer     string         `json:"answer" gorm:"type:text;not null"`
	Comment    string         `json:"comment,omitempty" gorm:"type:text"`
	Type       QuestionType   `json:"type" gorm:"type:varchar(16);not null;default:'text'"`
	ImageURL   string         `json:"imageUrl,omitempty"`
	AudioURL   string         `json:"audioUrl,omitempty"`
	VideoURL   string         `json:"videoUrl,omitempty"`
	OrderIndex int            `json:"orderIndex" gorm:"not null;default:0"`
	TimeLimit  int            `json:"timeLimit" gorm:"not null;default:60"` // seconds
	Metadata   map[string]any `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func (q *Question) Snapshot() *QuestionSnapshot {
	return &QuestionSnapshot{
		ID:        q.ID,
		Question:  q.Question,
		Answer:    q.Answer,
		Comment:   q.Comment,
		Type:      q.Type,
		ImageURL:  q.ImageURL,
		AudioURL:  q.AudioURL,
		VideoURL:  q.VideoURL,
		TimeLimit: q.TimeLimit,
	}
}
