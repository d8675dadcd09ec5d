package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Package is an ordered bank of questions a match draws from.
type Package struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string         `json:"name" gorm:"not null"`
	Slug        string         `json:"slug" gorm:"size:255;index"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Author      string         `json:"author,omitempty" gorm:"size:100"`
	Version     string         `json:"version,omitempty" gorm:"size:50"`
	LogoURL     string         `json:"logoUrl,omitempty"`
	IsActive    bool           `json:"isActive" gorm:"not null;default:true"`
	Tags        []string       `json:"tags,omitempty" gorm:"serializer:json"`
	Metadata    map[string]any `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`

	// Relationships
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
}

func (p *Package) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
