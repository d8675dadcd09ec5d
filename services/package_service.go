package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/store"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

type PackageService struct {
	store store.QuestionStore
	timer *MatchTimer
}

func NewPackageService(st store.QuestionStore, timer *MatchTimer) *PackageService {
	return &PackageService{store: st, timer: timer}
}

type CreatePackageRequest struct {
	Name        string                  `json:"name" binding:"required"`
	Description string                  `json:"description"`
	Author      string                  `json:"author"`
	Version     string                  `json:"version"`
	LogoURL     string                  `json:"logoUrl"`
	Tags        []string                `json:"tags"`
	Metadata    map[string]any          `json:"metadata"`
	Questions   []CreateQuestionRequest `json:"questions" binding:"dive"`
}

type CreateQuestionRequest struct {
	Question  string              `json:"question" binding:"required"`
	Answer    string              `json:"answer" binding:"required"`
	Comment   string              `json:"comment"`
	Type      models.QuestionType `json:"type"`
	ImageURL  string              `json:"imageUrl"`
	AudioURL  string              `json:"audioUrl"`
	VideoURL  string              `json:"videoUrl"`
	TimeLimit int                 `json:"timeLimit" binding:"omitempty,min=1,max=3600"`
	Metadata  map[string]any      `json:"metadata"`
}

type UpdatePackageRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Author      *string         `json:"author"`
	Version     *string         `json:"version"`
	LogoURL     *string         `json:"logoUrl"`
	IsActive    *bool           `json:"isActive"`
	Tags        *[]string       `json:"tags"`
	Metadata    *map[string]any `json:"metadata"`
}

// SIGamePackage is the exported JSON form of an SIGame question bank.
type SIGamePackage struct {
	Name        string `json:"name" binding:"required"`
	Author      string `json:"author"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Rounds      []struct {
		Name   string `json:"name"`
		Themes []struct {
			Name      string `json:"name"`
			Questions []struct {
				Price    int      `json:"price"`
				Question string   `json:"question"`
				Answer   string   `json:"answer"`
				Type     string   `json:"type"`
				Sources  []string `json:"sources"`
				Comments string   `json:"comments"`
			} `json:"questions"`
		} `json:"themes"`
	} `json:"rounds"`
}

func (s *PackageService) ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error) {
	return s.store.ListPackages(ctx, activeOnly)
}

func (s *PackageService) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	return s.store.GetPackage(ctx, id, true)
}

func (s *PackageService) CreatePackage(ctx context.Context, req *CreatePackageRequest) (*models.Package, error) {
	pkg := &models.Package{
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Description: req.Description,
		Author:      req.Author,
		Version:     req.Version,
		LogoURL:     req.LogoURL,
		IsActive:    true,
		Tags:        req.Tags,
		Metadata:    req.Metadata,
	}
	for i, q := range req.Questions {
		qType := q.Type
		if qType == "" {
			qType = models.QuestionTypeText
		}
		limit := q.TimeLimit
		if limit <= 0 {
			limit = models.DefaultTimeLimit
		}
		pkg.Questions = append(pkg.Questions, models.Question{
			Question:   q.Question,
			Answer:     q.Answer,
			Comment:    q.Comment,
			Type:       qType,
			ImageURL:   q.ImageURL,
			AudioURL:   q.AudioURL,
			VideoURL:   q.VideoURL,
			OrderIndex: i,
			TimeLimit:  limit,
			Metadata:   q.Metadata,
		})
	}

	if err := s.store.CreatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	log.Info().Str("package_id", pkg.ID).Str("slug", pkg.Slug).Int("questions", len(pkg.Questions)).Msg("package created")
	return pkg, nil
}

func (s *PackageService) UpdatePackage(ctx context.Context, id string, req *UpdatePackageRequest) (*models.Package, error) {
	pkg, err := s.store.GetPackage(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		pkg.Name = *req.Name
		pkg.Slug = slug.Make(*req.Name)
	}
	if req.Description != nil {
		pkg.Description = *req.Description
	}
	if req.Author != nil {
		pkg.Author = *req.Author
	}
	if req.Version != nil {
		pkg.Version = *req.Version
	}
	if req.LogoURL != nil {
		pkg.LogoURL = *req.LogoURL
	}
	if req.IsActive != nil {
		pkg.IsActive = *req.IsActive
	}
	if req.Tags != nil {
		pkg.Tags = *req.Tags
	}
	if req.Metadata != nil {
		pkg.Metadata = *req.Metadata
	}

	if err := s.store.SavePackage(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *PackageService) TogglePackage(ctx context.Context, id string) (*models.Package, error) {
	pkg, err := s.store.GetPackage(ctx, id, false)
	if err != nil {
		return nil, err
	}
	pkg.IsActive = !pkg.IsActive
	if err := s.store.SavePackage(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *PackageService) DeletePackage(ctx context.Context, id string) error {
	deleted, err := s.store.DeletePackage(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("package %s: %w", id, ErrNotFound)
	}
	return nil
}

// ImportSIGame flattens rounds, themes and questions into one ordered
// package.
func (s *PackageService) ImportSIGame(ctx context.Context, src *SIGamePackage) (*models.Package, error) {
	pkg := &models.Package{
		Name:        src.Name,
		Slug:        slug.Make(src.Name),
		Author:      src.Author,
		Version:     src.Version,
		Description: src.Description,
		IsActive:    true,
		Tags:        []string{"imported", "sigame"},
		Metadata: map[string]any{
			"source":     "SIGame",
			"importedAt": s.timer.Now().UTC().Format(time.RFC3339),
		},
	}

	order := 0
	for _, round := range src.Rounds {
		for _, theme := range round.Themes {
			for _, q := range theme.Questions {
				meta := map[string]any{
					"round": round.Name,
					"theme": theme.Name,
					"price": q.Price,
				}
				if len(q.Sources) > 0 {
					meta["sources"] = q.Sources
				}
				pkg.Questions = append(pkg.Questions, models.Question{
					Question:   q.Question,
					Answer:     q.Answer,
					Comment:    q.Comments,
					Type:       siGameQuestionType(q.Type),
					OrderIndex: order,
					TimeLimit:  models.DefaultTimeLimit,
					Metadata:   meta,
				})
				order++
			}
		}
	}

	if err := s.store.CreatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	log.Info().Str("package_id", pkg.ID).Int("questions", order).Msg("sigame package imported")
	return pkg, nil
}

func (s *PackageService) ListQuestions(ctx context.Context, packageID string) ([]models.Question, error) {
	return s.store.ListQuestions(ctx, packageID)
}

func (s *PackageService) PackageQuestions(ctx context.Context, packageID string) ([]models.Question, error) {
	if _, err := s.store.GetPackage(ctx, packageID, false); err != nil {
		return nil, err
	}
	return s.store.QuestionsByPackage(ctx, packageID)
}

func (s *PackageService) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.store.GetQuestion(ctx, id)
}

func siGameQuestionType(t string) models.QuestionType {
	switch strings.ToLower(t) {
	case "image":
		return models.QuestionTypeImage
	case "audio":
		return models.QuestionTypeAudio
	case "video":
		return models.QuestionTypeVideo
	}
	return models.QuestionTypeText
}
