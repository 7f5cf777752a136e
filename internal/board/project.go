package board

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

const (
	MaxProjectNameLength        = 100
	MaxProjectDescriptionLength = 1000
)

// ProjectPatch is the project settings form. Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string
	URL         *string
	Description *string
	Category    *models.ProjectCategory
}

// DefaultProject is returned until settings are saved for the first time.
func DefaultProject() *models.Project {
	return &models.Project{Name: "Untitled project", Category: models.ProjectCategorySoftware}
}

// GetProject returns the saved settings, or DefaultProject.
func (s *Service) GetProject(ctx context.Context) (*models.Project, error) {
	p, err := s.store.GetProject(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultProject(), nil
	}
	if err != nil {
		return nil, wrapStoreErr("get_project", err)
	}
	return p, nil
}

// UpdateProject validates the whole form and saves it. Every invalid field
// is reported together in ValidationErrors.
func (s *Service) UpdateProject(ctx context.Context, patch ProjectPatch) (*models.Project, error) {
	const op = "update_project"
	start := time.Now()

	p, err := s.GetProject(ctx)
	if err != nil {
		s.record(op, start, err)
		return nil, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.URL != nil {
		p.URL = strings.TrimSpace(*patch.URL)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}

	if err := ValidateProject(p); err != nil {
		s.record(op, start, err)
		return nil, err
	}

	err = s.store.SaveProject(ctx, p)
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return p, nil
}

// ValidateProject checks every project field.
func ValidateProject(p *models.Project) error {
	var errs ValidationErrors
	switch n := utf8.RuneCountInString(p.Name); {
	case n == 0:
		errs = append(errs, invalid("name", "is required"))
	case n > MaxProjectNameLength:
		errs = append(errs, invalid("name", "must be at most %d characters", MaxProjectNameLength))
	}
	if p.URL != "" && !validURL(p.URL) {
		errs = append(errs, invalid("url", "must be a valid URL"))
	}
	if utf8.RuneCountInString(models.PlainText(p.Description)) > MaxProjectDescriptionLength {
		errs = append(errs, invalid("description", "must be at most %d characters", MaxProjectDescriptionLength))
	}
	if !p.Category.Valid() {
		errs = append(errs, invalid("category", "unknown category %q", p.Category))
	}
	return errs.err()
}

func validURL(raw string) bool {
	if strings.ContainsAny(raw, " \t\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
