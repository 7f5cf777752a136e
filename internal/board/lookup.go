package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/board/internal/models"
)

// FindIssue resolves an issue by full ID or a unique case-insensitive prefix.
func (s *Service) FindIssue(ctx context.Context, ref string) (*models.Issue, error) {
	if issue, err := s.GetIssue(ctx, ref); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(ref))
	issues, err := s.ListIssues(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if upper != "" && strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue %s: %w", ref, ErrNotFound)
	case 1:
		// Re-fetch to get comments loaded
		return s.GetIssue(ctx, matches[0].ID)
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", ref, len(matches))
	}
}

// FindUser resolves a user by ID or case-insensitive display name.
func (s *Service) FindUser(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if u, err := s.GetUser(ctx, ref); err == nil {
		return u, nil
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, ref) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", ref, ErrNotFound)
}

// FindUsers resolves each reference with FindUser, keeping order.
func (s *Service) FindUsers(ctx context.Context, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		u, err := s.FindUser(ctx, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}
