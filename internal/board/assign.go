package board

import (
	"context"

	"github.com/joescharf/board/internal/models"
)

// SetReporter replaces the issue's reporter. The user must exist.
func (s *Service) SetReporter(ctx context.Context, id, userID string) (*models.Issue, error) {
	return s.update(ctx, "set_reporter", id, Patch{ReporterID: &userID})
}

// SetAssignees replaces the assignee list. Order is kept, repeats collapse
// to their first occurrence, and an empty list clears all assignees.
func (s *Service) SetAssignees(ctx context.Context, id string, userIDs []string) (*models.Issue, error) {
	ids := append([]string{}, userIDs...)
	return s.update(ctx, "set_assignees", id, Patch{AssigneeIDs: &ids})
}
