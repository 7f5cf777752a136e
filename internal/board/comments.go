package board

import (
	"context"
	"strings"
	"time"

	"github.com/joescharf/board/internal/models"
)

// CanSubmitComment reports whether body may be saved. The Save action stays
// disabled while this is false.
func CanSubmitComment(body string) bool {
	return strings.TrimSpace(body) != ""
}

func commentBody(body string) (string, error) {
	if !CanSubmitComment(body) {
		return "", invalid("body", "comment cannot be empty")
	}
	return strings.TrimSpace(body), nil
}

// AddComment appends a comment to the end of the issue's discussion.
func (s *Service) AddComment(ctx context.Context, issueID, authorID, body string) (*models.Comment, error) {
	const op = "add_comment"
	start := time.Now()

	text, err := commentBody(body)
	if err != nil {
		s.record(op, start, err)
		return nil, err
	}
	if strings.TrimSpace(authorID) == "" {
		err := invalid("userId", "is required")
		s.record(op, start, err)
		return nil, err
	}
	if err := s.checkUsers(ctx, op, []string{authorID}, "userId", "userId"); err != nil {
		s.record(op, start, err)
		return nil, err
	}

	c := &models.Comment{IssueID: issueID, AuthorID: authorID, Body: text}
	err = s.store.CreateComment(ctx, c)
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return c, nil
}

// EditComment replaces a comment's body. Author and creation time are kept.
func (s *Service) EditComment(ctx context.Context, commentID, body string) (*models.Comment, error) {
	const op = "edit_comment"
	start := time.Now()

	text, err := commentBody(body)
	if err != nil {
		s.record(op, start, err)
		return nil, err
	}

	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		s.record(op, start, err)
		return nil, wrapStoreErr(op, err)
	}
	c.Body = text
	err = s.store.UpdateComment(ctx, c)
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return c, nil
}

// GetComment returns a single comment.
func (s *Service) GetComment(ctx context.Context, commentID string) (*models.Comment, error) {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, wrapStoreErr("get_comment", err)
	}
	return c, nil
}

// PrepareDeleteComment returns the pending hard delete of a comment.
func (s *Service) PrepareDeleteComment(ctx context.Context, commentID string) (*Pending, error) {
	if _, err := s.GetComment(ctx, commentID); err != nil {
		return nil, err
	}
	return NewPending("Are you sure you want to delete this comment?", func(ctx context.Context) error {
		const op = "delete_comment"
		start := time.Now()
		err := s.store.DeleteComment(ctx, commentID)
		s.record(op, start, err)
		return wrapStoreErr(op, err)
	}), nil
}
