package store

import (
	"context"
	"errors"

	"github.com/joescharf/board/internal/models"
)

// ErrNotFound is wrapped by every lookup that targets a missing row.
var ErrNotFound = errors.New("not found")

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	Status models.IssueStatus
}

// Store defines the persistence interface for the board.
type Store interface {
	// Project
	GetProject(ctx context.Context) (*models.Project, error)
	SaveProject(ctx context.Context, p *models.Project) error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	// MutateIssue loads the issue, applies fn, and writes the result in one
	// transaction. If fn returns an error nothing is written.
	MutateIssue(ctx context.Context, id string, fn func(issue *models.Issue) error) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id string) error
	MinListPosition(ctx context.Context, status models.IssueStatus) (float64, error)

	// Comments
	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	UpdateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id string) error

	// Lifecycle
	Reset(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
