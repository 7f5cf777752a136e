// Package board is the issue and board domain engine: issue lifecycle,
// column grouping, assignment, time tracking, comments and filtering on
// top of a store.Store.
package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

const (
	// DefaultRecentWindow is how far back "recently updated" reaches.
	DefaultRecentWindow = 72 * time.Hour

	MaxTitleLength = 255
)

// Service runs every board operation against a store. Each mutation is one
// store transaction and is durable when the call returns.
type Service struct {
	store        store.Store
	now          func() time.Time
	recentWindow time.Duration
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for recency filtering.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecentWindow sets the "recently updated" window. Non-positive values are ignored.
func WithRecentWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recentWindow = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:        st,
		now:          time.Now,
		recentWindow: DefaultRecentWindow,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecentWindow returns the configured recency window.
func (s *Service) RecentWindow() time.Duration { return s.recentWindow }

// Draft is the create-issue form.
type Draft struct {
	Type        models.IssueType
	Title       string
	Description string
	Status      models.IssueStatus   // default backlog
	Priority    models.IssuePriority // default medium
	ReporterID  string               // default the acting user
	AssigneeIDs []string
	Estimate    *float64
}

// Patch is a partial issue update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Type        *models.IssueType
	Status      *models.IssueStatus
	Priority    *models.IssuePriority
	ReporterID  *string
	AssigneeIDs *[]string // pointer to an empty slice clears
	Estimate    *float64
	// ClearEstimate removes the estimate entirely; it wins over Estimate.
	ClearEstimate bool
	TimeLogged    *float64
	TimeRemaining *float64
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil && p.Status == nil &&
		p.Priority == nil && p.ReporterID == nil && p.AssigneeIDs == nil && p.Estimate == nil &&
		!p.ClearEstimate && p.TimeLogged == nil && p.TimeRemaining == nil
}

// CreateIssue validates the draft and stores a new issue at the top of its column.
func (s *Service) CreateIssue(ctx context.Context, actorID string, d Draft) (*models.Issue, error) {
	const op = "create_issue"
	start := time.Now()

	var errs ValidationErrors
	title, verr := normalizeTitle(d.Title)
	if verr != nil {
		errs = append(errs, verr)
	}
	if d.Type == "" {
		errs = append(errs, invalid("type", "is required"))
	} else if !d.Type.Valid() {
		errs = append(errs, invalid("type", "unknown type %q", d.Type))
	}
	if d.Status == "" {
		d.Status = models.IssueStatusBacklog
	} else if !d.Status.Valid() {
		errs = append(errs, invalid("status", "unknown status %q", d.Status))
	}
	if d.Priority == "" {
		d.Priority = models.IssuePriorityMedium
	} else if !d.Priority.Valid() {
		errs = append(errs, invalid("priority", "unknown priority %q", d.Priority))
	}
	if d.ReporterID == "" {
		d.ReporterID = actorID
	}
	if d.ReporterID == "" {
		errs = append(errs, invalid("reporterId", "is required"))
	}
	if d.Estimate != nil {
		if verr := checkHours("estimate", *d.Estimate); verr != nil {
			errs = append(errs, verr)
		}
	}
	if err := errs.err(); err != nil {
		s.record(op, start, err)
		return nil, err
	}

	assignees := dedupe(d.AssigneeIDs)
	users := append([]string{d.ReporterID}, assignees...)
	if err := s.checkUsers(ctx, op, users, "reporterId", "userIds"); err != nil {
		s.record(op, start, err)
		return nil, err
	}

	top, err := s.topOf(ctx, op, d.Status)
	if err != nil {
		s.record(op, start, err)
		return nil, err
	}

	issue := &models.Issue{
		Title:        title,
		Description:  d.Description,
		Type:         d.Type,
		Status:       d.Status,
		Priority:     d.Priority,
		ReporterID:   d.ReporterID,
		AssigneeIDs:  assignees,
		Estimate:     d.Estimate,
		ListPosition: top,
		Comments:     []*models.Comment{},
	}
	err = s.store.CreateIssue(ctx, issue)
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	s.logger.Info("issue created", "id", issue.ID, "type", issue.Type, "status", issue.Status)
	return issue, nil
}

// GetIssue returns one issue with assignees and comments.
func (s *Service) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get_issue", err)
	}
	return issue, nil
}

// ListIssues returns every issue in board order without comments.
func (s *Service) ListIssues(ctx context.Context) ([]*models.Issue, error) {
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, wrapStoreErr("list_issues", err)
	}
	return issues, nil
}

// UpdateIssue applies a partial patch atomically. An invalid field rejects
// the whole patch and nothing is written.
func (s *Service) UpdateIssue(ctx context.Context, id string, p Patch) (*models.Issue, error) {
	return s.update(ctx, "update_issue", id, p)
}

func (s *Service) update(ctx context.Context, op, id string, p Patch) (*models.Issue, error) {
	start := time.Now()
	if err := s.normalizePatch(ctx, op, &p); err != nil {
		s.record(op, start, err)
		return nil, err
	}

	var top float64
	if p.Status != nil {
		var err error
		if top, err = s.topOf(ctx, op, *p.Status); err != nil {
			s.record(op, start, err)
			return nil, err
		}
	}

	issue, err := s.store.MutateIssue(ctx, id, func(issue *models.Issue) error {
		p.apply(issue, top)
		return nil
	})
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return issue, nil
}

// mutate runs fn inside one store transaction. Errors returned by fn abort
// the write and are passed through unchanged.
func (s *Service) mutate(ctx context.Context, op, id string, fn func(issue *models.Issue) error) (*models.Issue, error) {
	start := time.Now()
	issue, err := s.store.MutateIssue(ctx, id, fn)
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return issue, nil
}

// PrepareDeleteIssue returns the pending hard delete of an issue and its comments.
func (s *Service) PrepareDeleteIssue(ctx context.Context, id string) (*Pending, error) {
	if _, err := s.GetIssue(ctx, id); err != nil {
		return nil, err
	}
	return NewPending("Are you sure you want to delete this issue?", func(ctx context.Context) error {
		const op = "delete_issue"
		start := time.Now()
		err := s.store.DeleteIssue(ctx, id)
		s.record(op, start, err)
		if err != nil {
			return wrapStoreErr(op, err)
		}
		s.logger.Info("issue deleted", "id", id)
		return nil
	}), nil
}

// ListUsers returns every board member.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, wrapStoreErr("list_users", err)
	}
	return users, nil
}

// CreateUser adds a board member.
func (s *Service) CreateUser(ctx context.Context, name, avatarURL string) (*models.User, error) {
	const op = "create_user"
	start := time.Now()
	u := &models.User{Name: strings.TrimSpace(name), AvatarURL: strings.TrimSpace(avatarURL)}
	if u.Name == "" {
		err := invalid("name", "is required")
		s.record(op, start, err)
		return nil, err
	}
	err := s.store.CreateUser(ctx, u)
	s.record(op, start, err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get_user", err)
	}
	return u, nil
}

func (p *Patch) apply(issue *models.Issue, top float64) {
	if p.Title != nil {
		issue.Title = *p.Title
	}
	if p.Description != nil {
		issue.Description = *p.Description
	}
	if p.Type != nil {
		issue.Type = *p.Type
	}
	if p.Status != nil && *p.Status != issue.Status {
		issue.Status = *p.Status
		issue.ListPosition = top
	}
	if p.Priority != nil {
		issue.Priority = *p.Priority
	}
	if p.ReporterID != nil {
		issue.ReporterID = *p.ReporterID
	}
	if p.AssigneeIDs != nil {
		issue.AssigneeIDs = *p.AssigneeIDs
	}
	if p.ClearEstimate {
		issue.Estimate = nil
	} else if p.Estimate != nil {
		v := *p.Estimate
		issue.Estimate = &v
	}
	if p.TimeLogged != nil {
		issue.TimeLogged = *p.TimeLogged
	}
	if p.TimeRemaining != nil {
		issue.TimeRemaining = *p.TimeRemaining
	}
}

// normalizePatch trims and validates every set field in place.
func (s *Service) normalizePatch(ctx context.Context, op string, p *Patch) error {
	var errs ValidationErrors
	if p.Title != nil {
		title, verr := normalizeTitle(*p.Title)
		if verr != nil {
			errs = append(errs, verr)
		}
		p.Title = &title
	}
	if p.Type != nil && !p.Type.Valid() {
		errs = append(errs, invalid("type", "unknown type %q", *p.Type))
	}
	if p.Status != nil && !p.Status.Valid() {
		errs = append(errs, invalid("status", "unknown status %q", *p.Status))
	}
	if p.Priority != nil && !p.Priority.Valid() {
		errs = append(errs, invalid("priority", "unknown priority %q", *p.Priority))
	}
	if p.ReporterID != nil && strings.TrimSpace(*p.ReporterID) == "" {
		errs = append(errs, invalid("reporterId", "is required"))
	}
	if p.Estimate != nil && !p.ClearEstimate {
		if verr := checkHours("estimate", *p.Estimate); verr != nil {
			errs = append(errs, verr)
		}
	}
	if p.TimeLogged != nil {
		if verr := checkHours("timeSpent", *p.TimeLogged); verr != nil {
			errs = append(errs, verr)
		}
	}
	if p.TimeRemaining != nil {
		if verr := checkHours("timeRemaining", *p.TimeRemaining); verr != nil {
			errs = append(errs, verr)
		}
	}
	if err := errs.err(); err != nil {
		return err
	}

	if p.ReporterID != nil {
		if err := s.checkUsers(ctx, op, []string{*p.ReporterID}, "reporterId", "reporterId"); err != nil {
			return err
		}
	}
	if p.AssigneeIDs != nil {
		ids := dedupe(*p.AssigneeIDs)
		if err := s.checkUsers(ctx, op, ids, "userIds", "userIds"); err != nil {
			return err
		}
		p.AssigneeIDs = &ids
	}
	return nil
}

// checkUsers verifies every id names an existing user. The first id is
// reported under firstField, the rest under restField.
func (s *Service) checkUsers(ctx context.Context, op string, ids []string, firstField, restField string) error {
	for i, id := range ids {
		field := restField
		if i == 0 {
			field = firstField
		}
		if _, err := s.store.GetUser(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid(field, "unknown user %q", id)
			}
			return wrapStoreErr(op, err)
		}
	}
	return nil
}

// topOf returns a list position above every issue currently in status.
func (s *Service) topOf(ctx context.Context, op string, status models.IssueStatus) (float64, error) {
	lowest, err := s.store.MinListPosition(ctx, status)
	if err != nil {
		return 0, wrapStoreErr(op, err)
	}
	return lowest - 1, nil
}

func (s *Service) record(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsValidation(err):
		outcome = "invalid"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "failed"
		s.logger.Error("board mutation failed", "op", op, "error", err)
	}
	metrics.RecordMutation(op, outcome, time.Since(start))
}

func normalizeTitle(raw string) (string, *ValidationError) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return title, invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return title, invalid("title", "must be at most %d characters", MaxTitleLength)
	}
	return title, nil
}

// dedupe drops repeated ids, keeping the first occurrence. Never returns nil.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
