package board

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

type testEnv struct {
	svc    *Service
	store  *store.SQLiteStore
	dbPath string
	gaben  *models.User
	yoda   *models.User
	rick   *models.User
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "board.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	env := &testEnv{svc: NewService(s, opts...), store: s, dbPath: dbPath}
	env.gaben = env.user(t, "Gaben")
	env.yoda = env.user(t, "Yoda")
	env.rick = env.user(t, "Pickle Rick")
	return env
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, AvatarURL: "https://avatars.example.com/" + strings.ReplaceAll(name, " ", "")}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) issue(t *testing.T, title string) *models.Issue {
	t.Helper()
	issue, err := e.svc.CreateIssue(context.Background(), e.gaben.ID, Draft{Type: models.IssueTypeTask, Title: title})
	require.NoError(t, err)
	return issue
}

// reload opens a second store on the same file, like a fresh process would.
func (e *testEnv) reload(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLiteStore(e.dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewService(s)
}

// failingStore fails every write with err.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) CreateIssue(context.Context, *models.Issue) error { return f.err }
func (f *failingStore) MutateIssue(context.Context, string, func(*models.Issue) error) (*models.Issue, error) {
	return nil, f.err
}
func (f *failingStore) DeleteIssue(context.Context, string) error           { return f.err }
func (f *failingStore) CreateComment(context.Context, *models.Comment) error { return f.err }
func (f *failingStore) UpdateComment(context.Context, *models.Comment) error { return f.err }
func (f *failingStore) DeleteComment(context.Context, string) error         { return f.err }
func (f *failingStore) SaveProject(context.Context, *models.Project) error   { return f.err }

func TestCreateIssue_Defaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	issue, err := env.svc.CreateIssue(ctx, env.yoda.ID, Draft{Type: models.IssueTypeStory, Title: "  New story  "})
	require.NoError(t, err)

	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, "New story", issue.Title)
	assert.Equal(t, models.IssueStatusBacklog, issue.Status)
	assert.Equal(t, models.IssuePriorityMedium, issue.Priority)
	assert.Equal(t, env.yoda.ID, issue.ReporterID)
	assert.Empty(t, issue.AssigneeIDs)
	assert.Nil(t, issue.Estimate)
	assert.Zero(t, issue.TimeLogged)
	assert.Zero(t, issue.TimeRemaining)
}

func TestCreateIssue_TopOfColumn(t *testing.T) {
	env := newTestEnv(t)
	first := env.issue(t, "first")
	second := env.issue(t, "second")
	assert.Less(t, second.ListPosition, first.ListPosition)

	view, err := env.svc.Board(context.Background(), Criteria{})
	require.NoError(t, err)
	backlog := view.Column(models.IssueStatusBacklog)
	require.Equal(t, 2, backlog.Count)
	assert.Equal(t, "second", backlog.Issues[0].Title)
}

func TestCreateIssue_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateIssue(ctx, env.gaben.ID, Draft{Title: "   "})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "is required", verrs.Field("title"))
	assert.Equal(t, "is required", verrs.Field("type"))

	_, err = env.svc.CreateIssue(ctx, env.gaben.ID, Draft{Type: models.IssueTypeBug, Title: strings.Repeat("x", 256)})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)

	_, err = env.svc.CreateIssue(ctx, env.gaben.ID, Draft{Type: models.IssueTypeBug, Title: strings.Repeat("x", 200)})
	assert.NoError(t, err)

	_, err = env.svc.CreateIssue(ctx, env.gaben.ID, Draft{Type: models.IssueTypeBug, Title: "t", AssigneeIDs: []string{"ghost"}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "userIds", ve.Field)

	_, err = env.svc.CreateIssue(ctx, "", Draft{Type: models.IssueTypeBug, Title: "t"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "reporterId", ve.Field)

	issues, err := env.svc.ListIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 1, "only the valid draft is stored")
}

func TestCreateIssue_RoundTripAfterReload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateIssue(ctx, env.gaben.ID, Draft{
		Type:        models.IssueTypeBug,
		Title:       "CRITICAL_BUG",
		Priority:    models.IssuePriorityHighest,
		AssigneeIDs: []string{env.gaben.ID, env.yoda.ID},
	})
	require.NoError(t, err)

	got, err := env.reload(t).GetIssue(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueTypeBug, got.Type)
	assert.Equal(t, "CRITICAL_BUG", got.Title)
	assert.Equal(t, models.IssuePriorityHighest, got.Priority)
	assert.Equal(t, []string{env.gaben.ID, env.yoda.ID}, got.AssigneeIDs)
}

func TestUpdateIssue_TrimsTitle(t *testing.T) {
	env := newTestEnv(t)
	issue := env.issue(t, "before")

	title := "   Title with spaces   "
	_, err := env.svc.UpdateIssue(context.Background(), issue.ID, Patch{Title: &title})
	require.NoError(t, err)

	got, err := env.reload(t).GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Title with spaces", got.Title)
}

func TestUpdateIssue_InvalidPatchWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	issue := env.issue(t, "keep me")

	desc := "changed"
	empty := "  "
	_, err := env.svc.UpdateIssue(context.Background(), issue.ID, Patch{Description: &desc, Title: &empty})
	assert.True(t, IsValidation(err))

	got, err := env.svc.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Title)
	assert.Empty(t, got.Description)
}

func TestUpdateIssue_NotFound(t *testing.T) {
	env := newTestEnv(t)
	title := "x"
	_, err := env.svc.UpdateIssue(context.Background(), "missing", Patch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIssue_FieldsIndependent(t *testing.T) {
	env := newTestEnv(t)
	issue := env.issue(t, "fields")

	prio := models.IssuePriorityLowest
	typ := models.IssueTypeStory
	_, err := env.svc.UpdateIssue(context.Background(), issue.ID, Patch{Priority: &prio})
	require.NoError(t, err)
	updated, err := env.svc.UpdateIssue(context.Background(), issue.ID, Patch{Type: &typ})
	require.NoError(t, err)

	assert.Equal(t, models.IssuePriorityLowest, updated.Priority)
	assert.Equal(t, models.IssueTypeStory, updated.Type)
	assert.Equal(t, "fields", updated.Title)
}

func TestDeleteIssue_ConfirmAndCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doomed := env.issue(t, "doomed")
	other := env.issue(t, "other")
	_, err := env.svc.AddComment(ctx, doomed.ID, env.gaben.ID, "last words")
	require.NoError(t, err)

	pending, err := env.svc.PrepareDeleteIssue(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Are you sure you want to delete this issue?", pending.Prompt())

	pending.Cancel()
	assert.ErrorIs(t, pending.Confirm(ctx), ErrCancelled)
	_, err = env.svc.GetIssue(ctx, doomed.ID)
	require.NoError(t, err, "cancel leaves the issue in place")

	before, err := env.svc.Board(ctx, Criteria{})
	require.NoError(t, err)

	pending, err = env.svc.PrepareDeleteIssue(ctx, doomed.ID)
	require.NoError(t, err)
	require.NoError(t, pending.Confirm(ctx))
	assert.ErrorIs(t, pending.Confirm(ctx), ErrNotFound)

	after, err := env.reload(t).Board(ctx, Criteria{})
	require.NoError(t, err)
	assert.Equal(t, before.Column(models.IssueStatusBacklog).Count-1, after.Column(models.IssueStatusBacklog).Count)

	got, err := env.svc.GetIssue(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "other", got.Title)

	_, err = env.svc.PrepareDeleteIssue(ctx, doomed.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransportFailure_LeavesPriorState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	issue := env.issue(t, "stable")

	diskErr := errors.New("disk I/O error")
	broken := NewService(&failingStore{Store: env.store, err: diskErr})

	title := "never stored"
	_, err := broken.UpdateIssue(ctx, issue.ID, Patch{Title: &title})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "update_issue", te.Op)
	assert.ErrorIs(t, err, diskErr)

	_, err = broken.AddComment(ctx, issue.ID, env.gaben.ID, "lost")
	require.ErrorAs(t, err, &te)

	_, err = broken.CreateIssue(ctx, env.gaben.ID, Draft{Type: models.IssueTypeTask, Title: "lost"})
	require.ErrorAs(t, err, &te)

	got, err := env.svc.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "stable", got.Title)
	assert.Empty(t, got.Comments)

	issues, err := env.svc.ListIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}
