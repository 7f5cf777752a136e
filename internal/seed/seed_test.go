package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

func newService(t *testing.T) (*board.Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return board.NewService(s), s
}

func TestDemo_Parses(t *testing.T) {
	f, err := Demo()
	require.NoError(t, err)
	assert.Equal(t, "singularity 1.0", f.Project.Name)
	require.Len(t, f.Users, 3)
	assert.Equal(t, "Pickle Rick", f.Users[2].Name)
	assert.Equal(t, "Issue title 1", f.Issues[0].Title)
}

func TestApply_Demo(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	empty, err := IsEmpty(ctx, svc)
	require.NoError(t, err)
	assert.True(t, empty)

	f, err := Demo()
	require.NoError(t, err)
	res, err := Apply(ctx, svc, f)
	require.NoError(t, err)

	assert.Equal(t, "singularity 1.0", res.Project.Name)
	assert.Equal(t, models.ProjectCategorySoftware, res.Project.Category)
	require.Len(t, res.Issues, len(f.Issues))

	first := res.Issues[0]
	assert.Equal(t, "Issue title 1", first.Title)
	assert.Equal(t, res.Users["yoda"].ID, first.ReporterID)
	assert.Equal(t, []string{res.Users["gaben"].ID}, first.AssigneeIDs)
	require.Len(t, first.Comments, 1)
	assert.Equal(t, "Comment body", first.Comments[0].Body)
	assert.Equal(t, 4.0, first.TimeLogged)

	view, err := svc.Board(ctx, board.Criteria{})
	require.NoError(t, err)
	backlog := view.Column(models.IssueStatusBacklog)
	require.Equal(t, 2, backlog.Count)
	assert.Equal(t, "Issue title 1", backlog.Issues[0].Title, "first listed issue is on top")
	assert.Equal(t, 1, view.Column(models.IssueStatusDone).Count)

	empty, err = IsEmpty(ctx, svc)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestApply_ResetThenReseed(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	f, err := Demo()
	require.NoError(t, err)

	_, err = Apply(ctx, svc, f)
	require.NoError(t, err)
	require.NoError(t, st.Reset(ctx))
	_, err = Apply(ctx, svc, f)
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
	issues, err := svc.ListIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, len(f.Issues))
}

func TestApply_UnknownUserKey(t *testing.T) {
	svc, _ := newService(t)
	f := &Fixture{
		Users:  []UserFixture{{Key: "a", Name: "A"}},
		Issues: []IssueFixture{{Title: "x", Type: "task", Reporter: "missing"}},
	}
	_, err := Apply(context.Background(), svc, f)
	assert.ErrorContains(t, err, `unknown user key "missing"`)
}

func TestApply_InvalidIssueIsRejected(t *testing.T) {
	svc, _ := newService(t)
	f := &Fixture{
		Users:  []UserFixture{{Key: "a", Name: "A"}},
		Issues: []IssueFixture{{Title: "  ", Type: "task", Reporter: "a"}},
	}
	_, err := Apply(context.Background(), svc, f)
	assert.True(t, board.IsValidation(err))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - key: a\n    name: A\n"), 0o644))
	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A", f.Users[0].Name)

	_, err = Parse([]byte("project:\n  name: empty\n"))
	assert.ErrorContains(t, err, "no users")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
