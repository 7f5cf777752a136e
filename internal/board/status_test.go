package board

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
)

func TestSetStatus_AnyToAny(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	issue := env.issue(t, "wanderer")

	for _, st := range []models.IssueStatus{
		models.IssueStatusDone,
		models.IssueStatusBacklog,
		models.IssueStatusInProgress,
		models.IssueStatusSelected,
		models.IssueStatusDone,
	} {
		got, err := env.svc.SetStatus(ctx, issue.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}
}

func TestSetStatus_MovesToTopOfDestination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.issue(t, "a")
	b := env.issue(t, "b")
	c := env.issue(t, "c")

	_, err := env.svc.SetStatus(ctx, a.ID, models.IssueStatusInProgress)
	require.NoError(t, err)
	_, err = env.svc.SetStatus(ctx, b.ID, models.IssueStatusInProgress)
	require.NoError(t, err)

	view, err := env.svc.Board(ctx, Criteria{})
	require.NoError(t, err)
	col := view.Column(models.IssueStatusInProgress)
	require.Equal(t, 2, col.Count)
	assert.Equal(t, b.ID, col.Issues[0].ID)
	assert.Equal(t, a.ID, col.Issues[1].ID)
	assert.Equal(t, 1, view.Column(models.IssueStatusBacklog).Count)
	assert.Equal(t, c.ID, view.Column(models.IssueStatusBacklog).Issues[0].ID)
}

func TestSetStatus_SameStatusKeepsPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.issue(t, "a")
	env.issue(t, "b")

	got, err := env.svc.SetStatus(ctx, a.ID, models.IssueStatusBacklog)
	require.NoError(t, err)
	assert.Equal(t, a.ListPosition, got.ListPosition)
}

func TestSetStatus_RejectsUnknown(t *testing.T) {
	env := newTestEnv(t)
	issue := env.issue(t, "x")
	_, err := env.svc.SetStatus(context.Background(), issue.ID, models.IssueStatus("closed"))
	assert.True(t, IsValidation(err))
}

func TestDrop_SameOutcomeAsSetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dragged := env.issue(t, "dragged")
	edited := env.issue(t, "edited")

	viaDrop, moved, err := env.svc.Drop(ctx, DropEvent{IssueID: dragged.ID, Column: "inprogress"})
	require.NoError(t, err)
	assert.True(t, moved)
	viaEdit, err := env.svc.SetStatus(ctx, edited.ID, models.IssueStatusInProgress)
	require.NoError(t, err)

	assert.Equal(t, viaEdit.Status, viaDrop.Status)
	assert.Less(t, viaEdit.ListPosition, viaDrop.ListPosition, "latest move lands on top")
}

func TestDrop_DisplayName(t *testing.T) {
	env := newTestEnv(t)
	issue := env.issue(t, "x")

	got, moved, err := env.svc.Drop(context.Background(), DropEvent{IssueID: issue.ID, Column: "Selected for Development"})
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, models.IssueStatusSelected, got.Status)
}

func TestDrop_OutsideColumnIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	issue := env.issue(t, "stay")

	for _, col := range []string{"", "  ", "trash", "backlog"} {
		got, moved, err := env.svc.Drop(ctx, DropEvent{IssueID: issue.ID, Column: col})
		require.NoError(t, err, col)
		assert.False(t, moved, col)
		assert.Equal(t, models.IssueStatusBacklog, got.Status)
		assert.Equal(t, issue.ListPosition, got.ListPosition)
	}
}

func TestDrop_MissingIssue(t *testing.T) {
	env := newTestEnv(t)
	_, moved, err := env.svc.Drop(context.Background(), DropEvent{IssueID: "missing", Column: "done"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, moved)
}

func TestGroupByStatus_CountsSumToTotal(t *testing.T) {
	issues := []*models.Issue{
		{ID: "1", Status: models.IssueStatusBacklog},
		{ID: "2", Status: models.IssueStatusDone},
		{ID: "3", Status: models.IssueStatusDone},
		{ID: "4", Status: models.IssueStatusInProgress},
		{ID: "5", Status: models.IssueStatusSelected},
	}
	cols := GroupByStatus(issues, nil)
	require.Len(t, cols, 4)

	sum := 0
	seen := map[string]int{}
	for i, col := range cols {
		assert.Equal(t, models.IssueStatuses[i], col.Status)
		assert.Equal(t, len(col.Issues), col.Count)
		sum += col.Count
		for _, card := range col.Issues {
			seen[card.ID]++
		}
	}
	assert.Equal(t, len(issues), sum)
	for _, issue := range issues {
		assert.Equal(t, 1, seen[issue.ID], "issue %s in exactly one column", issue.ID)
	}
	assert.Equal(t, "Selected for Development", cols[1].Name)
}

func TestGroupByStatus_AvatarsInAssigneeOrder(t *testing.T) {
	users := map[string]*models.User{
		"g": {ID: "g", Name: "Gaben", AvatarURL: "g.png"},
		"y": {ID: "y", Name: "Yoda", AvatarURL: "y.png"},
	}
	cols := GroupByStatus([]*models.Issue{
		{ID: "1", Status: models.IssueStatusBacklog, AssigneeIDs: []string{"y", "g"}},
	}, users)

	card := cols[0].Issues[0]
	require.Len(t, card.Assignees, 2)
	assert.Equal(t, "Yoda", card.Assignees[0].Name)
	assert.Equal(t, "Gaben", card.Assignees[1].Name)
	assert.Equal(t, "y.png", card.Assignees[0].AvatarURL)
}

func TestBoard_AppliesCriteria(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	one := env.issue(t, "Issue title 1")
	env.issue(t, "Issue title 2")
	_, err := env.svc.SetAssignees(ctx, one.ID, []string{env.yoda.ID})
	require.NoError(t, err)

	view, err := env.svc.Board(ctx, Criteria{UserIDs: []string{env.yoda.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, one.ID, view.Column(models.IssueStatusBacklog).Issues[0].ID)

	view, err = env.svc.Board(ctx, Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Total)
}

func TestBoard_ColumnGaugeIgnoresCriteria(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.issue(t, "Issue title 1")
	env.issue(t, "Issue title 2")

	_, err := env.svc.Board(ctx, Criteria{SearchText: "title 1"})
	require.NoError(t, err)
	backlog := metrics.BoardColumnIssues.WithLabelValues(string(models.IssueStatusBacklog))
	assert.Equal(t, 2.0, testutil.ToFloat64(backlog))
}
