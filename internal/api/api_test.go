package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

type testServer struct {
	router http.Handler
	store  store.Store
	gaben  *models.User
	yoda   *models.User
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	gaben := &models.User{Name: "Gaben"}
	yoda := &models.User{Name: "Yoda"}
	require.NoError(t, s.CreateUser(context.Background(), gaben))
	require.NoError(t, s.CreateUser(context.Background(), yoda))

	srv := NewServer(board.NewService(s), gaben.ID)
	return &testServer{router: srv.Router(), store: s, gaben: gaben, yoda: yoda}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createIssue(t *testing.T, body string) IssueResponse {
	t.Helper()
	w := ts.do(t, "POST", "/api/issues", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got IssueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestHealthz(t *testing.T) {
	ts := setupTestServer(t)
	w := ts.do(t, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.do(t, "GET", "/api/board", "")

	w := ts.do(t, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "board_http_request_duration_seconds")
}

func TestIssueCRUD_API(t *testing.T) {
	ts := setupTestServer(t)

	// Create
	created := ts.createIssue(t, `{"type":"Bug","title":"CRITICAL_BUG","priority":"Highest","userIds":["`+ts.gaben.ID+`","`+ts.yoda.ID+`"]}`)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.IssueTypeBug, created.Type)
	assert.Equal(t, models.IssueStatusBacklog, created.Status)
	assert.Equal(t, ts.gaben.ID, created.ReporterID, "reporter defaults to acting user")

	// Get
	w := ts.do(t, "GET", "/api/issues/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got IssueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "CRITICAL_BUG", got.Title)
	assert.Equal(t, models.IssuePriorityHighest, got.Priority)
	assert.Equal(t, []string{ts.gaben.ID, ts.yoda.ID}, got.AssigneeIDs)
	assert.False(t, got.Progress.HasEstimate)

	// Update
	w = ts.do(t, "PUT", "/api/issues/"+created.ID, `{"title":"   Title with spaces   ","status":"In Progress","estimate":10,"timeSpent":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Title with spaces", got.Title)
	assert.Equal(t, models.IssueStatusInProgress, got.Status)
	assert.Equal(t, 50, got.Progress.Percent)

	// Clear estimate
	w = ts.do(t, "PUT", "/api/issues/"+created.ID, `{"estimate":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Nil(t, got.Estimate)
	assert.Equal(t, 5.0, got.TimeLogged)

	// Delete needs confirmation
	w = ts.do(t, "DELETE", "/api/issues/"+created.ID, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Contains(t, w.Body.String(), "Are you sure")

	w = ts.do(t, "GET", "/api/issues/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "DELETE", "/api/issues/"+created.ID+"?confirm=true", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, "GET", "/api/issues/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateIssue_ValidationErrors(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, "POST", "/api/issues", `{"type":"task","title":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "title", body["field"])

	w = ts.do(t, "POST", "/api/issues", `{"type":"epic","title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", "/api/issues", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateIssue_RejectsNegativeHours(t *testing.T) {
	ts := setupTestServer(t)
	issue := ts.createIssue(t, `{"type":"task","title":"hours"}`)

	for _, body := range []string{`{"estimate":-1}`, `{"timeRemaining":"abc"}`, `{"timeSpent":-2}`} {
		w := ts.do(t, "PUT", "/api/issues/"+issue.ID, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w := ts.do(t, "PUT", "/api/issues/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveIssue(t *testing.T) {
	ts := setupTestServer(t)
	issue := ts.createIssue(t, `{"type":"story","title":"drag me"}`)

	w := ts.do(t, "POST", "/api/issues/"+issue.ID+"/move", `{"column":"done"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var moved MoveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.True(t, moved.Moved)
	assert.Equal(t, models.IssueStatusDone, moved.Issue.Status)

	w = ts.do(t, "POST", "/api/issues/"+issue.ID+"/move", `{"column":"nowhere"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.False(t, moved.Moved)
	assert.Equal(t, models.IssueStatusDone, moved.Issue.Status)
}

func TestBoard_Filters(t *testing.T) {
	ts := setupTestServer(t)
	ts.createIssue(t, `{"type":"task","title":"Issue title 1","userIds":["`+ts.yoda.ID+`"]}`)
	ts.createIssue(t, `{"type":"task","title":"Issue title 2"}`)
	ts.createIssue(t, `{"type":"task","title":"Other","status":"done"}`)

	var view board.View
	w := ts.do(t, "GET", "/api/board", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Total)
	require.Len(t, view.Columns, 4)
	assert.Equal(t, 2, view.Columns[0].Count)
	assert.Equal(t, 1, view.Columns[3].Count)

	w = ts.do(t, "GET", "/api/board?q=+issue+title+1+", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)

	w = ts.do(t, "GET", "/api/board?users="+ts.yoda.ID, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, "Yoda", view.Columns[0].Issues[0].Assignees[0].Name)

	w = ts.do(t, "GET", "/api/board?mine=true&recent=true", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Total, "acting user reported every issue just now")
}

func TestComments_API(t *testing.T) {
	ts := setupTestServer(t)
	issue := ts.createIssue(t, `{"type":"task","title":"discuss"}`)

	w := ts.do(t, "POST", "/api/comments", `{"issueId":"`+issue.ID+`","body":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", "/api/comments", `{"issueId":"`+issue.ID+`","body":"Comment body"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var c models.Comment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, ts.gaben.ID, c.AuthorID)

	w = ts.do(t, "PUT", "/api/comments/"+c.ID, `{"body":"An updated comment"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "DELETE", "/api/comments/"+c.ID, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	w = ts.do(t, "DELETE", "/api/comments/"+c.ID+"?confirm=1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, "DELETE", "/api/comments/"+c.ID+"?confirm=1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, "GET", "/api/issues/"+issue.ID, "")
	var got IssueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got.Comments)
}

func TestProject_API(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, "PUT", "/api/project", `{"name":"singularity 1.0","url":"https://example.com","category":"Business"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/project", "")
	var p models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "singularity 1.0", p.Name)
	assert.Equal(t, models.ProjectCategoryBusiness, p.Category)

	w = ts.do(t, "PUT", "/api/project", `{"name":"`+strings.Repeat("n", 150)+`","url":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "name")
	assert.Contains(t, body.Fields, "url")
}

func TestUsers_API(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, "GET", "/api/users", "")
	var users []*models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	w = ts.do(t, "GET", "/api/currentUser", "")
	var u models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "Gaben", u.Name)

	req := httptest.NewRequest("GET", "/api/currentUser", nil)
	req.Header.Set(UserHeader, ts.yoda.ID)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "Yoda", u.Name)
}

func TestCriteriaFromQuery(t *testing.T) {
	c := CriteriaFromQuery(map[string][]string{
		"q":      {"bug"},
		"users":  {"a, b,,a"},
		"mine":   {"true"},
		"recent": {"1"},
	}, "me")
	assert.Equal(t, "bug", c.SearchText)
	assert.Equal(t, []string{"a", "b"}, c.UserIDs)
	assert.True(t, c.OnlyMine)
	assert.True(t, c.RecentlyUpdated)
	assert.Equal(t, "me", c.CurrentUserID)
}

func TestPatchFromJSON(t *testing.T) {
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"estimate":"","userIds":null,"priority":"low"}`), &fields))
	p, err := PatchFromJSON(fields)
	require.NoError(t, err)
	assert.True(t, p.ClearEstimate)
	require.NotNil(t, p.AssigneeIDs)
	assert.Empty(t, *p.AssigneeIDs)
	assert.Equal(t, models.IssuePriorityLow, *p.Priority)
	assert.Nil(t, p.Title)
}
