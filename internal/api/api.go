package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
)

// UserHeader carries the acting user's id on every request.
const UserHeader = "X-User-ID"

// Server provides the REST API handlers.
type Server struct {
	svc         *board.Service
	defaultUser string
	logger      *slog.Logger
}

// NewServer creates a new API server. defaultUser is the acting user when a
// request carries no X-User-ID header; it may be empty.
func NewServer(svc *board.Service, defaultUser string) *Server {
	return &Server{svc: svc, defaultUser: defaultUser, logger: slog.Default()}
}

// WithLogger replaces the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/board", s.getBoard)

	mux.HandleFunc("POST /api/issues", s.createIssue)
	mux.HandleFunc("GET /api/issues/{id}", s.getIssue)
	mux.HandleFunc("PUT /api/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{id}", s.deleteIssue)
	mux.HandleFunc("POST /api/issues/{id}/move", s.moveIssue)

	mux.HandleFunc("POST /api/comments", s.createComment)
	mux.HandleFunc("PUT /api/comments/{id}", s.updateComment)
	mux.HandleFunc("DELETE /api/comments/{id}", s.deleteComment)

	mux.HandleFunc("GET /api/project", s.getProject)
	mux.HandleFunc("PUT /api/project", s.updateProject)

	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("GET /api/currentUser", s.currentUser)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withRequestLogging(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error  string            `json:"error"`
	Field  string            `json:"field,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Prompt string            `json:"prompt,omitempty"`
}

// writeDomainError maps board errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		verrs board.ValidationErrors
		ve    *board.ValidationError
		te    *board.TransportError
	)
	switch {
	case errors.As(err, &verrs):
		body := errorBody{Error: err.Error(), Fields: map[string]string{}}
		for _, e := range verrs {
			body.Fields[e.Field] = e.Message
		}
		if len(verrs) > 0 {
			body.Field = verrs[0].Field
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  ve.Error(),
			Field:  ve.Field,
			Fields: map[string]string{ve.Field: ve.Message},
		})
	case errors.Is(err, board.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrConfirmationRequired):
		writeError(w, http.StatusPreconditionRequired, err.Error())
	case errors.As(err, &te):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) actor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return s.defaultUser
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// --- Board ---

// CriteriaFromQuery reads board filter criteria from URL query parameters.
func CriteriaFromQuery(q map[string][]string, currentUser string) board.Criteria {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	c := board.Criteria{SearchText: get("q"), CurrentUserID: currentUser}
	for _, id := range strings.Split(get("users"), ",") {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(c.UserIDs, id) {
			c = c.ToggleUser(id)
		}
	}
	c.OnlyMine, _ = strconv.ParseBool(get("mine"))
	c.RecentlyUpdated, _ = strconv.ParseBool(get("recent"))
	return c
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Board(r.Context(), CriteriaFromQuery(r.URL.Query(), s.actor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- Issues ---

// IssueResponse is an issue with its derived time-tracking progress.
type IssueResponse struct {
	*models.Issue
	Progress board.Progress `json:"progress"`
}

func issueResponse(issue *models.Issue) IssueResponse {
	return IssueResponse{Issue: issue, Progress: board.ProgressOf(issue)}
}

// CreateIssueRequest is the body of POST /api/issues.
type CreateIssueRequest struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	ReporterID  string   `json:"reporterId,omitempty"`
	UserIDs     []string `json:"userIds,omitempty"`
	Estimate    *float64 `json:"estimate,omitempty"`
}

// Draft converts the request into a board draft, parsing enum names.
func (req CreateIssueRequest) Draft() (board.Draft, error) {
	d := board.Draft{
		Title:       req.Title,
		Description: req.Description,
		ReporterID:  req.ReporterID,
		AssigneeIDs: req.UserIDs,
		Estimate:    req.Estimate,
	}
	var errs board.ValidationErrors
	if req.Type != "" {
		t, err := models.ParseIssueType(req.Type)
		if err != nil {
			errs = append(errs, &board.ValidationError{Field: "type", Message: err.Error()})
		}
		d.Type = t
	}
	if req.Status != "" {
		st, err := models.ParseIssueStatus(req.Status)
		if err != nil {
			errs = append(errs, &board.ValidationError{Field: "status", Message: err.Error()})
		}
		d.Status = st
	}
	if req.Priority != "" {
		p, err := models.ParseIssuePriority(req.Priority)
		if err != nil {
			errs = append(errs, &board.ValidationError{Field: "priority", Message: err.Error()})
		}
		d.Priority = p
	}
	if len(errs) > 0 {
		return d, errs
	}
	return d, nil
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	draft, err := req.Draft()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	issue, err := s.svc.CreateIssue(r.Context(), s.actor(r), draft)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issueResponse(issue))
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.svc.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// PatchFromJSON builds a board patch from a JSON object. Only keys present
// in the object are changed; "estimate": null clears the estimate.
func PatchFromJSON(fields map[string]json.RawMessage) (board.Patch, error) {
	var p board.Patch
	var errs board.ValidationErrors
	bad := func(field, msg string) {
		errs = append(errs, &board.ValidationError{Field: field, Message: msg})
	}

	str := func(key string) (string, bool) {
		raw, ok := fields[key]
		if !ok {
			return "", false
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			bad(key, "must be a string")
			return "", false
		}
		return v, true
	}
	hours := func(key string) (*float64, bool) {
		raw, ok := fields[key]
		if !ok {
			return nil, false
		}
		if string(raw) == "null" {
			return nil, true
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return &n, true
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			v, err := board.ParseHours(key, text)
			if err != nil {
				bad(key, "must be a non-negative number")
				return nil, false
			}
			return v, true
		}
		bad(key, "must be a number")
		return nil, false
	}

	if v, ok := str("title"); ok {
		p.Title = &v
	}
	if v, ok := str("description"); ok {
		p.Description = &v
	}
	if v, ok := str("type"); ok {
		t, err := models.ParseIssueType(v)
		if err != nil {
			bad("type", err.Error())
		}
		p.Type = &t
	}
	if v, ok := str("status"); ok {
		st, err := models.ParseIssueStatus(v)
		if err != nil {
			bad("status", err.Error())
		}
		p.Status = &st
	}
	if v, ok := str("priority"); ok {
		pr, err := models.ParseIssuePriority(v)
		if err != nil {
			bad("priority", err.Error())
		}
		p.Priority = &pr
	}
	if v, ok := str("reporterId"); ok {
		p.ReporterID = &v
	}
	if raw, ok := fields["userIds"]; ok {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			bad("userIds", "must be a list of user ids")
		} else {
			if ids == nil {
				ids = []string{}
			}
			p.AssigneeIDs = &ids
		}
	}
	if v, ok := hours("estimate"); ok {
		p.Estimate = v
		p.ClearEstimate = v == nil
	}
	if v, ok := hours("timeSpent"); ok {
		if v == nil {
			zero := 0.0
			v = &zero
		}
		p.TimeLogged = v
	}
	if v, ok := hours("timeRemaining"); ok {
		if v == nil {
			zero := 0.0
			v = &zero
		}
		p.TimeRemaining = v
	}

	if len(errs) > 0 {
		return p, errs
	}
	return p, nil
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	patch, err := PatchFromJSON(fields)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	issue, err := s.svc.UpdateIssue(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	pending, err := s.svc.PrepareDeleteIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.confirmPending(w, r, pending)
}

func (s *Server) confirmPending(w http.ResponseWriter, r *http.Request, pending *board.Pending) {
	if !confirmed(r) {
		pending.Cancel()
		writeJSON(w, http.StatusPreconditionRequired, errorBody{
			Error:  board.ErrConfirmationRequired.Error(),
			Prompt: pending.Prompt(),
		})
		return
	}
	if err := pending.Confirm(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveResponse reports the outcome of a drop.
type MoveResponse struct {
	Issue IssueResponse `json:"issue"`
	Moved bool          `json:"moved"`
}

func (s *Server) moveIssue(w http.ResponseWriter, r *http.Request) {
	var ev board.DropEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ev.IssueID = r.PathValue("id")
	issue, moved, err := s.svc.Drop(r.Context(), ev)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Issue: issueResponse(issue), Moved: moved})
}

// --- Comments ---

// CommentRequest is the body of comment create and edit calls.
type CommentRequest struct {
	IssueID string `json:"issueId,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Body    string `json:"body"`
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.IssueID == "" {
		writeDomainError(w, &board.ValidationError{Field: "issueId", Message: "is required"})
		return
	}
	author := req.UserID
	if author == "" {
		author = s.actor(r)
	}
	c, err := s.svc.AddComment(r.Context(), req.IssueID, author, req.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, err := s.svc.EditComment(r.Context(), r.PathValue("id"), req.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	pending, err := s.svc.PrepareDeleteComment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.confirmPending(w, r, pending)
}

// --- Project & users ---

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProject(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ProjectRequest is the body of PUT /api/project. Absent fields are unchanged.
type ProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	URL         *string `json:"url,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	patch := board.ProjectPatch{Name: req.Name, URL: req.URL, Description: req.Description}
	if req.Category != nil {
		cat, err := models.ParseProjectCategory(*req.Category)
		if err != nil {
			writeDomainError(w, &board.ValidationError{Field: "category", Message: err.Error()})
			return
		}
		patch.Category = &cat
	}
	p, err := s.svc.UpdateProject(r.Context(), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	id := s.actor(r)
	if id == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no current user: set %s or current_user", UserHeader))
		return
	}
	u, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
