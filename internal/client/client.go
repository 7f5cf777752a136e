// Package client talks to a running board server over its REST API and
// maps failures back onto the board error types.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/board/internal/api"
	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
)

const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for the board API.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// New creates a client. userID is sent as the acting user when non-empty;
// a non-positive timeout selects DefaultTimeout.
func New(baseURL, userID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: timeout},
	}
}

// Ping checks whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

func (c *Client) Board(ctx context.Context, crit board.Criteria) (*board.View, error) {
	q := url.Values{}
	if crit.SearchText != "" {
		q.Set("q", crit.SearchText)
	}
	if len(crit.UserIDs) > 0 {
		q.Set("users", strings.Join(crit.UserIDs, ","))
	}
	if crit.OnlyMine {
		q.Set("mine", "true")
	}
	if crit.RecentlyUpdated {
		q.Set("recent", "true")
	}
	var view board.View
	err := c.do(ctx, http.MethodGet, "/api/board", q, nil, &view)
	return &view, err
}

func (c *Client) CreateIssue(ctx context.Context, req api.CreateIssueRequest) (*api.IssueResponse, error) {
	var resp api.IssueResponse
	err := c.do(ctx, http.MethodPost, "/api/issues", nil, req, &resp)
	return &resp, err
}

func (c *Client) GetIssue(ctx context.Context, id string) (*api.IssueResponse, error) {
	var resp api.IssueResponse
	err := c.do(ctx, http.MethodGet, "/api/issues/"+url.PathEscape(id), nil, nil, &resp)
	return &resp, err
}

// UpdateIssue sends a partial update. Keys follow the issue JSON names
// (title, status, userIds, estimate, timeSpent...); a nil estimate clears it.
func (c *Client) UpdateIssue(ctx context.Context, id string, fields map[string]any) (*api.IssueResponse, error) {
	var resp api.IssueResponse
	err := c.do(ctx, http.MethodPut, "/api/issues/"+url.PathEscape(id), nil, fields, &resp)
	return &resp, err
}

// MoveIssue drops an issue on a column.
func (c *Client) MoveIssue(ctx context.Context, id, column string) (*api.MoveResponse, error) {
	var resp api.MoveResponse
	err := c.do(ctx, http.MethodPost, "/api/issues/"+url.PathEscape(id)+"/move", nil, board.DropEvent{Column: column}, &resp)
	return &resp, err
}

// PrepareDeleteIssue asks the server for the delete prompt without deleting.
func (c *Client) PrepareDeleteIssue(ctx context.Context, id string) (*board.Pending, error) {
	return c.prepareDelete(ctx, "/api/issues/"+url.PathEscape(id))
}

func (c *Client) AddComment(ctx context.Context, issueID, body string) (*models.Comment, error) {
	var resp models.Comment
	err := c.do(ctx, http.MethodPost, "/api/comments", nil, api.CommentRequest{IssueID: issueID, Body: body}, &resp)
	return &resp, err
}

func (c *Client) EditComment(ctx context.Context, commentID, body string) (*models.Comment, error) {
	var resp models.Comment
	err := c.do(ctx, http.MethodPut, "/api/comments/"+url.PathEscape(commentID), nil, api.CommentRequest{Body: body}, &resp)
	return &resp, err
}

func (c *Client) PrepareDeleteComment(ctx context.Context, commentID string) (*board.Pending, error) {
	return c.prepareDelete(ctx, "/api/comments/"+url.PathEscape(commentID))
}

func (c *Client) GetProject(ctx context.Context) (*models.Project, error) {
	var resp models.Project
	err := c.do(ctx, http.MethodGet, "/api/project", nil, nil, &resp)
	return &resp, err
}

func (c *Client) UpdateProject(ctx context.Context, req api.ProjectRequest) (*models.Project, error) {
	var resp models.Project
	err := c.do(ctx, http.MethodPut, "/api/project", nil, req, &resp)
	return &resp, err
}

func (c *Client) ListUsers(ctx context.Context) ([]*models.User, error) {
	var resp []*models.User
	err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &resp)
	return resp, err
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var resp models.User
	err := c.do(ctx, http.MethodGet, "/api/currentUser", nil, nil, &resp)
	return &resp, err
}

// prepareDelete issues an unconfirmed DELETE. The server answers 428 with
// the prompt; the returned Pending repeats the call with confirm=true.
func (c *Client) prepareDelete(ctx context.Context, path string) (*board.Pending, error) {
	err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	var cr *confirmationError
	switch {
	case errors.As(err, &cr):
		return board.NewPending(cr.prompt, func(ctx context.Context) error {
			return c.do(ctx, http.MethodDelete, path, url.Values{"confirm": {"true"}}, nil, nil)
		}), nil
	case err != nil:
		return nil, err
	}
	return nil, fmt.Errorf("delete %s: server did not ask for confirmation", path)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	op := method + " " + path
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(api.UserHeader, c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &board.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &board.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

type errorResponse struct {
	Error  string            `json:"error"`
	Field  string            `json:"field"`
	Fields map[string]string `json:"fields"`
	Prompt string            `json:"prompt"`
}

// confirmationError carries the server's prompt for a 428 response.
type confirmationError struct {
	prompt string
}

func (e *confirmationError) Error() string { return board.ErrConfirmationRequired.Error() }
func (e *confirmationError) Unwrap() error { return board.ErrConfirmationRequired }

func decodeError(op string, resp *http.Response) error {
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		errResp.Error = "api error: " + resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return validationFrom(errResp)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, board.ErrNotFound)
	case http.StatusPreconditionRequired:
		return &confirmationError{prompt: errResp.Prompt}
	}
	return &board.TransportError{
		Op:  op,
		Err: fmt.Errorf("%s (status %d)", errResp.Error, resp.StatusCode),
	}
}

func validationFrom(r errorResponse) error {
	if len(r.Fields) == 0 {
		return &board.ValidationError{Field: r.Field, Message: r.Error}
	}
	if len(r.Fields) == 1 {
		for field, msg := range r.Fields {
			return &board.ValidationError{Field: field, Message: msg}
		}
	}
	// Primary field first, the rest in name order.
	var errs board.ValidationErrors
	if msg, ok := r.Fields[r.Field]; ok {
		errs = append(errs, &board.ValidationError{Field: r.Field, Message: msg})
	}
	names := make([]string, 0, len(r.Fields))
	for field := range r.Fields {
		if field != r.Field {
			names = append(names, field)
		}
	}
	sort.Strings(names)
	for _, field := range names {
		errs = append(errs, &board.ValidationError{Field: field, Message: r.Fields[field]})
	}
	return errs
}
