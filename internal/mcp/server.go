package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
)

// Server exposes the board service as MCP tools.
type Server struct {
	svc    *board.Service
	userID string
}

// NewServer creates the MCP server wrapper. userID is the acting user for
// tools that create content; it may be a user ID or a display name.
func NewServer(svc *board.Service, userID string) *Server {
	return &Server{svc: svc, userID: userID}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("board", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.boardViewTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.moveIssueTool())
	srv.AddTool(s.deleteIssueTool())
	srv.AddTool(s.addCommentTool())
	srv.AddTool(s.logTimeTool())
	srv.AddTool(s.listUsersTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// board_view
func (s *Server) boardViewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_view",
		mcp.WithDescription("Show the board: issues grouped into Backlog, Selected for Development, In Progress and Done columns. Filters combine with AND."),
		mcp.WithString("search", mcp.Description("Match issue title or description text (case-insensitive)")),
		mcp.WithString("users", mcp.Description("Comma-separated user IDs or names; issues assigned to any of them")),
		mcp.WithString("only_mine", mcp.Description("\"true\" to show only issues reported by or assigned to the acting user")),
		mcp.WithString("recent", mcp.Description("\"true\" to show only recently updated issues")),
	)
	return tool, s.handleBoardView
}

func (s *Server) handleBoardView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	crit := board.Criteria{
		SearchText:      request.GetString("search", ""),
		OnlyMine:        isTrue(request.GetString("only_mine", "")),
		RecentlyUpdated: isTrue(request.GetString("recent", "")),
	}
	if crit.OnlyMine {
		me, err := s.resolveUser(ctx, s.userID)
		if err != nil {
			return mcp.NewToolResultError("only_mine needs a configured current user"), nil
		}
		crit.CurrentUserID = me.ID
	}
	for _, ref := range splitList(request.GetString("users", "")) {
		u, err := s.resolveUser(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", ref)), nil
		}
		if !slices.Contains(crit.UserIDs, u.ID) {
			crit = crit.ToggleUser(u.ID)
		}
	}

	view, err := s.svc.Board(ctx, crit)
	if err != nil {
		return toolError("failed to load board", err), nil
	}
	return jsonResult(view)
}

// get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_issue",
		mcp.WithDescription("Get one issue with its comments and time-tracking progress."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return toolError("issue not found", err), nil
	}
	return jsonResult(issueOut(issue))
}

// create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("create_issue",
		mcp.WithDescription("Create an issue at the top of its column. Returns the created issue as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title (max 255 characters)")),
		mcp.WithString("type", mcp.Description("Issue type: task, bug, story (default: task)")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("status", mcp.Description("Column: backlog, selected, inprogress, done (default: backlog)")),
		mcp.WithString("priority", mcp.Description("Priority: highest, high, medium, low, lowest (default: medium)")),
		mcp.WithString("reporter", mcp.Description("Reporter user ID or name (default: acting user)")),
		mcp.WithString("assignees", mcp.Description("Comma-separated assignee user IDs or names")),
		mcp.WithString("estimate", mcp.Description("Original estimate in hours")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	d := board.Draft{
		Title:       title,
		Description: request.GetString("description", ""),
	}
	if d.Type, err = models.ParseIssueType(request.GetString("type", "task")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if raw := request.GetString("status", ""); raw != "" {
		if d.Status, err = models.ParseIssueStatus(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if raw := request.GetString("priority", ""); raw != "" {
		if d.Priority, err = models.ParseIssuePriority(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if ref := request.GetString("reporter", ""); ref != "" {
		u, err := s.resolveUser(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", ref)), nil
		}
		d.ReporterID = u.ID
	}
	if d.AssigneeIDs, err = s.resolveUsers(ctx, request.GetString("assignees", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if d.Estimate, err = board.ParseHours("estimate", request.GetString("estimate", "")); err != nil {
		return toolError("invalid estimate", err), nil
	}

	actor := ""
	if me, err := s.resolveUser(ctx, s.userID); err == nil {
		actor = me.ID
	}
	issue, err := s.svc.CreateIssue(ctx, actor, d)
	if err != nil {
		return toolError("failed to create issue", err), nil
	}
	return jsonResult(issueOut(issue))
}

// update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("update_issue",
		mcp.WithDescription("Update an existing issue. Provide the issue ID (full or prefix) and at least one field. Fields are applied together or not at all."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("type", mcp.Description("New type: task, bug, story")),
		mcp.WithString("status", mcp.Description("New column: backlog, selected, inprogress, done")),
		mcp.WithString("priority", mcp.Description("New priority: highest, high, medium, low, lowest")),
		mcp.WithString("reporter", mcp.Description("New reporter user ID or name")),
		mcp.WithString("assignees", mcp.Description("Replace assignees: comma-separated user IDs or names, \"none\" to clear")),
		mcp.WithString("estimate", mcp.Description("Original estimate in hours, \"none\" to clear")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return toolError("issue not found", err), nil
	}

	var p board.Patch
	if v := request.GetString("title", ""); v != "" {
		p.Title = &v
	}
	if v := request.GetString("description", ""); v != "" {
		p.Description = &v
	}
	if raw := request.GetString("type", ""); raw != "" {
		t, err := models.ParseIssueType(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p.Type = &t
	}
	if raw := request.GetString("status", ""); raw != "" {
		st, err := models.ParseIssueStatus(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p.Status = &st
	}
	if raw := request.GetString("priority", ""); raw != "" {
		pr, err := models.ParseIssuePriority(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p.Priority = &pr
	}
	if ref := request.GetString("reporter", ""); ref != "" {
		u, err := s.resolveUser(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", ref)), nil
		}
		p.ReporterID = &u.ID
	}
	if raw := request.GetString("assignees", ""); raw != "" {
		ids := []string{}
		if !strings.EqualFold(raw, "none") {
			if ids, err = s.resolveUsers(ctx, raw); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		p.AssigneeIDs = &ids
	}
	if raw := request.GetString("estimate", ""); raw != "" {
		if strings.EqualFold(raw, "none") {
			p.ClearEstimate = true
		} else if p.Estimate, err = board.ParseHours("estimate", raw); err != nil {
			return toolError("invalid estimate", err), nil
		}
	}

	if p.IsEmpty() {
		return mcp.NewToolResultError("no fields to update"), nil
	}

	updated, err := s.svc.UpdateIssue(ctx, issue.ID, p)
	if err != nil {
		return toolError("failed to update issue", err), nil
	}
	return jsonResult(issueOut(updated))
}

// move_issue
func (s *Server) moveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("move_issue",
		mcp.WithDescription("Move an issue to another board column. Moving to its current column is a no-op."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("column", mcp.Required(), mcp.Description("Target column: backlog, selected, inprogress, done or the column name")),
	)
	return tool, s.handleMoveIssue
}

func (s *Server) handleMoveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	column, err := request.RequireString("column")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: column"), nil
	}
	if _, ok := board.ColumnForKey(column); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown column: %s", column)), nil
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return toolError("issue not found", err), nil
	}

	moved, changed, err := s.svc.Drop(ctx, board.DropEvent{IssueID: issue.ID, Column: column})
	if err != nil {
		return toolError("failed to move issue", err), nil
	}
	return jsonResult(map[string]any{
		"moved": changed,
		"issue": issueOut(moved),
	})
}

// delete_issue
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("delete_issue",
		mcp.WithDescription("Permanently delete an issue and its comments. Without confirm=\"true\" the tool only returns the confirmation prompt."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("confirm", mcp.Description("\"true\" to delete")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return toolError("issue not found", err), nil
	}
	pending, err := s.svc.PrepareDeleteIssue(ctx, issue.ID)
	if err != nil {
		return toolError("failed to delete issue", err), nil
	}
	if !isTrue(request.GetString("confirm", "")) {
		pending.Cancel()
		return mcp.NewToolResultText(pending.Prompt() + " Call again with confirm=\"true\" to delete."), nil
	}
	if err := pending.Confirm(ctx); err != nil {
		return toolError("failed to delete issue", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted issue %s", issue.ID)), nil
}

// add_comment
func (s *Server) addCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("add_comment",
		mcp.WithDescription("Add a comment to an issue as the acting user (or the given author)."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Comment text")),
		mcp.WithString("author", mcp.Description("Author user ID or name (default: acting user)")),
	)
	return tool, s.handleAddComment
}

func (s *Server) handleAddComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: body"), nil
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return toolError("issue not found", err), nil
	}
	author, err := s.resolveUser(ctx, request.GetString("author", s.userID))
	if err != nil {
		return mcp.NewToolResultError("comment author not found; pass author or configure current_user"), nil
	}

	comment, err := s.svc.AddComment(ctx, issue.ID, author.ID, body)
	if err != nil {
		return toolError("failed to add comment", err), nil
	}
	return jsonResult(comment)
}

// log_time
func (s *Server) logTimeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("log_time",
		mcp.WithDescription("Log hours against an issue. spent is added to the hours already logged; remaining replaces the remaining estimate."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("spent", mcp.Required(), mcp.Description("Hours spent in this session")),
		mcp.WithString("remaining", mcp.Description("Hours remaining after this session (default: unchanged)")),
	)
	return tool, s.handleLogTime
}

func (s *Server) handleLogTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	rawSpent, err := request.RequireString("spent")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: spent"), nil
	}
	spent, err := board.ParseHours("spent", rawSpent)
	if err != nil {
		return toolError("invalid hours", err), nil
	}
	remaining, err := board.ParseHours("remaining", request.GetString("remaining", ""))
	if err != nil {
		return toolError("invalid hours", err), nil
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return toolError("issue not found", err), nil
	}

	var sp float64
	if spent != nil {
		sp = *spent
	}
	rem := issue.TimeRemaining
	if remaining != nil {
		rem = *remaining
	}
	updated, err := s.svc.LogTime(ctx, issue.ID, sp, rem)
	if err != nil {
		return toolError("failed to log time", err), nil
	}
	return jsonResult(issueOut(updated))
}

// list_users
func (s *Server) listUsersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_users",
		mcp.WithDescription("List board members with their IDs, names and avatar URLs."),
	)
	return tool, s.handleListUsers
}

func (s *Server) handleListUsers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := s.svc.ListUsers(ctx)
	if err != nil {
		return toolError("failed to list users", err), nil
	}
	return jsonResult(users)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type issueResult struct {
	*models.Issue
	Progress board.Progress `json:"progress"`
	Tracking string         `json:"tracking"`
}

func issueOut(issue *models.Issue) issueResult {
	p := board.ProgressOf(issue)
	return issueResult{Issue: issue, Progress: p, Tracking: p.Summary()}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports err to the caller; validation failures name the field.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var ve *board.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s %s", prefix, ve.Field, ve.Message))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	return s.svc.FindUser(ctx, ref)
}

func (s *Server) resolveUsers(ctx context.Context, raw string) ([]string, error) {
	return s.svc.FindUsers(ctx, splitList(raw))
}

func (s *Server) findIssue(ctx context.Context, ref string) (*models.Issue, error) {
	return s.svc.FindIssue(ctx, ref)
}
