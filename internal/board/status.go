package board

import (
	"context"
	"strings"

	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
)

// SetStatus moves an issue to the column for status, placing it at the top.
// Any status is reachable from any other. Setting the current status keeps
// the issue where it is.
func (s *Service) SetStatus(ctx context.Context, id string, status models.IssueStatus) (*models.Issue, error) {
	return s.update(ctx, "set_status", id, Patch{Status: &status})
}

// DropEvent is the end of a drag gesture: an issue released over a column.
// Column is a column key ("inprogress") or a display name ("In Progress").
type DropEvent struct {
	IssueID string `json:"issueId"`
	Column  string `json:"column"`
}

// Drop translates a drag gesture into SetStatus. A drop that did not land
// on a valid column, or landed on the issue's own column, changes nothing
// and reports moved=false.
func (s *Service) Drop(ctx context.Context, ev DropEvent) (issue *models.Issue, moved bool, err error) {
	status, ok := ColumnForKey(ev.Column)
	if !ok {
		current, err := s.GetIssue(ctx, ev.IssueID)
		return current, false, err
	}

	current, err := s.GetIssue(ctx, ev.IssueID)
	if err != nil {
		return nil, false, err
	}
	if current.Status == status {
		return current, false, nil
	}

	issue, err = s.update(ctx, "drop", ev.IssueID, Patch{Status: &status})
	if err != nil {
		return nil, false, err
	}
	return issue, true, nil
}

// ColumnForKey resolves a column key or display name to its status.
func ColumnForKey(key string) (models.IssueStatus, bool) {
	if strings.TrimSpace(key) == "" {
		return "", false
	}
	status, err := models.ParseIssueStatus(key)
	if err != nil {
		return "", false
	}
	return status, true
}

// Avatar is one assignee as shown on an issue card.
type Avatar struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// IssueCard is the board's summary of one issue.
type IssueCard struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Type      models.IssueType     `json:"type"`
	Priority  models.IssuePriority `json:"priority"`
	Assignees []Avatar             `json:"assignees"`
}

// Column is every visible issue sharing one status.
type Column struct {
	Status models.IssueStatus `json:"status"`
	Name   string             `json:"name"`
	Count  int                `json:"count"`
	Issues []IssueCard        `json:"issues"`
}

// View is the board as rendered: four columns in workflow order.
type View struct {
	Columns  []Column `json:"columns"`
	Total    int      `json:"total"`
	Criteria Criteria `json:"criteria"`
}

// Column returns the column for status.
func (v *View) Column(status models.IssueStatus) *Column {
	for i := range v.Columns {
		if v.Columns[i].Status == status {
			return &v.Columns[i]
		}
	}
	return nil
}

// GroupByStatus places each issue in exactly one column, keeping input order
// inside a column. Avatars come from users in assignee order; unknown ids
// are kept with an empty name.
func GroupByStatus(issues []*models.Issue, users map[string]*models.User) []Column {
	cols := make([]Column, len(models.IssueStatuses))
	index := make(map[models.IssueStatus]int, len(cols))
	for i, st := range models.IssueStatuses {
		cols[i] = Column{Status: st, Name: st.DisplayName(), Issues: []IssueCard{}}
		index[st] = i
	}
	for _, issue := range issues {
		i, ok := index[issue.Status]
		if !ok {
			// Unknown statuses never reach the store; park them in the first column.
			i = 0
		}
		cols[i].Issues = append(cols[i].Issues, cardFor(issue, users))
		cols[i].Count++
	}
	return cols
}

func cardFor(issue *models.Issue, users map[string]*models.User) IssueCard {
	card := IssueCard{
		ID:        issue.ID,
		Title:     issue.Title,
		Type:      issue.Type,
		Priority:  issue.Priority,
		Assignees: make([]Avatar, 0, len(issue.AssigneeIDs)),
	}
	for _, id := range issue.AssigneeIDs {
		a := Avatar{UserID: id}
		if u, ok := users[id]; ok {
			a.Name = u.Name
			a.AvatarURL = u.AvatarURL
		}
		card.Assignees = append(card.Assignees, a)
	}
	return card
}

// Board returns the visible issues for c grouped into columns.
func (s *Service) Board(ctx context.Context, c Criteria) (*View, error) {
	all, err := s.ListIssues(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	visible := VisibleIssues(all, c, s.now(), s.recentWindow)
	view := &View{
		Columns:  GroupByStatus(visible, byID),
		Total:    len(visible),
		Criteria: c,
	}
	counts := make(map[models.IssueStatus]int, len(models.IssueStatuses))
	for _, issue := range all {
		counts[issue.Status]++
	}
	for _, st := range models.IssueStatuses {
		metrics.SetColumnIssues(string(st), counts[st])
	}
	return view, nil
}
