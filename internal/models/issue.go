package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// IssueStatus is the lifecycle state of an issue. Each status is one board column.
type IssueStatus string

const (
	IssueStatusBacklog    IssueStatus = "backlog"
	IssueStatusSelected   IssueStatus = "selected"
	IssueStatusInProgress IssueStatus = "inprogress"
	IssueStatusDone       IssueStatus = "done"
)

// IssueStatuses lists every status in left-to-right column order.
var IssueStatuses = []IssueStatus{
	IssueStatusBacklog,
	IssueStatusSelected,
	IssueStatusInProgress,
	IssueStatusDone,
}

var issueStatusNames = map[IssueStatus]string{
	IssueStatusBacklog:    "Backlog",
	IssueStatusSelected:   "Selected for Development",
	IssueStatusInProgress: "In Progress",
	IssueStatusDone:       "Done",
}

// DisplayName returns the column header for the status.
func (s IssueStatus) DisplayName() string {
	if name, ok := issueStatusNames[s]; ok {
		return name
	}
	return string(s)
}

// Valid reports whether s is one of the four board statuses.
func (s IssueStatus) Valid() bool {
	_, ok := issueStatusNames[s]
	return ok
}

// IssueType represents the kind of work an issue tracks.
type IssueType string

const (
	IssueTypeTask  IssueType = "task"
	IssueTypeBug   IssueType = "bug"
	IssueTypeStory IssueType = "story"
)

var IssueTypes = []IssueType{IssueTypeTask, IssueTypeBug, IssueTypeStory}

func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeTask, IssueTypeBug, IssueTypeStory:
		return true
	}
	return false
}

// IssuePriority represents the urgency of an issue, five ordered levels.
type IssuePriority string

const (
	IssuePriorityLowest  IssuePriority = "lowest"
	IssuePriorityLow     IssuePriority = "low"
	IssuePriorityMedium  IssuePriority = "medium"
	IssuePriorityHigh    IssuePriority = "high"
	IssuePriorityHighest IssuePriority = "highest"
)

// IssuePriorities lists priorities from lowest to highest.
var IssuePriorities = []IssuePriority{
	IssuePriorityLowest,
	IssuePriorityLow,
	IssuePriorityMedium,
	IssuePriorityHigh,
	IssuePriorityHighest,
}

// Rank returns 1 (lowest) through 5 (highest), or 0 for an unknown priority.
func (p IssuePriority) Rank() int {
	for i, v := range IssuePriorities {
		if v == p {
			return i + 1
		}
	}
	return 0
}

func (p IssuePriority) Valid() bool { return p.Rank() > 0 }

// Issue represents a trackable unit of work on the board.
type Issue struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"` // stored rich text
	Type          IssueType     `json:"type"`
	Status        IssueStatus   `json:"status"`
	Priority      IssuePriority `json:"priority"`
	ReporterID    string        `json:"reporterId"`
	AssigneeIDs   []string      `json:"userIds"`
	Estimate      *float64      `json:"estimate"`
	TimeLogged    float64       `json:"timeSpent"`
	TimeRemaining float64       `json:"timeRemaining"`
	ListPosition  float64       `json:"listPosition"`
	Comments      []*Comment    `json:"comments,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// HasAssignee reports whether userID is among the issue's assignees.
func (i *Issue) HasAssignee(userID string) bool {
	for _, id := range i.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	c := *i
	c.AssigneeIDs = append([]string(nil), i.AssigneeIDs...)
	if i.Estimate != nil {
		e := *i.Estimate
		c.Estimate = &e
	}
	if i.Comments != nil {
		c.Comments = make([]*Comment, len(i.Comments))
		for n, cm := range i.Comments {
			cp := *cm
			c.Comments[n] = &cp
		}
	}
	return &c
}

// Comment is a single discussion entry on an issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issueId"`
	AuthorID  string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is a board member who can report, be assigned, and comment.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

func ParseIssueStatus(raw string) (IssueStatus, error) {
	v := normalizeEnum(raw)
	if v == "" {
		return "", fmt.Errorf("status is required")
	}
	for _, s := range IssueStatuses {
		if v == string(s) || v == normalizeEnum(s.DisplayName()) {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", raw)
}

func ParseIssueType(raw string) (IssueType, error) {
	v := IssueType(normalizeEnum(raw))
	if v == "" {
		return "", fmt.Errorf("type is required")
	}
	if !v.Valid() {
		return "", fmt.Errorf("invalid type: %s", raw)
	}
	return v, nil
}

func ParseIssuePriority(raw string) (IssuePriority, error) {
	v := IssuePriority(normalizeEnum(raw))
	if v == "" {
		return "", fmt.Errorf("priority is required")
	}
	if !v.Valid() {
		return "", fmt.Errorf("invalid priority: %s", raw)
	}
	return v, nil
}

// normalizeEnum lowercases and drops separators so "In Progress",
// "in_progress" and "inprogress" compare equal.
func normalizeEnum(raw string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

var (
	markupTag  = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
	entities   = strings.NewReplacer("&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&amp;", "&")
)

// PlainText returns the text content of stored rich text with markup removed.
func PlainText(rich string) string {
	text := markupTag.ReplaceAllString(rich, " ")
	text = entities.Replace(text)
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
