package board

import (
	"strings"
	"time"

	"github.com/joescharf/board/internal/models"
)

// Criteria selects which issues appear on the board. It is a value: every
// modifier returns a new Criteria and leaves the receiver untouched.
type Criteria struct {
	SearchText      string   `json:"searchText,omitempty"`
	UserIDs         []string `json:"userIds,omitempty"`
	OnlyMine        bool     `json:"onlyMine,omitempty"`
	CurrentUserID   string   `json:"currentUserId,omitempty"`
	RecentlyUpdated bool     `json:"recentlyUpdated,omitempty"`
}

// ToggleUser adds userID to the selected users, or removes it if present.
func (c Criteria) ToggleUser(userID string) Criteria {
	out := make([]string, 0, len(c.UserIDs)+1)
	found := false
	for _, id := range c.UserIDs {
		if id == userID {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		out = append(out, userID)
	}
	c.UserIDs = out
	return c
}

// IsEmpty reports whether no predicate is active.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.SearchText) == "" && len(c.UserIDs) == 0 && !c.OnlyMine && !c.RecentlyUpdated
}

// VisibleIssues returns the issues matching every active predicate of c, in
// input order. Selected users match if any assignee is among them. OnlyMine
// with no current user matches nothing.
func VisibleIssues(all []*models.Issue, c Criteria, now time.Time, window time.Duration) []*models.Issue {
	query := strings.ToLower(strings.TrimSpace(c.SearchText))
	selected := make(map[string]bool, len(c.UserIDs))
	for _, id := range c.UserIDs {
		selected[id] = true
	}
	cutoff := now.Add(-window)

	out := make([]*models.Issue, 0, len(all))
	for _, issue := range all {
		if query != "" && !matchesSearch(issue, query) {
			continue
		}
		if len(selected) > 0 && !assignedToAny(issue, selected) {
			continue
		}
		if c.OnlyMine && !isMine(issue, c.CurrentUserID) {
			continue
		}
		if c.RecentlyUpdated && issue.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func matchesSearch(issue *models.Issue, query string) bool {
	if strings.Contains(strings.ToLower(issue.Title), query) {
		return true
	}
	return strings.Contains(strings.ToLower(models.PlainText(issue.Description)), query)
}

func assignedToAny(issue *models.Issue, selected map[string]bool) bool {
	for _, id := range issue.AssigneeIDs {
		if selected[id] {
			return true
		}
	}
	return false
}

func isMine(issue *models.Issue, userID string) bool {
	if userID == "" {
		return false
	}
	return issue.ReporterID == userID || issue.HasAssignee(userID)
}
