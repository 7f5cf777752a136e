// Package seed loads demo board content: a project, its members and a
// handful of issues spread across the columns.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
)

//go:embed demo.yaml
var demoYAML []byte

// Fixture is the on-disk shape of a seed file.
type Fixture struct {
	Project ProjectFixture `yaml:"project"`
	Users   []UserFixture  `yaml:"users"`
	Issues  []IssueFixture `yaml:"issues"`
}

type ProjectFixture struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

// UserFixture is a board member; Key is how issues refer to it.
type UserFixture struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	AvatarURL string `yaml:"avatarUrl"`
}

type IssueFixture struct {
	Title         string           `yaml:"title"`
	Type          string           `yaml:"type"`
	Status        string           `yaml:"status"`
	Priority      string           `yaml:"priority"`
	Reporter      string           `yaml:"reporter"`
	Assignees     []string         `yaml:"assignees"`
	Description   string           `yaml:"description"`
	Estimate      *float64         `yaml:"estimate"`
	TimeSpent     float64          `yaml:"timeSpent"`
	TimeRemaining float64          `yaml:"timeRemaining"`
	Comments      []CommentFixture `yaml:"comments"`
}

type CommentFixture struct {
	Author string `yaml:"author"`
	Body   string `yaml:"body"`
}

// Result lists what Apply created.
type Result struct {
	Project *models.Project
	Users   map[string]*models.User // by fixture key
	Issues  []*models.Issue         // fixture order
}

// Demo returns the embedded demo fixture.
func Demo() (*Fixture, error) {
	return Parse(demoYAML)
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(f.Users) == 0 {
		return nil, fmt.Errorf("parse seed: no users")
	}
	return &f, nil
}

// IsEmpty reports whether the board has no users yet.
func IsEmpty(ctx context.Context, svc *board.Service) (bool, error) {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	return len(users) == 0, nil
}

// Apply writes f through svc so every record passes the same validation as
// user input. Issues are created in reverse within each column so the first
// listed issue ends up at the top.
func Apply(ctx context.Context, svc *board.Service, f *Fixture) (*Result, error) {
	res := &Result{Users: make(map[string]*models.User, len(f.Users))}

	for _, uf := range f.Users {
		u, err := svc.CreateUser(ctx, uf.Name, uf.AvatarURL)
		if err != nil {
			return nil, fmt.Errorf("seed user %q: %w", uf.Key, err)
		}
		res.Users[uf.Key] = u
	}

	if f.Project.Name != "" {
		patch := board.ProjectPatch{
			Name:        &f.Project.Name,
			URL:         &f.Project.URL,
			Description: &f.Project.Description,
		}
		if f.Project.Category != "" {
			cat, err := models.ParseProjectCategory(f.Project.Category)
			if err != nil {
				return nil, fmt.Errorf("seed project: %w", err)
			}
			patch.Category = &cat
		}
		p, err := svc.UpdateProject(ctx, patch)
		if err != nil {
			return nil, fmt.Errorf("seed project: %w", err)
		}
		res.Project = p
	}

	userID := func(key string) (string, error) {
		u, ok := res.Users[key]
		if !ok {
			return "", fmt.Errorf("unknown user key %q", key)
		}
		return u.ID, nil
	}

	res.Issues = make([]*models.Issue, len(f.Issues))
	for i, itf := range slices.Backward(f.Issues) {
		issue, err := applyIssue(ctx, svc, itf, userID)
		if err != nil {
			return nil, fmt.Errorf("seed issue %q: %w", itf.Title, err)
		}
		res.Issues[i] = issue
	}
	return res, nil
}

func applyIssue(ctx context.Context, svc *board.Service, f IssueFixture, userID func(string) (string, error)) (*models.Issue, error) {
	d := board.Draft{
		Title:       f.Title,
		Description: f.Description,
		Estimate:    f.Estimate,
	}
	var err error
	if d.Type, err = models.ParseIssueType(f.Type); err != nil {
		return nil, err
	}
	if f.Status != "" {
		if d.Status, err = models.ParseIssueStatus(f.Status); err != nil {
			return nil, err
		}
	}
	if f.Priority != "" {
		if d.Priority, err = models.ParseIssuePriority(f.Priority); err != nil {
			return nil, err
		}
	}
	if d.ReporterID, err = userID(f.Reporter); err != nil {
		return nil, err
	}
	for _, key := range f.Assignees {
		id, err := userID(key)
		if err != nil {
			return nil, err
		}
		d.AssigneeIDs = append(d.AssigneeIDs, id)
	}

	issue, err := svc.CreateIssue(ctx, d.ReporterID, d)
	if err != nil {
		return nil, err
	}
	if f.TimeSpent > 0 || f.TimeRemaining > 0 {
		if issue, err = svc.SetTracking(ctx, issue.ID, f.TimeSpent, f.TimeRemaining); err != nil {
			return nil, err
		}
	}
	for _, cf := range f.Comments {
		author, err := userID(cf.Author)
		if err != nil {
			return nil, err
		}
		if _, err := svc.AddComment(ctx, issue.ID, author, cf.Body); err != nil {
			return nil, err
		}
	}
	if len(f.Comments) > 0 {
		return svc.GetIssue(ctx, issue.ID)
	}
	return issue, nil
}
