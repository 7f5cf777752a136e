package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/board/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes every transaction, which gives per-issue atomicity for free.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		// FULL fsyncs on commit: an acknowledged write survives a crash or restart.
		{"PRAGMA synchronous=FULL", "set synchronous"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(data)); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
				return fmt.Errorf("record migration %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reset removes every project, user, issue and comment row.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"comments", "issue_assignees", "issues", "users", "projects"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- Project ---

func (s *SQLiteStore) GetProject(ctx context.Context) (*models.Project, error) {
	p := &models.Project{}
	var category string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, url, description, category, updated_at FROM projects WHERE id = 1`,
	).Scan(&p.Name, &p.URL, &p.Description, &category, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.Category = models.ProjectCategory(category)
	return p, nil
}

func (s *SQLiteStore) SaveProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, url, description, category, updated_at) VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, url=excluded.url, description=excluded.description,
			category=excluded.category, updated_at=excluded.updated_at`,
		p.Name, p.URL, p.Description, string(p.Category), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, avatar_url, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.AvatarURL, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_url, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.AvatarURL, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, avatar_url, created_at FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Issues ---

const issueColumns = `id, title, description, type, status, priority, reporter_id, estimate,
	time_logged, time_remaining, list_position, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var issueType, status, priority string
	var estimate sql.NullFloat64

	if err := row.Scan(&issue.ID, &issue.Title, &issue.Description, &issueType, &status, &priority,
		&issue.ReporterID, &estimate, &issue.TimeLogged, &issue.TimeRemaining, &issue.ListPosition,
		&issue.CreatedAt, &issue.UpdatedAt); err != nil {
		return nil, err
	}

	issue.Type = models.IssueType(issueType)
	issue.Status = models.IssueStatus(status)
	issue.Priority = models.IssuePriority(priority)
	if estimate.Valid {
		v := estimate.Float64
		issue.Estimate = &v
	}
	issue.AssigneeIDs = []string{}
	return issue, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.AssigneeIDs == nil {
		issue.AssigneeIDs = []string{}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO issues (`+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.Title, issue.Description, string(issue.Type), string(issue.Status), string(issue.Priority),
			issue.ReporterID, nullFloat(issue.Estimate), issue.TimeLogged, issue.TimeRemaining, issue.ListPosition,
			issue.CreatedAt, issue.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		return writeAssignees(ctx, tx, issue.ID, issue.AssigneeIDs)
	})
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue *models.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		issue, err = loadIssue(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// loadIssue reads one issue with its assignees and comments through q.
func loadIssue(ctx context.Context, q queryer, id string) (*models.Issue, error) {
	issue, err := scanIssue(q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	assignees, err := loadAssignees(ctx, q, id)
	if err != nil {
		return nil, err
	}
	issue.AssigneeIDs = assignees[id]
	if issue.AssigneeIDs == nil {
		issue.AssigneeIDs = []string{}
	}

	issue.Comments, err = loadComments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// loadAssignees returns assignee ids keyed by issue id, in assignment order.
// An empty issueID loads assignees for every issue.
func loadAssignees(ctx context.Context, q queryer, issueID string) (map[string][]string, error) {
	query := `SELECT issue_id, user_id FROM issue_assignees`
	var args []any
	if issueID != "" {
		query += ` WHERE issue_id = ?`
		args = append(args, issueID)
	}
	query += ` ORDER BY issue_id, position`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]string)
	for rows.Next() {
		var iid, uid string
		if err := rows.Scan(&iid, &uid); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		out[iid] = append(out[iid], uid)
	}
	return out, rows.Err()
}

func writeAssignees(ctx context.Context, tx *sql.Tx, issueID string, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM issue_assignees WHERE issue_id = ?", issueID); err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	for pos, uid := range userIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO issue_assignees (issue_id, user_id, position) VALUES (?, ?, ?)", issueID, uid, pos,
		); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY list_position, created_at`

	var issues []*models.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list issues: %w", err)
		}
		for rows.Next() {
			issue, err := scanIssue(rows)
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan issue: %w", err)
			}
			issues = append(issues, issue)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		assignees, err := loadAssignees(ctx, tx, "")
		if err != nil {
			return err
		}
		for _, issue := range issues {
			if ids, ok := assignees[issue.ID]; ok {
				issue.AssigneeIDs = ids
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

func (s *SQLiteStore) MutateIssue(ctx context.Context, id string, fn func(issue *models.Issue) error) (*models.Issue, error) {
	var updated *models.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		issue, err := loadIssue(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(issue); err != nil {
			return err
		}
		issue.ID = id
		issue.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			`UPDATE issues SET title=?, description=?, type=?, status=?, priority=?, reporter_id=?, estimate=?,
				time_logged=?, time_remaining=?, list_position=?, updated_at=?
			WHERE id=?`,
			issue.Title, issue.Description, string(issue.Type), string(issue.Status), string(issue.Priority),
			issue.ReporterID, nullFloat(issue.Estimate), issue.TimeLogged, issue.TimeRemaining, issue.ListPosition,
			issue.UpdatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		if err := writeAssignees(ctx, tx, id, issue.AssigneeIDs); err != nil {
			return err
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return nil
}

// MinListPosition returns the smallest list position in a column, or 0 when empty.
func (s *SQLiteStore) MinListPosition(ctx context.Context, status models.IssueStatus) (float64, error) {
	var pos sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(list_position) FROM issues WHERE status = ?", string(status),
	).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("min list position: %w", err)
	}
	return pos.Float64, nil
}

// --- Comments ---

func loadComments(ctx context.Context, q queryer, issueID string) ([]*models.Comment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, issue_id, author_id, body, created_at, updated_at
		FROM comments WHERE issue_id = ? ORDER BY created_at, rowid`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		// Touch the owning issue so it counts as recently updated.
		result, err := tx.ExecContext(ctx, "UPDATE issues SET updated_at = ? WHERE id = ?", now, c.IssueID)
		if err != nil {
			return fmt.Errorf("touch issue: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("issue %s: %w", c.IssueID, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO comments (id, issue_id, author_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.IssueID, c.AuthorID, c.Body, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	c := &models.Comment{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, issue_id, author_id, body, created_at, updated_at FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// UpdateComment rewrites the body only; author and creation time are immutable.
func (s *SQLiteStore) UpdateComment(ctx context.Context, c *models.Comment) error {
	c.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE comments SET body=?, updated_at=? WHERE id=?`, c.Body, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("comment %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return nil
}
