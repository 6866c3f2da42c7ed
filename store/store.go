package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/sandbox"
)

// Store wraps the SQLite database backing DocsPort.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExecutionRecord is one row of the execution history log.
type ExecutionRecord struct {
	ID          int64         `json:"id"`
	ExecutionID string        `json:"execution_id"`
	Code        string        `json:"code_content"`
	Kind        string        `json:"execution_kind"`
	Stdout      string        `json:"output"`
	Stderr      string        `json:"error_output"`
	ExitCode    int           `json:"exit_code"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	TimedOut    bool          `json:"timed_out"`
	CreatedAt   time.Time     `json:"created_at"`
}

// AppendExecution implements sandbox.History. The log is append-only; the
// core never updates or deletes rows.
func (s *Store) AppendExecution(ctx context.Context, code, kind string, res sandbox.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_history
			(execution_id, code_content, execution_kind, output, error_output, exit_code, duration_ms, timed_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, code, kind, res.Stdout, res.Stderr, res.ExitCode,
		res.Duration.Milliseconds(), boolToInt(res.TimedOut),
		res.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting execution record: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent executions, newest first.
func (s *Store) ListExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, code_content, execution_kind, output, error_output,
		       exit_code, duration_ms, timed_out, created_at
		FROM execution_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var timedOut int
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.ExecutionID, &rec.Code, &rec.Kind,
			&rec.Stdout, &rec.Stderr, &rec.ExitCode, &rec.DurationMS,
			&timedOut, &createdAt); err != nil {
			return nil, err
		}
		rec.TimedOut = timedOut != 0
		rec.Duration = time.Duration(rec.DurationMS) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveAnalysis implements analyzer.Cache. The previous analysis of the file
// is replaced wholesale.
func (s *Store) SaveAnalysis(ctx context.Context, filePath string, elements []analyzer.Element) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM code_analysis WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("clearing old analysis: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, elem := range elements {
		deps, err := json.Marshal(elem.Dependencies)
		if err != nil {
			return err
		}
		calls, err := json.Marshal(elem.Calls)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO code_analysis
				(file_path, element_kind, name, line_start, line_end, content, parent, dependencies, calls, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			filePath, elem.Kind, elem.Name, elem.LineStart, elem.LineEnd,
			elem.Content, elem.Parent, string(deps), string(calls), now,
		); err != nil {
			return fmt.Errorf("inserting analysis element: %w", err)
		}
	}

	return tx.Commit()
}

// LoadAnalysis implements analyzer.Cache.
func (s *Store) LoadAnalysis(ctx context.Context, filePath string) ([]analyzer.Element, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT element_kind, name, line_start, line_end, content, parent, dependencies, calls
		FROM code_analysis
		WHERE file_path = ?
		ORDER BY line_start`, filePath)
	if err != nil {
		return nil, fmt.Errorf("loading analysis: %w", err)
	}
	defer rows.Close()

	var elements []analyzer.Element
	for rows.Next() {
		var elem analyzer.Element
		var deps, calls string
		if err := rows.Scan(&elem.Kind, &elem.Name, &elem.LineStart, &elem.LineEnd,
			&elem.Content, &elem.Parent, &deps, &calls); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(deps), &elem.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshaling dependencies: %w", err)
		}
		if err := json.Unmarshal([]byte(calls), &elem.Calls); err != nil {
			return nil, fmt.Errorf("unmarshaling calls: %w", err)
		}
		elements = append(elements, elem)
	}
	return elements, rows.Err()
}

// AnalyzedAt implements analyzer.Cache. It returns the zero time when no
// analysis is stored for the file.
func (s *Store) AnalyzedAt(ctx context.Context, filePath string) (time.Time, error) {
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM code_analysis
		WHERE file_path = ?
		ORDER BY created_at DESC LIMIT 1`, filePath).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, createdAt)
}

// Comment is an annotation attached to a file location or element.
type Comment struct {
	ID          int64     `json:"id"`
	FilePath    string    `json:"file_path"`
	LineNumber  int       `json:"line_number,omitempty"`
	ElementName string    `json:"element_name,omitempty"`
	Text        string    `json:"comment_text"`
	Type        string    `json:"comment_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateComment stores a new comment and returns its id.
func (s *Store) CreateComment(ctx context.Context, c *Comment) (int64, error) {
	if c.Type == "" {
		c.Type = "general"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (file_path, line_number, element_name, comment_text, comment_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.FilePath, c.LineNumber, c.ElementName, c.Text, c.Type, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting comment: %w", err)
	}
	return res.LastInsertId()
}

// ListComments returns all comments for a file ordered by line number.
func (s *Store) ListComments(ctx context.Context, filePath string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, line_number, element_name, comment_text, comment_type, created_at, updated_at
		FROM comments
		WHERE file_path = ?
		ORDER BY line_number, created_at`, filePath)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.FilePath, &c.LineNumber, &c.ElementName,
			&c.Text, &c.Type, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a comment by id. Deleting a missing comment is an
// error so the API can answer 404.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("comment not found: %d", id)
	}
	return nil
}

// Snippet is a stored, reusable piece of code.
type Snippet struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveSnippet stores a snippet and returns its id.
func (s *Store) SaveSnippet(ctx context.Context, sn *Snippet) (int64, error) {
	if sn.Language == "" {
		sn.Language = sandbox.KindPython
	}
	if sn.Category == "" {
		sn.Category = "general"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO code_snippets (name, description, code, language, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sn.Name, sn.Description, sn.Code, sn.Language, sn.Category,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting snippet: %w", err)
	}
	return res.LastInsertId()
}

// ListSnippets returns snippets, optionally filtered by category.
func (s *Store) ListSnippets(ctx context.Context, category string) ([]Snippet, error) {
	query := `
		SELECT id, name, description, code, language, category, created_at
		FROM code_snippets`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		var createdAt string
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Description, &sn.Code,
			&sn.Language, &sn.Category, &createdAt); err != nil {
			return nil, err
		}
		sn.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

// GetSetting returns a setting value; missing keys return an empty string.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting upserts a setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
