package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBFile is the SQLite filename inside the data directory.
const DBFile = "projects.db"

// MaxList caps List results.
const MaxList = 100

var (
	// ErrNotFound is returned when a project id does not exist.
	ErrNotFound = errors.New("project not found")
	// ErrVersionConflict is returned by Update when the stored version no
	// longer matches the caller's expected version.
	ErrVersionConflict = errors.New("project was modified concurrently")
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ListOptions filters List. A zero value lists every status.
type ListOptions struct {
	Status Status
	Limit  int
}

// Store defines the persistence interface for projects and settings.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, opts ListOptions) ([]*Project, error)
	// Update writes p only if the stored version equals expectedVersion,
	// then bumps p.Version. Stale writers get ErrVersionConflict.
	Update(ctx context.Context, p *Project, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	// GetSettings returns ErrNotFound until SaveSettings has been called.
	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// ─── SQLite ──────────────────────────────────────────────────────────────────

// SQLiteStore implements Store on a single SQLite file. The project
// document is stored as JSON next to the indexed columns it is listed by.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the data directory if needed, opens SQLite in WAL
// mode and runs migrations.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("project: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("project: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("project: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("project: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			status        TEXT NOT NULL,
			current_stage TEXT NOT NULL,
			doc           TEXT NOT NULL,
			version       INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_projects_status  ON projects(status);
		CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at DESC);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Projects ────────────────────────────────────────────────────────────────

// Create inserts a new project at version 0.
func (s *SQLiteStore) Create(ctx context.Context, p *Project) error {
	p.Version = 0
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, status, current_stage, doc, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		p.ID, p.Name, string(p.Status), string(p.CurrentStage), string(doc), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// Get loads a project by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Project, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT doc, version FROM projects WHERE id = ?`, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return decodeProject(doc, version)
}

// List returns projects ordered by most recently updated, at most MaxList.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Project, error) {
	limit := opts.Limit
	if limit <= 0 || limit > MaxList {
		limit = MaxList
	}

	query := `SELECT doc, version FROM projects`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY updated_at DESC, created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		p, err := decodeProject(doc, version)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update is a compare-and-swap on the version column.
func (s *SQLiteStore) Update(ctx context.Context, p *Project, expectedVersion int64) error {
	next := *p
	next.Version = expectedVersion + 1
	next.UpdatedAt = Now()
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects
		    SET name = ?, status = ?, current_stage = ?, doc = ?, version = ?, updated_at = ?
		  WHERE id = ? AND version = ?`,
		next.Name, string(next.Status), string(next.CurrentStage), string(doc), next.Version, next.UpdatedAt,
		p.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, p.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		return ErrVersionConflict
	}

	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete removes a project.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func decodeProject(doc string, version int64) (*Project, error) {
	var p Project
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("parsing project document: %w", err)
	}
	p.Version = version
	if p.Stages == nil {
		p.Stages = map[Stage]StageData{}
	}
	if p.SelectedComponents == nil {
		p.SelectedComponents = []string{}
	}
	if p.ConversationHistory == nil {
		p.ConversationHistory = []Message{}
	}
	return &p, nil
}

// ─── Settings ────────────────────────────────────────────────────────────────

const settingsKey = "user"

// GetSettings returns the stored settings. It returns ErrNotFound when
// nothing was saved yet so callers can apply their own defaults.
func (s *SQLiteStore) GetSettings(ctx context.Context) (Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, fmt.Errorf("%w: no saved settings", ErrNotFound)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	var st Settings
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	return st.Normalize(), nil
}

// SaveSettings validates and upserts the settings.
func (s *SQLiteStore) SaveSettings(ctx context.Context, st Settings) error {
	st = st.Normalize()
	if err := st.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingsKey, string(raw),
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
