// Package sqlite is the standalone storage backend: the processed set and
// scheduled tasks in a single local database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/chatclaw/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.ProcessedStore and store.TaskStore over one
// sqlite file. The detector is the only hash writer; busy_timeout covers
// the occasional concurrent task write from the control surface.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies any
// pending migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewMigrator returns a migrator over the embedded migrations for manual
// up/down/version control from the CLI.
func NewMigrator(path string) (*migrate.Migrate, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// Migrate applies pending schema migrations to db.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// --- ProcessedStore ---

func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM message_hashes WHERE hash = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query hash: %w", err)
	}
	return true, nil
}

func (s *Store) Add(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO message_hashes (hash) VALUES (?)`, key)
	if err != nil {
		return fmt.Errorf("insert hash: %w", err)
	}
	return nil
}

func (s *Store) Prune(ctx context.Context, max int) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_hashes`).Scan(&count); err != nil {
		return fmt.Errorf("count hashes: %w", err)
	}
	if count <= max {
		return nil
	}
	// Keep roughly the newest half, dropping by insertion order.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM message_hashes WHERE id IN (
			SELECT id FROM message_hashes ORDER BY id ASC LIMIT ?
		)`, count-max/2)
	if err != nil {
		return fmt.Errorf("prune hashes: %w", err)
	}
	return nil
}

// --- TaskStore ---

func (s *Store) Create(ctx context.Context, task *store.ScheduledTask) (int64, error) {
	targets, err := json.Marshal(task.Targets)
	if err != nil {
		return 0, fmt.Errorf("encode targets: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (name, cron_expression, message, message_type, image_base64, target_groups, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.Name, task.CronExpr, task.Message, task.MessageType, task.ImageBase64, string(targets), boolToInt(task.Enabled))
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) Get(ctx context.Context, id int64) (*store.ScheduledTask, error) {
	row := s.db.QueryRowContext(ctx, taskColumns+` WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *Store) List(ctx context.Context) ([]*store.ScheduledTask, error) {
	return s.queryTasks(ctx, taskColumns+` ORDER BY id DESC`)
}

func (s *Store) ListEnabled(ctx context.Context) ([]*store.ScheduledTask, error) {
	return s.queryTasks(ctx, taskColumns+` WHERE enabled = 1 ORDER BY id`)
}

func (s *Store) Update(ctx context.Context, task *store.ScheduledTask) error {
	targets, err := json.Marshal(task.Targets)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET name = ?, cron_expression = ?, message = ?, message_type = ?, image_base64 = ?, target_groups = ?, enabled = ?
		WHERE id = ?`,
		task.Name, task.CronExpr, task.Message, task.MessageType, task.ImageBase64, string(targets), boolToInt(task.Enabled), task.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

const taskColumns = `SELECT id, name, cron_expression, message, message_type, image_base64, target_groups, enabled, created_at FROM scheduled_tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*store.ScheduledTask, error) {
	var (
		task    store.ScheduledTask
		targets string
		enabled int
		created string
	)
	err := row.Scan(&task.ID, &task.Name, &task.CronExpr, &task.Message,
		&task.MessageType, &task.ImageBase64, &targets, &enabled, &created)
	if err != nil {
		return nil, err
	}
	task.Enabled = enabled != 0
	// sqlite stores CURRENT_TIMESTAMP as UTC text.
	if t, perr := time.Parse("2006-01-02 15:04:05", created); perr == nil {
		task.CreatedAt = t.UTC()
	}
	if targets != "" {
		if err := json.Unmarshal([]byte(targets), &task.Targets); err != nil {
			return nil, fmt.Errorf("decode targets: %w", err)
		}
	}
	return &task, nil
}

func (s *Store) queryTasks(ctx context.Context, query string) ([]*store.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*store.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
