package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nusakov/remontbot/core/logger"
	"log/slog"
)

// Store is the sqlite-backed task index. It is a query accelerator over the
// report tree: the per-folder record file stays authoritative for status, and
// every write goes through both.
type Store struct {
	db *sqlx.DB
}

// Task is one indexed task row.
type Task struct {
	ID        int64     `db:"id"`
	House     string    `db:"house"`
	WorkType  string    `db:"work_type"`
	WorkData  string    `db:"work_data"`
	ReportDir string    `db:"report_dir"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ErrTaskNotFound is returned when a report directory has no index row.
var ErrTaskNotFound = errors.New("report: task not indexed")

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Put inserts or refreshes the index row for a report directory.
func (s *Store) Put(ctx context.Context, rec Record, reportDir string) error {
	const q = `
		INSERT INTO tasks (house, work_type, work_data, report_dir, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_dir) DO UPDATE SET
			house      = excluded.house,
			work_type  = excluded.work_type,
			work_data  = excluded.work_data,
			status     = excluded.status,
			updated_at = excluded.updated_at`
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, q, rec.House, rec.WorkType, rec.WorkData, reportDir, string(rec.Status), now, now); err != nil {
		return fmt.Errorf("report: index put %s: %w", reportDir, err)
	}
	logger.SVCTasks.Debug("task indexed",
		slog.String("event", "tasks.put"),
		slog.String("house", rec.House),
		slog.String("work_type", rec.WorkType),
		slog.String("report_dir", reportDir),
		slog.String("status", string(rec.Status)),
	)
	return nil
}

// SetStatus updates the status of the indexed task for a report directory.
func (s *Store) SetStatus(ctx context.Context, reportDir string, status Status) error {
	const q = `UPDATE tasks SET status = ?, updated_at = ? WHERE report_dir = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), time.Now().UTC(), reportDir)
	if err != nil {
		return fmt.Errorf("report: index status %s: %w", reportDir, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, reportDir)
	}
	return nil
}

// Pending returns all incomplete tasks ordered by creation time, oldest first.
func (s *Store) Pending(ctx context.Context) ([]Task, error) {
	const q = `SELECT * FROM tasks WHERE status = ? ORDER BY created_at, id`
	var tasks []Task
	if err := s.db.SelectContext(ctx, &tasks, q, string(StatusPending)); err != nil {
		return nil, fmt.Errorf("report: index pending: %w", err)
	}
	return tasks, nil
}

// ByID returns the indexed task by its row id. Callback payloads carry the
// id because report directory paths do not fit Telegram's 64-byte limit.
func (s *Store) ByID(ctx context.Context, id int64) (Task, error) {
	const q = `SELECT * FROM tasks WHERE id = ?`
	var task Task
	if err := s.db.GetContext(ctx, &task, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
		}
		return Task{}, fmt.Errorf("report: index lookup id %d: %w", id, err)
	}
	return task, nil
}

// ByDir returns the indexed task for a report directory.
func (s *Store) ByDir(ctx context.Context, reportDir string) (Task, error) {
	const q = `SELECT * FROM tasks WHERE report_dir = ?`
	var task Task
	if err := s.db.GetContext(ctx, &task, q, reportDir); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, reportDir)
		}
		return Task{}, fmt.Errorf("report: index lookup %s: %w", reportDir, err)
	}
	return task, nil
}

// Counts returns pending and total task counters.
func (s *Store) Counts(ctx context.Context) (pending, total int, err error) {
	if err = s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tasks`); err != nil {
		return 0, 0, fmt.Errorf("report: index counts: %w", err)
	}
	if err = s.db.GetContext(ctx, &pending, `SELECT COUNT(*) FROM tasks WHERE status = ?`, string(StatusPending)); err != nil {
		return 0, 0, fmt.Errorf("report: index counts: %w", err)
	}
	return pending, total, nil
}

// Reconcile upserts every scanned record into the index. It runs at startup
// so an index created after (or lost from under) an existing archive
// converges with the tree.
func (s *Store) Reconcile(ctx context.Context, scanned []ScannedTask) error {
	for _, t := range scanned {
		if err := s.Put(ctx, t.Record, t.Dir); err != nil {
			return err
		}
	}
	logger.SEED.Info("task index reconciled",
		slog.String("event", "seed.tasks"),
		slog.Int("tasks", len(scanned)),
	)
	return nil
}
