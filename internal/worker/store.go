// Package worker persists optional crew contact details collected at first
// contact with the bot.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Worker is one registered crew member.
type Worker struct {
	TelegramID int64     `db:"telegram_id"`
	Phone      string    `db:"phone"`
	FullName   string    `db:"full_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Store reads and writes worker rows.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Save inserts or refreshes a worker's contact details.
func (s *Store) Save(ctx context.Context, w Worker) error {
	const q = `
		INSERT INTO workers (telegram_id, phone, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			phone      = excluded.phone,
			full_name  = excluded.full_name,
			updated_at = excluded.updated_at`
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, q, w.TelegramID, w.Phone, w.FullName, now, now); err != nil {
		return fmt.Errorf("worker: save %d: %w", w.TelegramID, err)
	}
	return nil
}

// Known reports whether contact details for the user are already on file.
func (s *Store) Known(ctx context.Context, telegramID int64) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM workers WHERE telegram_id = ?`, telegramID); err != nil {
		return false, fmt.Errorf("worker: lookup %d: %w", telegramID, err)
	}
	return n > 0, nil
}

// Get returns a worker's details, or sql.ErrNoRows wrapped when unknown.
func (s *Store) Get(ctx context.Context, telegramID int64) (Worker, error) {
	var w Worker
	if err := s.db.GetContext(ctx, &w, `SELECT * FROM workers WHERE telegram_id = ?`, telegramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Worker{}, fmt.Errorf("worker: unknown user %d: %w", telegramID, err)
		}
		return Worker{}, fmt.Errorf("worker: lookup %d: %w", telegramID, err)
	}
	return w, nil
}
