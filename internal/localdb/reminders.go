package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

type Reminder struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	Task      string    `json:"task"`
	RemindAt  time.Time `json:"remind_at"`
	HasSent   bool      `json:"has_sent"`
	CreatedAt time.Time `json:"created_at"`
}

// SetupReminderTable creates the reminders table.
func SetupReminderTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			task TEXT NOT NULL,
			remind_at TIMESTAMP NOT NULL,
			has_sent BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create reminders table", zap.Error(err))
		return fmt.Errorf("failed to create reminders table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id, has_sent)`); err != nil {
		logger.Warn("Failed to create reminders index", zap.Error(err))
	}
	return nil
}

// CreateReminder inserts r and returns its id.
func (s *Store) CreateReminder(ctx context.Context, r Reminder) (int64, error) {
	if s.db == nil {
		return 0, errNotInitialized
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (user_id, channel_id, task, remind_at, has_sent, created_at) VALUES (?, ?, ?, ?, false, ?)`,
		r.UserID, r.ChannelID, r.Task, r.RemindAt.UTC(), r.CreatedAt.UTC())
	if err != nil {
		logger.Error("Failed to create reminder", zap.Error(err), zap.String("user_id", r.UserID))
		return 0, fmt.Errorf("failed to create reminder: %w", err)
	}
	return res.LastInsertId()
}

const reminderColumns = `id, user_id, channel_id, task, remind_at, has_sent, created_at`

func (s *Store) queryReminders(ctx context.Context, query string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return []Reminder{}, err
	}
	defer rows.Close()

	reminders := []Reminder{}
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.ChannelID, &r.Task, &r.RemindAt, &r.HasSent, &r.CreatedAt); err != nil {
			logger.Error("Failed to scan reminder", zap.Error(err))
			continue
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// ListUserReminders returns the user's unsent reminders, soonest first.
func (s *Store) ListUserReminders(ctx context.Context, userID string) ([]Reminder, error) {
	if s.db == nil {
		return []Reminder{}, errNotInitialized
	}
	reminders, err := s.queryReminders(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? AND has_sent = false ORDER BY remind_at ASC, id ASC`,
		userID)
	if err != nil {
		logger.Error("Failed to list reminders", zap.Error(err), zap.String("user_id", userID))
		return []Reminder{}, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// ListPendingReminders returns every unsent reminder, soonest first.
func (s *Store) ListPendingReminders(ctx context.Context) ([]Reminder, error) {
	if s.db == nil {
		return []Reminder{}, errNotInitialized
	}
	reminders, err := s.queryReminders(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE has_sent = false ORDER BY remind_at ASC, id ASC`)
	if err != nil {
		logger.Error("Failed to list pending reminders", zap.Error(err))
		return []Reminder{}, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	return reminders, nil
}

// GetReminder returns the reminder with id, or nil when it does not exist.
func (s *Store) GetReminder(ctx context.Context, id int64) (*Reminder, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}
	var r Reminder
	err := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id).
		Scan(&r.ID, &r.UserID, &r.ChannelID, &r.Task, &r.RemindAt, &r.HasSent, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get reminder", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &r, nil
}

// DeleteUserReminder removes an unsent reminder owned by userID. It reports
// false when no such reminder exists.
func (s *Store) DeleteUserReminder(ctx context.Context, userID string, id int64) (bool, error) {
	if s.db == nil {
		return false, errNotInitialized
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ? AND has_sent = false`, id, userID)
	if err != nil {
		logger.Error("Failed to delete reminder", zap.Error(err), zap.Int64("id", id))
		return false, fmt.Errorf("failed to delete reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// MarkReminderSent flips has_sent once; later calls return ErrAlreadySent.
func (s *Store) MarkReminderSent(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNotInitialized
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET has_sent = true WHERE id = ? AND has_sent = false`, id)
	if err != nil {
		logger.Error("Failed to mark reminder sent", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrAlreadySent
	}
	return nil
}
