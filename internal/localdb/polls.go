package localdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// Poll is a reaction poll; Emojis[i] votes for Answers[i].
type Poll struct {
	ID              int64     `json:"id"`
	GuildID         string    `json:"guild_id"`
	ChannelID       string    `json:"channel_id"`
	MessageID       string    `json:"message_id"`
	Question        string    `json:"question"`
	Answers         []string  `json:"answers"`
	Emojis          []string  `json:"emojis"`
	EndsAt          time.Time `json:"ends_at"`
	HasEnded        bool      `json:"has_ended"`
	CreatedByUserID string    `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// SetupPollTable creates the polls table.
func SetupPollTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS polls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			question TEXT NOT NULL,
			answers_json TEXT NOT NULL,
			emojis_json TEXT NOT NULL,
			ends_at TIMESTAMP NOT NULL,
			has_ended BOOLEAN NOT NULL DEFAULT false,
			created_by_user_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create polls table", zap.Error(err))
		return fmt.Errorf("failed to create polls table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_polls_open ON polls(has_ended)`); err != nil {
		logger.Warn("Failed to create polls index", zap.Error(err))
	}
	return nil
}

// CreatePoll inserts p and returns its id.
func (s *Store) CreatePoll(ctx context.Context, p Poll) (int64, error) {
	if s.db == nil {
		return 0, errNotInitialized
	}
	if len(p.Answers) != len(p.Emojis) {
		return 0, fmt.Errorf("answers (%d) and emojis (%d) must align", len(p.Answers), len(p.Emojis))
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode answers: %w", err)
	}
	emojisJSON, err := json.Marshal(p.Emojis)
	if err != nil {
		return 0, fmt.Errorf("failed to encode emojis: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO polls (
			guild_id, channel_id, message_id, question, answers_json, emojis_json,
			ends_at, has_ended, created_by_user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, false, ?, ?)
	`,
		p.GuildID, p.ChannelID, p.MessageID, p.Question, string(answersJSON), string(emojisJSON),
		p.EndsAt.UTC(), p.CreatedByUserID, p.CreatedAt.UTC(),
	)
	if err != nil {
		logger.Error("Failed to create poll", zap.Error(err), zap.String("message_id", p.MessageID))
		return 0, fmt.Errorf("failed to create poll: %w", err)
	}
	return res.LastInsertId()
}

const pollColumns = `id, guild_id, channel_id, message_id, question, answers_json, emojis_json,
	ends_at, has_ended, created_by_user_id, created_at`

func scanPoll(row interface{ Scan(...any) error }) (*Poll, error) {
	var (
		p                       Poll
		answersJSON, emojisJSON string
	)
	if err := row.Scan(
		&p.ID, &p.GuildID, &p.ChannelID, &p.MessageID, &p.Question, &answersJSON, &emojisJSON,
		&p.EndsAt, &p.HasEnded, &p.CreatedByUserID, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answersJSON), &p.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode poll answers: %w", err)
	}
	if err := json.Unmarshal([]byte(emojisJSON), &p.Emojis); err != nil {
		return nil, fmt.Errorf("failed to decode poll emojis: %w", err)
	}
	return &p, nil
}

// GetPoll returns the poll with id, or nil when it does not exist.
func (s *Store) GetPoll(ctx context.Context, id int64) (*Poll, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}
	p, err := scanPoll(s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get poll", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return p, nil
}

// ListOpenPolls returns polls not yet ended, earliest deadline first.
func (s *Store) ListOpenPolls(ctx context.Context) ([]Poll, error) {
	if s.db == nil {
		return []Poll{}, errNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE has_ended = false ORDER BY ends_at ASC, id ASC`)
	if err != nil {
		logger.Error("Failed to list open polls", zap.Error(err))
		return []Poll{}, fmt.Errorf("failed to list open polls: %w", err)
	}
	defer rows.Close()

	polls := []Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			logger.Error("Failed to scan poll", zap.Error(err))
			continue
		}
		polls = append(polls, *p)
	}
	if err := rows.Err(); err != nil {
		return []Poll{}, fmt.Errorf("failed to iterate polls: %w", err)
	}
	return polls, nil
}

// MarkPollEnded flips has_ended once; later calls return ErrAlreadyEnded.
func (s *Store) MarkPollEnded(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNotInitialized
	}
	res, err := s.db.ExecContext(ctx, `UPDATE polls SET has_ended = true WHERE id = ? AND has_ended = false`, id)
	if err != nil {
		logger.Error("Failed to mark poll ended", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to mark poll ended: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrAlreadyEnded
	}
	return nil
}
