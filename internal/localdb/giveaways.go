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

// Giveaway is a reaction giveaway waiting for (or past) its deadline.
type Giveaway struct {
	ID              int64     `json:"id"`
	GuildID         string    `json:"guild_id"`
	ChannelID       string    `json:"channel_id"`
	MessageID       string    `json:"message_id"`
	Prize           string    `json:"prize"`
	WinnerCount     int       `json:"winner_count"`
	ReactionEmoji   string    `json:"reaction_emoji"`
	EndsAt          time.Time `json:"ends_at"`
	HasEnded        bool      `json:"has_ended"`
	Winners         []string  `json:"winners"`
	CreatedByUserID string    `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// SetupGiveawayTable creates the giveaways table.
func SetupGiveawayTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS giveaways (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			prize TEXT NOT NULL,
			winner_count INTEGER NOT NULL DEFAULT 1,
			reaction_emoji TEXT NOT NULL,
			ends_at TIMESTAMP NOT NULL,
			has_ended BOOLEAN NOT NULL DEFAULT false,
			winners_json TEXT,
			created_by_user_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create giveaways table", zap.Error(err))
		return fmt.Errorf("failed to create giveaways table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_giveaways_open ON giveaways(has_ended)`); err != nil {
		logger.Warn("Failed to create giveaways index", zap.Error(err))
	}
	return nil
}

// CreateGiveaway inserts g and returns its id.
func (s *Store) CreateGiveaway(ctx context.Context, g Giveaway) (int64, error) {
	if s.db == nil {
		return 0, errNotInitialized
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO giveaways (
			guild_id, channel_id, message_id, prize, winner_count, reaction_emoji,
			ends_at, has_ended, winners_json, created_by_user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, false, '[]', ?, ?)
	`,
		g.GuildID, g.ChannelID, g.MessageID, g.Prize, g.WinnerCount, g.ReactionEmoji,
		g.EndsAt.UTC(), g.CreatedByUserID, g.CreatedAt.UTC(),
	)
	if err != nil {
		logger.Error("Failed to create giveaway", zap.Error(err), zap.String("message_id", g.MessageID))
		return 0, fmt.Errorf("failed to create giveaway: %w", err)
	}
	return res.LastInsertId()
}

const giveawayColumns = `id, guild_id, channel_id, message_id, prize, winner_count, reaction_emoji,
	ends_at, has_ended, COALESCE(winners_json, '[]'), created_by_user_id, created_at`

func scanGiveaway(row interface{ Scan(...any) error }) (*Giveaway, error) {
	var (
		g           Giveaway
		winnersJSON string
	)
	if err := row.Scan(
		&g.ID, &g.GuildID, &g.ChannelID, &g.MessageID, &g.Prize, &g.WinnerCount, &g.ReactionEmoji,
		&g.EndsAt, &g.HasEnded, &winnersJSON, &g.CreatedByUserID, &g.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(winnersJSON), &g.Winners); err != nil {
		return nil, fmt.Errorf("failed to decode giveaway winners: %w", err)
	}
	return &g, nil
}

// GetGiveaway returns the giveaway with id, or nil when it does not exist.
func (s *Store) GetGiveaway(ctx context.Context, id int64) (*Giveaway, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}
	g, err := scanGiveaway(s.db.QueryRowContext(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get giveaway", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return g, nil
}

// ListOpenGiveaways returns giveaways not yet ended, earliest deadline first.
func (s *Store) ListOpenGiveaways(ctx context.Context) ([]Giveaway, error) {
	if s.db == nil {
		return []Giveaway{}, errNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE has_ended = false ORDER BY ends_at ASC, id ASC`)
	if err != nil {
		logger.Error("Failed to list open giveaways", zap.Error(err))
		return []Giveaway{}, fmt.Errorf("failed to list open giveaways: %w", err)
	}
	defer rows.Close()

	giveaways := []Giveaway{}
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			logger.Error("Failed to scan giveaway", zap.Error(err))
			continue
		}
		giveaways = append(giveaways, *g)
	}
	if err := rows.Err(); err != nil {
		return []Giveaway{}, fmt.Errorf("failed to iterate giveaways: %w", err)
	}
	return giveaways, nil
}

// MarkGiveawayEnded records the winners and flips has_ended. A second call for
// the same id returns ErrAlreadyEnded and changes nothing.
func (s *Store) MarkGiveawayEnded(ctx context.Context, id int64, winners []string) error {
	if s.db == nil {
		return errNotInitialized
	}
	if winners == nil {
		winners = []string{}
	}
	winnersJSON, err := json.Marshal(winners)
	if err != nil {
		return fmt.Errorf("failed to encode winners: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE giveaways SET has_ended = true, winners_json = ? WHERE id = ? AND has_ended = false`,
		string(winnersJSON), id)
	if err != nil {
		logger.Error("Failed to mark giveaway ended", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to mark giveaway ended: %w", err)
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
