package localdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyEnded is returned when an event is marked ended twice.
	ErrAlreadyEnded = errors.New("event already ended")
	// ErrAlreadySent is returned when a reminder is marked sent twice.
	ErrAlreadySent    = errors.New("reminder already sent")
	errNotInitialized = errors.New("database not initialized")
)

// Store is the Event Store: giveaways, polls and reminders.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetupDB opens the sqlite file at dbPath and creates the event tables.
func SetupDB(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL and busy timeout so the scheduler and interaction handlers can share the file.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// sqlite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, setup := range []func(*sql.DB) error{
		SetupGiveawayTable,
		SetupPollTable,
		SetupReminderTable,
	} {
		if err := setup(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	logger.Info("Event store ready", zap.String("path", dbPath))
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return errNotInitialized
	}
	return s.db.Close()
}
