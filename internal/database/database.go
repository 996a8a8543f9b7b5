// Package database is the SQLite data provider for bookings and the
// transition journal.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB represents the database connection.
type DB struct {
	*sql.DB
	path     string
	location *time.Location
	logger   *zerolog.Logger
}

var (
	ErrNotFound               = errors.New("booking not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStatusConflict         = errors.New("booking status does not allow this change")
)

// timeLayout is how timestamps are stored; TEXT columns keep the offset.
const timeLayout = time.RFC3339Nano

// NewDB opens the database and creates tables if they don't exist. Booking
// times are returned in loc (nil means local time).
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	instance := &DB{
		DB:       db,
		path:     path,
		location: loc,
		logger:   logger,
	}

	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS stylists (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			start_at TEXT NOT NULL,
			stylist_id TEXT NOT NULL,
			client_id TEXT,
			manual_client_name TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			cancellation_reason TEXT,
			completion_note TEXT,
			confirmed_at TEXT,
			cancelled_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS booking_services (
			booking_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			service_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			PRIMARY KEY (booking_id, position),
			FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS booking_transitions (
			id TEXT PRIMARY KEY,
			booking_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			reason TEXT,
			note TEXT,
			at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_stylist ON bookings(stylist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_booking ON booking_transitions(booking_id, at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func (db *DB) parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.In(db.location), nil
}

func (db *DB) parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := db.parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
