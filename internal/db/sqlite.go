package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/asr-api/backend/internal/auth"
	"github.com/asr-api/backend/internal/db/models"
)

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS request_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT UNIQUE NOT NULL,
		source TEXT NOT NULL,
		format TEXT NOT NULL,
		language TEXT NOT NULL,
		diarization INTEGER NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		elapsed REAL NOT NULL DEFAULT 0,
		segments INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_request_history_created ON request_history(created_at);
	`
	_, err := d.db.Exec(schema)
	return err
}

func (d *Database) EnsureAdmin(username, password string) error {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'admin'").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT INTO users (username, password, role) VALUES (?, ?, 'admin')",
		username, hash,
	)
	return err
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) GetUserByID(id int64) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// RecordRequest stores the outcome of one transcription request
func (d *Database) RecordRequest(e models.RequestRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO request_history
			(request_id, source, format, language, diarization, degraded, duration, elapsed, segments, status, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Source, e.Format, e.Language, boolInt(e.Diarization), boolInt(e.Degraded),
		e.Duration, e.Elapsed, e.Segments, e.Status, e.Error, e.CreatedAt.UTC(), e.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", e.RequestID, err)
	}
	return nil
}

// ListRequests returns the most recent requests, newest first
func (d *Database) ListRequests(limit int) ([]models.RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(`
		SELECT id, request_id, source, format, language, diarization, degraded, duration, elapsed, segments, status, error, created_at, completed_at
		FROM request_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.RequestRecord{}
	for rows.Next() {
		var r models.RequestRecord
		var diarization, degraded int
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Source, &r.Format, &r.Language, &diarization, &degraded,
			&r.Duration, &r.Elapsed, &r.Segments, &r.Status, &r.Error, &r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		r.Diarization = diarization != 0
		r.Degraded = degraded != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// PruneRequests deletes history older than the cutoff
func (d *Database) PruneRequests(before time.Time) (int64, error) {
	res, err := d.db.Exec("DELETE FROM request_history WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
