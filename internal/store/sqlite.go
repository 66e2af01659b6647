// This file implements an SQLite-backed analytics store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nmiskell11/reframe-app/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids "database is locked" errors from the analytics worker.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reframe_sessions (
		id, session_token, relationship_type, had_context, context_length, message_length,
		stage, question_round, health_check_type, questions_asked, outcome, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nilIfEmpty(rec.SessionToken), string(rec.RelationshipType), rec.HadContext,
		rec.ContextLength, rec.MessageLength, string(rec.Stage), rec.QuestionRound,
		nilIfEmpty(string(rec.HealthCheckType)), rec.QuestionsAsked, nilIfEmpty(string(rec.Outcome)),
		rec.CreatedAt.UTC(), rec.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert session %s: %w", rec.ID, err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "id", rec.ID)
	return nil
}

const (
	sqliteMarkInbound = `UPDATE reframe_sessions SET rfd_inbound_triggered = 1, rfd_inbound_patterns = ?,
		rfd_inbound_severity = ?, updated_at = ? WHERE id = ?`
	sqliteMarkOutbound = `UPDATE reframe_sessions SET rfd_outbound_triggered = 1, rfd_outbound_patterns = ?,
		rfd_outbound_severity = ?, updated_at = ? WHERE id = ?`
)

func (s *SQLiteStore) AddDetection(ctx context.Context, rec DetectionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin detection transaction: %w", err)
	}
	defer tx.Rollback()

	patterns := encodePatterns(rec.Patterns)
	if _, err := tx.ExecContext(ctx, `INSERT INTO rfd_detections (
		session_id, detection_type, patterns_detected, severity, explanation, suggestion, user_saw_warning, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, string(rec.DetectionType), patterns, nilIfEmpty(string(rec.Severity)),
		nilIfEmpty(rec.Explanation), nilIfEmpty(rec.Suggestion), rec.UserSawWarning, rec.CreatedAt.UTC()); err != nil {
		slog.Error("SQLiteStore AddDetection insert failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to insert detection for session %s: %w", rec.SessionID, err)
	}

	mark := sqliteMarkOutbound
	if rec.DetectionType == models.DirectionInbound {
		mark = sqliteMarkInbound
	}
	if _, err := tx.ExecContext(ctx, mark, patterns, nilIfEmpty(string(rec.Severity)), rec.CreatedAt.UTC(), rec.SessionID); err != nil {
		slog.Error("SQLiteStore AddDetection session update failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to mark session %s: %w", rec.SessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detection for session %s: %w", rec.SessionID, err)
	}
	slog.Debug("SQLiteStore AddDetection succeeded", "session_id", rec.SessionID, "type", rec.DetectionType)
	return nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, out SessionOutcome) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reframe_sessions SET outcome = ?, questions_asked = ?, updated_at = ? WHERE id = ?`,
		nilIfEmpty(string(out.Outcome)), out.QuestionsAsked, out.UpdatedAt.UTC(), out.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession failed", "error", err, "id", out.ID)
		return fmt.Errorf("failed to update session %s: %w", out.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, session_token, relationship_type, had_context, context_length,
		message_length, stage, question_round, health_check_type,
		rfd_inbound_triggered, rfd_inbound_patterns, rfd_inbound_severity,
		rfd_outbound_triggered, rfd_outbound_patterns, rfd_outbound_severity,
		questions_asked, outcome, created_at, updated_at
		FROM reframe_sessions WHERE id = ?`, id)

	var rec SessionRecord
	var token, healthType, inPatterns, inSeverity, outPatterns, outSeverity, outcome sql.NullString
	var relType, stage string
	err := row.Scan(&rec.ID, &token, &relType, &rec.HadContext, &rec.ContextLength,
		&rec.MessageLength, &stage, &rec.QuestionRound, &healthType,
		&rec.InboundTriggered, &inPatterns, &inSeverity,
		&rec.OutboundTriggered, &outPatterns, &outSeverity,
		&rec.QuestionsAsked, &outcome, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	rec.SessionToken = token.String
	rec.RelationshipType = models.RelationshipType(relType)
	rec.Stage = models.Stage(stage)
	rec.HealthCheckType = models.HealthCheckType(healthType.String)
	rec.InboundSeverity = models.Severity(inSeverity.String)
	rec.OutboundSeverity = models.Severity(outSeverity.String)
	rec.Outcome = models.Outcome(outcome.String)
	if rec.InboundPatterns, err = decodePatterns(inPatterns); err != nil {
		return nil, err
	}
	if rec.OutboundPatterns, err = decodePatterns(outPatterns); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) ListDetections(ctx context.Context, sessionID string) ([]DetectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, detection_type, patterns_detected, severity,
		explanation, suggestion, user_saw_warning, created_at
		FROM rfd_detections WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListDetections query failed", "error", err)
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []DetectionRecord
	for rows.Next() {
		var d DetectionRecord
		var detType string
		var patterns, severity, explanation, suggestion sql.NullString
		if err := rows.Scan(&d.ID, &d.SessionID, &detType, &patterns, &severity,
			&explanation, &suggestion, &d.UserSawWarning, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection row: %w", err)
		}
		d.DetectionType = models.Direction(detType)
		d.Severity = models.Severity(severity.String)
		d.Explanation = explanation.String
		d.Suggestion = suggestion.String
		if d.Patterns, err = decodePatterns(patterns); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detection rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
