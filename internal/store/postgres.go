// This file implements a PostgreSQL-backed analytics store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"

	"github.com/nmiskell11/reframe-app/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reframe_sessions (
		id, session_token, relationship_type, had_context, context_length, message_length,
		stage, question_round, health_check_type, questions_asked, outcome, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		rec.ID, nilIfEmpty(rec.SessionToken), string(rec.RelationshipType), rec.HadContext,
		rec.ContextLength, rec.MessageLength, string(rec.Stage), rec.QuestionRound,
		nilIfEmpty(string(rec.HealthCheckType)), rec.QuestionsAsked, nilIfEmpty(string(rec.Outcome)),
		rec.CreatedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert session %s: %w", rec.ID, err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "id", rec.ID)
	return nil
}

const (
	postgresMarkInbound = `UPDATE reframe_sessions SET rfd_inbound_triggered = TRUE, rfd_inbound_patterns = $1,
		rfd_inbound_severity = $2, updated_at = $3 WHERE id = $4`
	postgresMarkOutbound = `UPDATE reframe_sessions SET rfd_outbound_triggered = TRUE, rfd_outbound_patterns = $1,
		rfd_outbound_severity = $2, updated_at = $3 WHERE id = $4`
)

func (s *PostgresStore) AddDetection(ctx context.Context, rec DetectionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin detection transaction: %w", err)
	}
	defer tx.Rollback()

	patterns := pq.Array(rec.Patterns)
	if _, err := tx.ExecContext(ctx, `INSERT INTO rfd_detections (
		session_id, detection_type, patterns_detected, severity, explanation, suggestion, user_saw_warning, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.SessionID, string(rec.DetectionType), patterns, nilIfEmpty(string(rec.Severity)),
		nilIfEmpty(rec.Explanation), nilIfEmpty(rec.Suggestion), rec.UserSawWarning, rec.CreatedAt.UTC()); err != nil {
		slog.Error("PostgresStore AddDetection insert failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to insert detection for session %s: %w", rec.SessionID, err)
	}

	mark := postgresMarkOutbound
	if rec.DetectionType == models.DirectionInbound {
		mark = postgresMarkInbound
	}
	if _, err := tx.ExecContext(ctx, mark, patterns, nilIfEmpty(string(rec.Severity)), rec.CreatedAt.UTC(), rec.SessionID); err != nil {
		slog.Error("PostgresStore AddDetection session update failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to mark session %s: %w", rec.SessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detection for session %s: %w", rec.SessionID, err)
	}
	slog.Debug("PostgresStore AddDetection succeeded", "session_id", rec.SessionID, "type", rec.DetectionType)
	return nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, out SessionOutcome) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reframe_sessions SET outcome = $1, questions_asked = $2, updated_at = $3 WHERE id = $4`,
		nilIfEmpty(string(out.Outcome)), out.QuestionsAsked, out.UpdatedAt.UTC(), out.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateSession failed", "error", err, "id", out.ID)
		return fmt.Errorf("failed to update session %s: %w", out.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, session_token, relationship_type, had_context, context_length,
		message_length, stage, question_round, health_check_type,
		rfd_inbound_triggered, rfd_inbound_patterns, rfd_inbound_severity,
		rfd_outbound_triggered, rfd_outbound_patterns, rfd_outbound_severity,
		questions_asked, outcome, created_at, updated_at
		FROM reframe_sessions WHERE id = $1`, id)

	var rec SessionRecord
	var token, healthType, inSeverity, outSeverity, outcome sql.NullString
	var relType, stage string
	err := row.Scan(&rec.ID, &token, &relType, &rec.HadContext, &rec.ContextLength,
		&rec.MessageLength, &stage, &rec.QuestionRound, &healthType,
		&rec.InboundTriggered, pq.Array(&rec.InboundPatterns), &inSeverity,
		&rec.OutboundTriggered, pq.Array(&rec.OutboundPatterns), &outSeverity,
		&rec.QuestionsAsked, &outcome, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	rec.SessionToken = token.String
	rec.RelationshipType = models.RelationshipType(relType)
	rec.Stage = models.Stage(stage)
	rec.HealthCheckType = models.HealthCheckType(healthType.String)
	rec.InboundSeverity = models.Severity(inSeverity.String)
	rec.OutboundSeverity = models.Severity(outSeverity.String)
	rec.Outcome = models.Outcome(outcome.String)
	return &rec, nil
}

func (s *PostgresStore) ListDetections(ctx context.Context, sessionID string) ([]DetectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, detection_type, patterns_detected, severity,
		explanation, suggestion, user_saw_warning, created_at
		FROM rfd_detections WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListDetections query failed", "error", err)
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []DetectionRecord
	for rows.Next() {
		var d DetectionRecord
		var detType string
		var severity, explanation, suggestion sql.NullString
		if err := rows.Scan(&d.ID, &d.SessionID, &detType, pq.Array(&d.Patterns), &severity,
			&explanation, &suggestion, &d.UserSawWarning, &d.CreatedAt); err != nil {
			slog.Error("PostgresStore ListDetections scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan detection row: %w", err)
		}
		d.DetectionType = models.Direction(detType)
		d.Severity = models.Severity(severity.String)
		d.Explanation = explanation.String
		d.Suggestion = suggestion.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListDetections rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate detection rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
