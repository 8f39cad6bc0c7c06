package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"virtual-patient/pkg"
)

// ErrAttemptNotFound is returned when an attempt ID is unknown.
var ErrAttemptNotFound = errors.New("attempt not found")

// Repository stores scored case attempts and their transcripts.  Queries
// are written with '?' placeholders and rebound for the Postgres driver.
type Repository struct {
	DB     *sql.DB
	driver string
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{DB: db, driver: driver}
}

// SaveAttempt inserts an attempt and its transcript in one transaction.
func (r *Repository) SaveAttempt(ctx context.Context, a *pkg.Attempt) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.rebind(
		`INSERT INTO attempts (id, session_id, specialty, case_number, presenting_complaint,
             diagnosis, guess, similarity, correct, score, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.SessionID, a.Specialty, a.CaseNumber, a.PresentingComplaint,
		a.Diagnosis, a.Guess, a.Similarity, a.Correct, a.Score, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	insertMsg := r.rebind(`INSERT INTO attempt_messages (attempt_id, seq, role, content) VALUES (?, ?, ?, ?)`)
	for i, m := range a.Transcript {
		if _, err := tx.ExecContext(ctx, insertMsg, a.ID, i, string(m.Role), m.Content); err != nil {
			return fmt.Errorf("insert attempt message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListAttempts returns the attempts of a session, oldest first.
// Transcripts are not loaded.
func (r *Repository) ListAttempts(ctx context.Context, sessionID string) ([]pkg.Attempt, error) {
	rows, err := r.DB.QueryContext(ctx, r.rebind(
		`SELECT id, session_id, specialty, case_number, presenting_complaint,
             diagnosis, guess, similarity, correct, score, created_at
         FROM attempts
         WHERE session_id = ?
         ORDER BY created_at ASC`), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []pkg.Attempt
	for rows.Next() {
		var a pkg.Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Specialty, &a.CaseNumber, &a.PresentingComplaint,
			&a.Diagnosis, &a.Guess, &a.Similarity, &a.Correct, &a.Score, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetTranscript returns the conversation recorded with an attempt, in
// order.
func (r *Repository) GetTranscript(ctx context.Context, attemptID string) ([]pkg.Message, error) {
	var exists int
	err := r.DB.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM attempts WHERE id = ?`), attemptID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, r.rebind(
		`SELECT role, content FROM attempt_messages WHERE attempt_id = ? ORDER BY seq ASC`), attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcript []pkg.Message
	for rows.Next() {
		var m pkg.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		transcript = append(transcript, m)
	}
	return transcript, rows.Err()
}

// rebind rewrites '?' placeholders to $1, $2, ... for Postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
