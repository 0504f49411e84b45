package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dajanosw/Event-Manager-Bot/internal/dispatcher"
	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// Store implements dispatcher.Store and the reconciler's store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertCommand records an incoming command for the audit trail.
func (s *Store) InsertCommand(ctx context.Context, cmd domain.Command) error {
	_, err := s.db.ExecContext(ctx, queryInsertCommand,
		cmd.ID,
		cmd.ChannelID,
		cmd.RawText,
		string(cmd.Mode),
		cmd.ReceivedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return dispatcher.ErrDuplicateCommand
		}
		return err
	}
	return nil
}

// InsertCreationAttempt inserts a new creation attempt record.
// Start and end are stored as NULL when the specification never got far
// enough to carry resolved instants.
func (s *Store) InsertCreationAttempt(ctx context.Context, attempt domain.CreationAttempt) error {
	_, err := s.db.ExecContext(ctx, queryInsertCreationAttempt,
		attempt.ID,
		attempt.CommandID,
		attempt.ChannelID,
		attempt.EventName,
		nullTime(attempt.Start),
		nullTime(attempt.End),
		attempt.Timezone,
		string(attempt.RecurrenceKind),
		string(attempt.Status),
		attempt.Attempts,
		attempt.Error,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	return err
}

// UpdateAttemptStatus updates the status of a creation attempt.
// Returns dispatcher.ErrStatusTransitionDenied if the attempt is already in a
// terminal state. This uses an atomic UPDATE with WHERE clause to prevent
// TOCTOU race conditions.
func (s *Store) UpdateAttemptStatus(ctx context.Context, attemptID uuid.UUID, status domain.AttemptStatus, attempts int, errMsg string) error {
	// Single atomic update with guard in WHERE clause.
	// PostgreSQL acquires row lock before evaluating WHERE,
	// ensuring serialized access under concurrency.
	result, err := s.db.ExecContext(ctx, queryUpdateAttemptStatus,
		string(status), attempts, errMsg, time.Now().UTC(), attemptID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Either: (a) attempt not found, or (b) already in terminal state.
		// Distinguish by checking if the row exists.
		var currentStatus string
		err := s.db.QueryRowContext(ctx, queryGetAttemptStatus, attemptID).Scan(&currentStatus)
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if err != nil {
			return err
		}
		// Row exists but wasn't updated => terminal state
		return dispatcher.ErrStatusTransitionDenied
	}

	return nil
}

// GetStalePendingAttempts returns pending attempts older than the cutoff,
// oldest first.
func (s *Store) GetStalePendingAttempts(ctx context.Context, olderThan time.Time, limit int) ([]domain.CreationAttempt, error) {
	rows, err := s.db.QueryContext(ctx, queryGetStalePendingAttempts, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// FailStaleAttempts marks pending attempts older than the cutoff as failed
// and returns how many rows were affected. Rows locked by a concurrent
// dispatcher are skipped.
func (s *Store) FailStaleAttempts(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryFailStaleAttempts, olderThan, limit, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListRecentAttempts returns the most recent creation attempts for a channel.
func (s *Store) ListRecentAttempts(ctx context.Context, channelID string, limit int) ([]domain.CreationAttempt, error) {
	rows, err := s.db.QueryContext(ctx, queryListRecentAttempts, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func scanAttempts(rows *sql.Rows) ([]domain.CreationAttempt, error) {
	var result []domain.CreationAttempt
	for rows.Next() {
		var a domain.CreationAttempt
		var start, end sql.NullTime

		err := rows.Scan(
			&a.ID,
			&a.CommandID,
			&a.ChannelID,
			&a.EventName,
			&start,
			&end,
			&a.Timezone,
			&a.RecurrenceKind,
			&a.Status,
			&a.Attempts,
			&a.Error,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if start.Valid {
			a.Start = start.Time.UTC()
		}
		if end.Valid {
			a.End = end.Time.UTC()
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL unique violation error code is 23505
	errStr := err.Error()
	return strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "duplicate key")
}
