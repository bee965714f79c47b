package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const summaryColumns = "id, episode_id, level, language, status, content_json, model, error_message, correlation_id, created_at, updated_at, last_heartbeat"

func scanSummary(scanner interface{ Scan(dest ...any) error }) (*Summary, error) {
	var (
		id            int64
		episodeID     string
		levelStr      string
		language      string
		statusStr     string
		contentJSON   sql.NullString
		model         sql.NullString
		errorMessage  sql.NullString
		correlationID sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		heartbeatRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&levelStr,
		&language,
		&statusStr,
		&contentJSON,
		&model,
		&errorMessage,
		&correlationID,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("unknown summary status %q", statusStr)
	}
	level, ok := ParseLevel(levelStr)
	if !ok {
		return nil, fmt.Errorf("unknown summary level %q", levelStr)
	}

	return &Summary{
		ID:            id,
		EpisodeID:     episodeID,
		Level:         level,
		Language:      language,
		Status:        status,
		ContentJSON:   contentJSON.String,
		Model:         model.String,
		ErrorMessage:  errorMessage.String,
		CorrelationID: correlationID.String,
		CreatedAt:     parseTimestamp(createdRaw),
		UpdatedAt:     parseTimestamp(updatedRaw),
		LastHeartbeat: parseTimestamp(heartbeatRaw),
	}, nil
}

// GetSummary fetches the summary row for one episode, level, and language.
// Returns nil when no row exists.
func (s *Store) GetSummary(ctx context.Context, episodeID string, level Level, language string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE episode_id = ? AND level = ? AND language = ?`,
		episodeID, level, language,
	)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return summary, nil
}

// GetSummaryByID fetches a summary row by identifier. Returns nil when absent.
func (s *Store) GetSummaryByID(ctx context.Context, id int64) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE id = ?`, id,
	)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary by id: %w", err)
	}
	return summary, nil
}

// ClaimSummary transitions the (episode, level, language) slot into queued for
// a new run. The transition only succeeds from not_ready or failed, or by
// inserting a fresh row; a concurrent claimer loses the race and gets the
// current row back with claimed false.
func (s *Store) ClaimSummary(ctx context.Context, episodeID string, level Level, language, correlationID string) (*Summary, bool, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)

	res, err := s.execWithRetry(ctx,
		`UPDATE summaries
            SET status = ?, correlation_id = ?, error_message = NULL, updated_at = ?, last_heartbeat = ?
          WHERE episode_id = ? AND level = ? AND language = ? AND status IN (?, ?)`,
		StatusQueued, nullableString(correlationID), now, now,
		episodeID, level, language, StatusNotReady, StatusFailed,
	)
	if err != nil {
		return nil, false, fmt.Errorf("claim summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("claim summary rows: %w", err)
	}
	if affected == 0 {
		res, err = s.execWithRetry(ctx,
			`INSERT OR IGNORE INTO summaries (
                episode_id, level, language, status, correlation_id, created_at, updated_at, last_heartbeat
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			episodeID, level, language, StatusQueued, nullableString(correlationID), now, now, now,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert summary: %w", err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return nil, false, fmt.Errorf("insert summary rows: %w", err)
		}
	}

	summary, err := s.GetSummary(ctx, episodeID, level, language)
	if err != nil {
		return nil, false, err
	}
	if summary == nil {
		return nil, false, fmt.Errorf("summary row missing after claim for episode %s", episodeID)
	}
	return summary, affected > 0, nil
}

// TransitionSummary moves a summary between statuses. The update only applies
// when the row is currently in the expected status; the returned bool reports
// whether the transition happened.
func (s *Store) TransitionSummary(ctx context.Context, id int64, from, to Status) (bool, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)
	res, err := s.execWithRetry(ctx,
		`UPDATE summaries SET status = ?, updated_at = ?, last_heartbeat = ? WHERE id = ? AND status = ?`,
		to, now, now, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition summary rows: %w", err)
	}
	return affected > 0, nil
}

// MarkSummaryReady persists the finished content and moves the row to ready.
func (s *Store) MarkSummaryReady(ctx context.Context, id int64, contentJSON, model string) error {
	now := time.Now().UTC().Format(sqlTimeLayout)
	res, err := s.execWithRetry(ctx,
		`UPDATE summaries
            SET status = ?, content_json = ?, model = ?, error_message = NULL, updated_at = ?, last_heartbeat = ?
          WHERE id = ? AND status IN (?, ?, ?)`,
		StatusReady, contentJSON, nullableString(model), now, now,
		id, StatusQueued, StatusTranscribing, StatusSummarizing,
	)
	if err != nil {
		return fmt.Errorf("mark summary ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark summary ready rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("summary %d is not in flight", id)
	}
	return nil
}

// MarkSummaryFailed records the failure and moves the row to failed. Like
// MarkSummaryReady it only applies while the row is in flight, so a stale run
// reporting its failure after the slot was reclaimed and finished by another
// run cannot regress a ready row. The returned bool reports whether the row
// was updated.
func (s *Store) MarkSummaryFailed(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)
	res, err := s.execWithRetry(ctx,
		`UPDATE summaries SET status = ?, error_message = ?, updated_at = ?
          WHERE id = ? AND status IN (?, ?, ?)`,
		StatusFailed, nullableString(message), now,
		id, StatusQueued, StatusTranscribing, StatusSummarizing,
	)
	if err != nil {
		return false, fmt.Errorf("mark summary failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark summary failed rows: %w", err)
	}
	return affected > 0, nil
}

// Heartbeat refreshes the liveness timestamp of an in-flight run.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(sqlTimeLayout)
	return s.execWithoutResultRetry(ctx,
		`UPDATE summaries SET last_heartbeat = ? WHERE id = ?`,
		now, id,
	)
}

// ListSummaries returns summary rows, optionally filtered by status, newest first.
func (s *Store) ListSummaries(ctx context.Context, filter Status) ([]*Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries`
	args := []any{}
	if filter != "" {
		query += ` WHERE status = ?`
		args = append(args, filter)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// ReclaimStale fails in-flight rows whose heartbeat is older than the cutoff.
// Returns the number of reclaimed rows.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(sqlTimeLayout)
	res, err := s.execWithRetry(ctx,
		`UPDATE summaries
            SET status = ?, error_message = ?, updated_at = ?
          WHERE status IN (?, ?, ?)
            AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusFailed, "run abandoned: heartbeat timed out", now,
		StatusQueued, StatusTranscribing, StatusSummarizing,
		cutoff.UTC().Format(sqlTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale summaries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim stale rows: %w", err)
	}
	return affected, nil
}
