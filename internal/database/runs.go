package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertCurationRun appends the statistics record for one batch run.
func (db *DB) InsertCurationRun(rec *RunRecord) (int64, error) {
	errorsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return 0, fmt.Errorf("marshaling run errors: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO curation_runs (started_at, status, users_selected,
		users_succeeded, users_skipped, users_errored, articles_sent,
		avg_relevance, duration_ms, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt, rec.Status, rec.UsersSelected, rec.UsersSucceeded,
		rec.UsersSkipped, rec.UsersErrored, rec.ArticlesSent,
		rec.AvgRelevance, rec.DurationMs, string(errorsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting curation run: %w", err)
	}
	return result.LastInsertId()
}

// GetLatestCurationRun returns the most recent run record, or nil when no
// run has happened yet.
func (db *DB) GetLatestCurationRun() (*RunRecord, error) {
	runs, err := db.queryRuns(
		`SELECT id, started_at, status, users_selected, users_succeeded,
		users_skipped, users_errored, articles_sent, avg_relevance,
		duration_ms, errors
		FROM curation_runs ORDER BY id DESC LIMIT 1`,
	)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListCurationRuns returns recent run records, newest first.
func (db *DB) ListCurationRuns(limit int) ([]RunRecord, error) {
	return db.queryRuns(
		`SELECT id, started_at, status, users_selected, users_succeeded,
		users_skipped, users_errored, articles_sent, avg_relevance,
		duration_ms, errors
		FROM curation_runs ORDER BY id DESC LIMIT ?`, limit,
	)
}

func (db *DB) queryRuns(query string, args ...any) ([]RunRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var errorsJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Status, &r.UsersSelected,
			&r.UsersSucceeded, &r.UsersSkipped, &r.UsersErrored, &r.ArticlesSent,
			&r.AvgRelevance, &r.DurationMs, &errorsJSON); err != nil {
			return nil, err
		}
		if errorsJSON.Valid && errorsJSON.String != "" {
			if err := json.Unmarshal([]byte(errorsJSON.String), &r.Errors); err != nil {
				return nil, fmt.Errorf("unmarshaling run errors: %w", err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
