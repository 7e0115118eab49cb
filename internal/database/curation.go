package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// GetCurationConfig returns the user's curation config, or nil when no row
// exists yet (callers treat that as all defaults).
func (db *DB) GetCurationConfig(userID int64) (*CurationConfig, error) {
	row := db.conn.QueryRow(
		`SELECT user_id, enabled, last_check_at, last_success_at,
		consecutive_failures, articles_sent_today, last_reset_date
		FROM curation_configs WHERE user_id = ?`, userID,
	)
	var c CurationConfig
	var enabled int
	err := row.Scan(&c.UserID, &enabled, &c.LastCheckAt, &c.LastSuccessAt,
		&c.ConsecutiveFailures, &c.ArticlesSentToday, &c.LastResetDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Enabled = enabled != 0
	return &c, nil
}

// MergeCurationConfig applies a partial update to the user's curation
// config, creating the row with defaults first if absent. Only fields
// present in the patch are written; the row is never fully overwritten.
func (db *DB) MergeCurationConfig(userID int64, patch CurationPatch) error {
	if _, err := db.conn.Exec(
		"INSERT OR IGNORE INTO curation_configs (user_id) VALUES (?)", userID,
	); err != nil {
		return fmt.Errorf("ensuring curation config row: %w", err)
	}

	q := sq.Update("curation_configs").Where(sq.Eq{"user_id": userID})
	touched := false

	if patch.Enabled != nil {
		q = q.Set("enabled", boolToInt(*patch.Enabled))
		touched = true
	}
	if patch.LastCheckAt != nil {
		q = q.Set("last_check_at", *patch.LastCheckAt)
		touched = true
	}
	if patch.LastSuccessAt != nil {
		q = q.Set("last_success_at", *patch.LastSuccessAt)
		touched = true
	}
	switch {
	case patch.ConsecutiveFailures != nil:
		q = q.Set("consecutive_failures", *patch.ConsecutiveFailures)
		touched = true
	case patch.IncrementFailures:
		q = q.Set("consecutive_failures", sq.Expr("consecutive_failures + 1"))
		touched = true
	}
	switch {
	case patch.ArticlesSentToday != nil:
		q = q.Set("articles_sent_today", *patch.ArticlesSentToday)
		touched = true
	case patch.AddArticlesSentToday != 0:
		q = q.Set("articles_sent_today", sq.Expr("articles_sent_today + ?", patch.AddArticlesSentToday))
		touched = true
	}
	if patch.LastResetDate != nil {
		q = q.Set("last_reset_date", *patch.LastResetDate)
		touched = true
	}

	if !touched {
		return nil
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building config update: %w", err)
	}
	if _, err := db.conn.Exec(query, args...); err != nil {
		return fmt.Errorf("merging curation config: %w", err)
	}
	return nil
}

// GetEligibleUsers returns every user active since the cutoff, joined to
// their curation config. Users without a config row come back with the
// defaults (enabled, zero counters). Read-only; enablement and quota
// filtering happen in the orchestrator.
func (db *DB) GetEligibleUsers(activeSince time.Time) ([]EligibleUser, error) {
	query, args, err := sq.Select(
		"u.id", "u.last_active_at",
		"c.enabled", "c.last_check_at", "c.articles_sent_today",
		"c.last_reset_date", "c.consecutive_failures").
		From("users u").
		LeftJoin("curation_configs c ON c.user_id = u.id").
		Where(sq.GtOrEq{"u.last_active_at": FormatTime(activeSince)}).
		OrderBy("u.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building eligibility query: %w", err)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []EligibleUser
	for rows.Next() {
		var e EligibleUser
		var enabled, sent, failures sql.NullInt64
		if err := rows.Scan(&e.UserID, &e.LastActiveAt, &enabled, &e.LastCheckAt,
			&sent, &e.LastResetDate, &failures); err != nil {
			return nil, err
		}
		// Absent config row means enabled by default.
		e.Enabled = !enabled.Valid || enabled.Int64 != 0
		e.ArticlesSentToday = int(sent.Int64)
		e.ConsecutiveFailures = int(failures.Int64)
		users = append(users, e)
	}
	return users, rows.Err()
}
