package database

import "time"

// HasSeenArticle reports whether the article URL was already delivered to
// the user.
func (db *DB) HasSeenArticle(userID int64, url string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM seen_articles WHERE user_id = ? AND url = ?",
		userID, url,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkArticleSeen records a delivered article in the user's seen-set.
// Idempotent; the seen-set is append-only and has no removal.
func (db *DB) MarkArticleSeen(userID int64, url, title string, now time.Time) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO seen_articles (user_id, url, title, seen_at)
		VALUES (?, ?, ?, ?)`,
		userID, url, title, FormatTime(now),
	)
	return err
}

// CountSeenArticles returns the size of the user's seen-set.
func (db *DB) CountSeenArticles(userID int64) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM seen_articles WHERE user_id = ?", userID,
	).Scan(&count)
	return count, err
}
