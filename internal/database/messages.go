package database

import (
	"database/sql"
	"time"
)

// InsertMessage appends a message to the user's timeline.
func (db *DB) InsertMessage(userID int64, role, kind, content string, now time.Time) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO messages (user_id, role, kind, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, role, kind, content, FormatTime(now),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetMessages returns the user's most recent messages, newest first.
// An empty kind matches all kinds.
func (db *DB) GetMessages(userID int64, kind string, limit int) ([]Message, error) {
	query := `SELECT id, user_id, role, kind, content, created_at
		FROM messages WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Kind, &m.Content,
			&m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
