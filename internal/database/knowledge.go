package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// InsertKnowledgeItem stores a new knowledge item. The caller assigns the
// ID and timestamps are taken from now.
func (db *DB) InsertKnowledgeItem(item *KnowledgeItem, now time.Time) error {
	tagsJSON, err := marshalTags(item.Tags)
	if err != nil {
		return err
	}
	ts := FormatTime(now)
	_, err = db.conn.Exec(
		`INSERT INTO knowledge_items (id, user_id, title, content, source, tags, public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Title, item.Content, item.Source,
		tagsJSON, boolToInt(item.Public), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting knowledge item: %w", err)
	}
	return nil
}

// GetKnowledgeItem returns one of the user's knowledge items, or nil when
// the ID does not exist or belongs to another user.
func (db *DB) GetKnowledgeItem(userID int64, id string) (*KnowledgeItem, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, title, content, source, tags, public, created_at, updated_at
		FROM knowledge_items WHERE user_id = ? AND id = ?`, userID, id,
	)
	item, err := scanKnowledgeItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListKnowledgeItems returns the user's knowledge items matching the
// filter, most recently updated first.
func (db *DB) ListKnowledgeItems(userID int64, filter KnowledgeFilter) ([]KnowledgeItem, error) {
	q := sq.Select("id", "user_id", "title", "content", "source", "tags",
		"public", "created_at", "updated_at").
		From("knowledge_items").
		Where(sq.Eq{"user_id": userID})

	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON string array.
		q = q.Where("tags LIKE ?", `%"`+filter.Tag+`"%`)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where(sq.Or{sq.Like{"title": like}, sq.Like{"content": like}})
	}

	q = q.OrderBy("updated_at DESC", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building knowledge query: %w", err)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []KnowledgeItem
	for rows.Next() {
		var item KnowledgeItem
		var tags sql.NullString
		var public int
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Content,
			&item.Source, &tags, &public, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Public = public != 0
		if tags.Valid {
			item.Tags = unmarshalTags(tags.String)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateKnowledgeItem updates the provided fields of one of the user's
// items; nil fields are left unchanged. Returns false when the item does
// not exist for this user.
func (db *DB) UpdateKnowledgeItem(userID int64, id string, title, content *string, tags []string, public *bool, now time.Time) (bool, error) {
	q := sq.Update("knowledge_items").
		Where(sq.Eq{"user_id": userID, "id": id}).
		Set("updated_at", FormatTime(now))

	if title != nil {
		q = q.Set("title", *title)
	}
	if content != nil {
		q = q.Set("content", *content)
	}
	if tags != nil {
		tagsJSON, err := marshalTags(tags)
		if err != nil {
			return false, err
		}
		q = q.Set("tags", tagsJSON)
	}
	if public != nil {
		q = q.Set("public", boolToInt(*public))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("building knowledge update: %w", err)
	}
	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteKnowledgeItem removes one of the user's items. Returns false when
// nothing was deleted.
func (db *DB) DeleteKnowledgeItem(userID int64, id string) (bool, error) {
	result, err := db.conn.Exec(
		"DELETE FROM knowledge_items WHERE user_id = ? AND id = ?", userID, id,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountKnowledgeItems returns how many knowledge items the user has.
func (db *DB) CountKnowledgeItems(userID int64) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM knowledge_items WHERE user_id = ?", userID,
	).Scan(&count)
	return count, err
}

// ListPublicKnowledgeTitles returns titles of the user's public items,
// most recently updated first. Shown on the public profile page.
func (db *DB) ListPublicKnowledgeTitles(userID int64, limit int) ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT title FROM knowledge_items WHERE user_id = ? AND public = 1
		ORDER BY updated_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func scanKnowledgeItem(row *sql.Row) (*KnowledgeItem, error) {
	var item KnowledgeItem
	var tags sql.NullString
	var public int
	if err := row.Scan(&item.ID, &item.UserID, &item.Title, &item.Content,
		&item.Source, &tags, &public, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Public = public != 0
	if tags.Valid {
		item.Tags = unmarshalTags(tags.String)
	}
	return &item, nil
}

func marshalTags(tags []string) (*string, error) {
	if tags == nil {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshaling tags: %w", err)
	}
	s := string(data)
	return &s, nil
}

func unmarshalTags(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}
