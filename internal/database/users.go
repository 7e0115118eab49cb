package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateUser inserts a new user. Returns the ID, or an error on duplicate
// handle or token.
func (db *DB) CreateUser(handle string, displayName, email, apiToken *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO users (handle, display_name, email, api_token) VALUES (?, ?, ?, ?)`,
		handle, displayName, email, apiToken,
	)
	if err != nil {
		return 0, fmt.Errorf("creating user %q: %w", handle, err)
	}
	return result.LastInsertId()
}

// GetUserByToken looks up a user by API token. Returns nil when no user
// carries the token.
func (db *DB) GetUserByToken(token string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	return db.getUser("api_token = ?", token)
}

// GetUserByHandle returns the user with the given handle, or nil.
func (db *DB) GetUserByHandle(handle string) (*User, error) {
	return db.getUser("handle = ?", handle)
}

// GetUserByID returns the user with the given ID, or nil.
func (db *DB) GetUserByID(userID int64) (*User, error) {
	return db.getUser("id = ?", userID)
}

// TouchUserActivity records that the user was seen now. The activity
// timestamp feeds batch selection, which drops users inactive for too long.
func (db *DB) TouchUserActivity(userID int64, now time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE users SET last_active_at = ? WHERE id = ?",
		FormatTime(now), userID,
	)
	return err
}

// SetStripeCustomerID binds a Stripe customer to the user.
func (db *DB) SetStripeCustomerID(userID int64, customerID string) error {
	_, err := db.conn.Exec(
		"UPDATE users SET stripe_customer_id = ? WHERE id = ?",
		customerID, userID,
	)
	return err
}

// UpdateUserProfile updates the provided profile fields; nil fields are
// left unchanged.
func (db *DB) UpdateUserProfile(userID int64, displayName, bio, persona, interests *string, public *bool) error {
	var updates []string
	var args []any

	if displayName != nil {
		updates = append(updates, "display_name = ?")
		args = append(args, *displayName)
	}
	if bio != nil {
		updates = append(updates, "bio = ?")
		args = append(args, *bio)
	}
	if persona != nil {
		updates = append(updates, "persona = ?")
		args = append(args, *persona)
	}
	if interests != nil {
		updates = append(updates, "interests = ?")
		args = append(args, *interests)
	}
	if public != nil {
		updates = append(updates, "public = ?")
		args = append(args, boolToInt(*public))
	}
	if len(updates) == 0 {
		return nil
	}

	args = append(args, userID)
	_, err := db.conn.Exec(
		"UPDATE users SET "+strings.Join(updates, ", ")+" WHERE id = ?", args...,
	)
	return err
}

// ListUsers returns all users ordered by handle.
func (db *DB) ListUsers() ([]User, error) {
	rows, err := db.conn.Query(
		`SELECT id, handle, display_name, email, api_token, stripe_customer_id,
		persona, interests, bio, public, last_active_at, created_at
		FROM users ORDER BY handle`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var public int
		if err := rows.Scan(&u.ID, &u.Handle, &u.DisplayName, &u.Email, &u.APIToken,
			&u.StripeCustomerID, &u.Persona, &u.Interests, &u.Bio, &public,
			&u.LastActiveAt, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Public = public != 0
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) getUser(where string, arg any) (*User, error) {
	row := db.conn.QueryRow(
		`SELECT id, handle, display_name, email, api_token, stripe_customer_id,
		persona, interests, bio, public, last_active_at, created_at
		FROM users WHERE `+where, arg,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var public int
	if err := row.Scan(&u.ID, &u.Handle, &u.DisplayName, &u.Email, &u.APIToken,
		&u.StripeCustomerID, &u.Persona, &u.Interests, &u.Bio, &public,
		&u.LastActiveAt, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Public = public != 0
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
