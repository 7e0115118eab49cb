package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

// seedUser creates a user with a token derived from the handle.
func seedUser(t *testing.T, db *DB, handle string) int64 {
	t.Helper()
	id, err := db.CreateUser(handle, ptr(handle), nil, ptr("tok-"+handle))
	if err != nil {
		t.Fatalf("failed to seed user %q: %v", handle, err)
	}
	return id
}

func TestCreateAndGetUser(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateUser("ada", ptr("Ada"), ptr("ada@example.com"), ptr("tok-ada"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero user ID")
	}

	u, err := db.GetUserByHandle("ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil {
		t.Fatal("expected user")
	}
	if u.ID != id {
		t.Errorf("expected id %d, got %d", id, u.ID)
	}
	if u.DisplayName == nil || *u.DisplayName != "Ada" {
		t.Error("expected display name to round-trip")
	}
	if u.Public {
		t.Error("expected public to default to false")
	}
}

func TestCreateUserDuplicateHandle(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "ada")
	if _, err := db.CreateUser("ada", nil, nil, nil); err == nil {
		t.Error("expected error for duplicate handle")
	}
}

func TestGetUserByToken(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	u, err := db.GetUserByToken("tok-ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatal("expected user for valid token")
	}

	u, err = db.GetUserByToken("bogus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unknown token")
	}

	u, err = db.GetUserByToken("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Error("expected nil for empty token")
	}
}

func TestListUsers(t *testing.T) {
	db := openTestDB(t)

	users, err := db.ListUsers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users, got %d", len(users))
	}

	seedUser(t, db, "zoe")
	seedUser(t, db, "ada")

	users, err = db.ListUsers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	// Ordered by handle.
	if users[0].Handle != "ada" || users[1].Handle != "zoe" {
		t.Errorf("expected handle order [ada zoe], got [%s %s]", users[0].Handle, users[1].Handle)
	}
}

func TestTouchUserActivity(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	if err := db.TouchUserActivity(id, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, _ := db.GetUserByID(id)
	if u.LastActiveAt == nil || *u.LastActiveAt != FormatTime(now) {
		t.Errorf("expected last_active_at %q, got %v", FormatTime(now), u.LastActiveAt)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	public := true
	if err := db.UpdateUserProfile(id, nil, ptr("Researcher."), nil, ptr("ai, compilers"), &public); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, _ := db.GetUserByID(id)
	if u.Bio == nil || *u.Bio != "Researcher." {
		t.Error("expected bio to be updated")
	}
	if u.Interests == nil || *u.Interests != "ai, compilers" {
		t.Error("expected interests to be updated")
	}
	if !u.Public {
		t.Error("expected public to be updated")
	}
	// Untouched fields stay.
	if u.DisplayName == nil || *u.DisplayName != "ada" {
		t.Error("expected display name to be unchanged")
	}
}

func TestSetStripeCustomerID(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	if err := db.SetStripeCustomerID(id, "cus_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := db.GetUserByID(id)
	if u.StripeCustomerID == nil || *u.StripeCustomerID != "cus_123" {
		t.Error("expected stripe customer id to be set")
	}
}

func TestSeenArticles(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")
	now := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)

	seen, err := db.HasSeenArticle(id, "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("expected article to be unseen")
	}

	if err := db.MarkArticleSeen(id, "https://example.com/a", "A", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Marking twice is fine.
	if err := db.MarkArticleSeen(id, "https://example.com/a", "A", now); err != nil {
		t.Fatalf("unexpected error on repeat mark: %v", err)
	}

	seen, _ = db.HasSeenArticle(id, "https://example.com/a")
	if !seen {
		t.Error("expected article to be seen after marking")
	}

	count, err := db.CountSeenArticles(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 seen article, got %d", count)
	}

	// Per-user isolation.
	other := seedUser(t, db, "bob")
	seen, _ = db.HasSeenArticle(other, "https://example.com/a")
	if seen {
		t.Error("expected other user's seen-set to be independent")
	}
}

func TestMessages(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")
	now := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)

	db.InsertMessage(id, "user", "chat", "hello", now)
	db.InsertMessage(id, "assistant", "chat", "hi there", now.Add(time.Second))
	db.InsertMessage(id, "assistant", "digest", "## Your digest", now.Add(2*time.Second))

	all, err := db.GetMessages(id, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	// Newest first.
	if all[0].Kind != "digest" {
		t.Errorf("expected newest message first, got kind %q", all[0].Kind)
	}

	digests, _ := db.GetMessages(id, "digest", 0)
	if len(digests) != 1 {
		t.Errorf("expected 1 digest message, got %d", len(digests))
	}

	limited, _ := db.GetMessages(id, "chat", 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
	if limited[0].Content != "hi there" {
		t.Errorf("expected newest chat message, got %q", limited[0].Content)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")
	now := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)
	db.InsertMessage(id, "user", "chat", "hello", now)
	db.MarkArticleSeen(id, "https://example.com/a", "A", now)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Users != 1 {
		t.Errorf("expected 1 user, got %d", stats.Users)
	}
	if stats.Messages != 1 {
		t.Errorf("expected 1 message, got %d", stats.Messages)
	}
	if stats.SeenArticles != 1 {
		t.Errorf("expected 1 seen article, got %d", stats.SeenArticles)
	}
	if stats.LastRun != nil {
		t.Error("expected no last run on fresh db")
	}
}
