package database

import (
	"testing"
	"time"
)

func TestGetCurationConfigAbsent(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	cfg, err := db.GetCurationConfig(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Error("expected nil config before any merge")
	}
}

func TestMergeCurationConfigCreatesRow(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	check := FormatTime(time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC))
	if err := db.MergeCurationConfig(id, CurationPatch{LastCheckAt: &check}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := db.GetCurationConfig(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config row after merge")
	}
	if !cfg.Enabled {
		t.Error("expected enabled default true")
	}
	if cfg.LastCheckAt == nil || *cfg.LastCheckAt != check {
		t.Errorf("expected last_check_at %q, got %v", check, cfg.LastCheckAt)
	}
	if cfg.ArticlesSentToday != 0 {
		t.Errorf("expected zero counter, got %d", cfg.ArticlesSentToday)
	}
}

func TestMergeCurationConfigPartial(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	sent := 4
	reset := "2026-02-06"
	if err := db.MergeCurationConfig(id, CurationPatch{
		ArticlesSentToday: &sent,
		LastResetDate:     &reset,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A later merge touching only last_success_at must not clobber counters.
	success := FormatTime(time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC))
	if err := db.MergeCurationConfig(id, CurationPatch{LastSuccessAt: &success}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, _ := db.GetCurationConfig(id)
	if cfg.ArticlesSentToday != 4 {
		t.Errorf("expected counter 4 to survive, got %d", cfg.ArticlesSentToday)
	}
	if cfg.LastResetDate == nil || *cfg.LastResetDate != "2026-02-06" {
		t.Error("expected last_reset_date to survive")
	}
	if cfg.LastSuccessAt == nil || *cfg.LastSuccessAt != success {
		t.Error("expected last_success_at to be set")
	}
}

func TestMergeCurationConfigCounterIncrement(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	db.MergeCurationConfig(id, CurationPatch{AddArticlesSentToday: 3})
	db.MergeCurationConfig(id, CurationPatch{AddArticlesSentToday: 2})

	cfg, _ := db.GetCurationConfig(id)
	if cfg.ArticlesSentToday != 5 {
		t.Errorf("expected counter 5, got %d", cfg.ArticlesSentToday)
	}

	// Absolute set wins over increment.
	zero := 0
	db.MergeCurationConfig(id, CurationPatch{ArticlesSentToday: &zero, AddArticlesSentToday: 7})
	cfg, _ = db.GetCurationConfig(id)
	if cfg.ArticlesSentToday != 0 {
		t.Errorf("expected absolute set to 0, got %d", cfg.ArticlesSentToday)
	}
}

func TestMergeCurationConfigFailureCounter(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	db.MergeCurationConfig(id, CurationPatch{IncrementFailures: true})
	db.MergeCurationConfig(id, CurationPatch{IncrementFailures: true})

	cfg, _ := db.GetCurationConfig(id)
	if cfg.ConsecutiveFailures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", cfg.ConsecutiveFailures)
	}

	zero := 0
	db.MergeCurationConfig(id, CurationPatch{ConsecutiveFailures: &zero})
	cfg, _ = db.GetCurationConfig(id)
	if cfg.ConsecutiveFailures != 0 {
		t.Errorf("expected failures reset to 0, got %d", cfg.ConsecutiveFailures)
	}
}

func TestMergeCurationConfigDisable(t *testing.T) {
	db := openTestDB(t)
	id := seedUser(t, db, "ada")

	disabled := false
	db.MergeCurationConfig(id, CurationPatch{Enabled: &disabled})

	cfg, _ := db.GetCurationConfig(id)
	if cfg.Enabled {
		t.Error("expected enabled false after disable")
	}
}

func TestGetEligibleUsers(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	active := seedUser(t, db, "active")
	db.TouchUserActivity(active, now.Add(-24*time.Hour))

	stale := seedUser(t, db, "stale")
	db.TouchUserActivity(stale, now.Add(-10*24*time.Hour))

	// Never active at all.
	seedUser(t, db, "ghost")

	users, err := db.GetEligibleUsers(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 eligible user, got %d", len(users))
	}
	if users[0].UserID != active {
		t.Errorf("expected user %d, got %d", active, users[0].UserID)
	}
	// No config row yet: defaults apply.
	if !users[0].Enabled {
		t.Error("expected enabled default for user without config")
	}
	if users[0].LastCheckAt != nil {
		t.Error("expected nil last_check_at for user without config")
	}
}

func TestGetEligibleUsersJoinsConfig(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	id := seedUser(t, db, "ada")
	db.TouchUserActivity(id, now)

	disabled := false
	sent := 7
	reset := "2026-02-06"
	check := FormatTime(now.Add(-2 * time.Hour))
	db.MergeCurationConfig(id, CurationPatch{
		Enabled:           &disabled,
		ArticlesSentToday: &sent,
		LastResetDate:     &reset,
		LastCheckAt:       &check,
	})

	users, err := db.GetEligibleUsers(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	e := users[0]
	if e.Enabled {
		t.Error("expected enabled false from config")
	}
	if e.ArticlesSentToday != 7 {
		t.Errorf("expected counter 7, got %d", e.ArticlesSentToday)
	}
	if e.LastResetDate == nil || *e.LastResetDate != "2026-02-06" {
		t.Error("expected last_reset_date from config")
	}
	if e.LastCheckAt == nil || *e.LastCheckAt != check {
		t.Error("expected last_check_at from config")
	}
}

func TestCurationRunRoundTrip(t *testing.T) {
	db := openTestDB(t)

	rec := &RunRecord{
		StartedAt:      FormatTime(time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)),
		Status:         "partial",
		UsersSelected:  5,
		UsersSucceeded: 3,
		UsersSkipped:   1,
		UsersErrored:   1,
		ArticlesSent:   9,
		AvgRelevance:   74.5,
		DurationMs:     1234,
		Errors: []RunError{
			{UserID: 42, Error: "searching articles: boom", At: "2026-02-06T12:00:05Z"},
		},
	}
	id, err := db.InsertCurationRun(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero run ID")
	}

	latest, err := db.GetLatestCurationRun()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil {
		t.Fatal("expected latest run")
	}
	if latest.Status != "partial" {
		t.Errorf("expected status partial, got %q", latest.Status)
	}
	if latest.ArticlesSent != 9 {
		t.Errorf("expected 9 articles sent, got %d", latest.ArticlesSent)
	}
	if len(latest.Errors) != 1 || latest.Errors[0].UserID != 42 {
		t.Errorf("expected recorded error for user 42, got %+v", latest.Errors)
	}

	db.InsertCurationRun(&RunRecord{StartedAt: FormatTime(time.Now()), Status: "success"})
	runs, err := db.ListCurationRuns(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Status != "success" {
		t.Error("expected newest run first")
	}
}
