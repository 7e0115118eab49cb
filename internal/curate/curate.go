// Package curate orchestrates the hourly news-curation pipeline: pick the
// users most overdue for a check, find and score articles for each, and
// deliver a digest into their timeline, all within per-day and per-run
// caps. Users are processed strictly one at a time, so no curation state
// is ever written concurrently.
package curate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/mindclone/mindclone/internal/config"
	"github.com/mindclone/mindclone/internal/database"
	"github.com/mindclone/mindclone/internal/digest"
	"github.com/mindclone/mindclone/internal/profile"
	"github.com/mindclone/mindclone/internal/relevance"
	"github.com/mindclone/mindclone/internal/search"
)

// Batch run statuses.
const (
	RunSuccess = "success"
	RunPartial = "partial"
	RunFailed  = "failed"
)

// maxRunErrors bounds the error list persisted with a run record.
const maxRunErrors = 10

// ProfileSource builds a user's interest profile.
type ProfileSource interface {
	Build(userID int64) (profile.Profile, error)
}

// ArticleSource finds candidate articles for a profile.
type ArticleSource interface {
	Search(ctx context.Context, p profile.Profile) ([]search.Article, error)
}

// DigestSink stores a rendered digest for a user.
type DigestSink interface {
	Deliver(userID int64, content string, now time.Time) (int64, error)
}

// Curator runs the curation pipeline against the store.
type Curator struct {
	db       *database.DB
	profiles ProfileSource
	articles ArticleSource
	delivery DigestSink
	score    func(search.Article, profile.Profile) int
	cfg      config.Curation

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a curator against the store and article sources.
func New(db *database.DB, sources *search.Searcher, cfg config.Curation) *Curator {
	return &Curator{
		db:       db,
		profiles: profile.NewBuilder(db),
		articles: sources,
		delivery: digest.NewDeliverer(db),
		score:    relevance.Score,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectBatch picks the users due for curation, most starved first: active
// within the window, curation enabled, daily quota not exhausted.
// Never-checked users sort ahead of everyone else. Read-only; nothing is
// claimed or locked by selection.
func (c *Curator) SelectBatch(now time.Time) ([]database.EligibleUser, error) {
	cutoff := now.Add(-time.Duration(c.cfg.ActiveWindowDays) * 24 * time.Hour)
	users, err := c.db.GetEligibleUsers(cutoff)
	if err != nil {
		return nil, fmt.Errorf("selecting eligible users: %w", err)
	}

	today := database.DateOf(now)
	var due []database.EligibleUser
	for _, u := range users {
		if !u.Enabled {
			continue
		}
		// A counter last reset on an earlier date is stale and restarts on
		// the next delivery, so only a quota filled today excludes.
		if u.LastResetDate != nil && *u.LastResetDate == today &&
			u.ArticlesSentToday >= c.cfg.MaxArticlesPerDay {
			continue
		}
		due = append(due, u)
	}

	sort.SliceStable(due, func(i, j int) bool {
		return lessByLastCheck(due[i], due[j])
	})

	if len(due) > c.cfg.BatchSize {
		due = due[:c.cfg.BatchSize]
	}
	return due, nil
}

// lessByLastCheck orders never-checked users first, then oldest check
// first, with user ID as the tiebreaker.
func lessByLastCheck(a, b database.EligibleUser) bool {
	switch {
	case a.LastCheckAt == nil && b.LastCheckAt == nil:
		return a.UserID < b.UserID
	case a.LastCheckAt == nil:
		return true
	case b.LastCheckAt == nil:
		return false
	case *a.LastCheckAt != *b.LastCheckAt:
		return *a.LastCheckAt < *b.LastCheckAt
	default:
		return a.UserID < b.UserID
	}
}

// RunBatch selects one batch of users and curates them sequentially,
// recording aggregate statistics for the run. One user failing never
// stops the others.
func (c *Curator) RunBatch(ctx context.Context) (*database.RunRecord, error) {
	started := c.now()
	rec := &database.RunRecord{
		StartedAt: database.FormatTime(started),
		Status:    RunSuccess,
	}

	batch, err := c.SelectBatch(started)
	if err != nil {
		rec.Status = RunFailed
		rec.Errors = []database.RunError{{Error: err.Error(), At: database.FormatTime(c.now())}}
		rec.DurationMs = c.now().Sub(started).Milliseconds()
		if _, insErr := c.db.InsertCurationRun(rec); insErr != nil {
			log.Printf("recording failed run: %v", insErr)
		}
		return rec, err
	}
	rec.UsersSelected = len(batch)

	var weightedScore float64
	for _, u := range batch {
		result := c.RunUser(ctx, u.UserID)
		switch result.Status {
		case StatusSuccess:
			rec.UsersSucceeded++
			rec.ArticlesSent += result.ArticlesSent
			weightedScore += result.AvgScore * float64(result.ArticlesSent)
		case StatusSkipped:
			rec.UsersSkipped++
		case StatusError:
			rec.UsersErrored++
			if len(rec.Errors) < maxRunErrors {
				rec.Errors = append(rec.Errors, database.RunError{
					UserID: u.UserID,
					Error:  result.Err.Error(),
					At:     database.FormatTime(c.now()),
				})
			}
		}
	}

	if rec.ArticlesSent > 0 {
		rec.AvgRelevance = weightedScore / float64(rec.ArticlesSent)
	}
	rec.Status = runStatus(rec.UsersSucceeded, rec.UsersErrored)
	rec.DurationMs = c.now().Sub(started).Milliseconds()

	if _, err := c.db.InsertCurationRun(rec); err != nil {
		return rec, fmt.Errorf("recording curation run: %w", err)
	}

	log.Printf("curation run %s: %d selected, %d succeeded, %d skipped, %d errored, %d articles sent",
		rec.Status, rec.UsersSelected, rec.UsersSucceeded, rec.UsersSkipped,
		rec.UsersErrored, rec.ArticlesSent)
	return rec, nil
}

// runStatus derives the batch status: any run without errors counts as a
// success, errors alongside at least one delivery make it partial, and
// errors with no deliveries at all mean the run failed.
func runStatus(succeeded, errored int) string {
	switch {
	case errored == 0:
		return RunSuccess
	case succeeded > 0:
		return RunPartial
	default:
		return RunFailed
	}
}
