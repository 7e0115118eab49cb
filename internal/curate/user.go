package curate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/mindclone/mindclone/internal/database"
	"github.com/mindclone/mindclone/internal/digest"
	"github.com/mindclone/mindclone/internal/profile"
	"github.com/mindclone/mindclone/internal/search"
)

// Per-user outcome statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Skip reasons.
const (
	ReasonNoInterests  = "no_interests"
	ReasonNoArticles   = "no_articles"
	ReasonLowRelevance = "low_relevance"
	ReasonDailyLimit   = "daily_limit"
)

// UserResult is the outcome of curating one user.
type UserResult struct {
	UserID           int64
	Status           string
	Reason           string
	ArticlesSent     int
	AvgScore         float64
	ProcessingMs     int64
	RetriesExhausted bool
	Err              error
}

// RunUser curates one user, retrying failed attempts with exponential
// backoff. Skips are terminal; only errors are retried.
func (c *Curator) RunUser(ctx context.Context, userID int64) UserResult {
	var last UserResult
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			log.Printf("retrying user %d in %s (attempt %d of %d)",
				userID, delay, attempt+1, c.cfg.MaxRetries+1)
			if err := c.sleep(ctx, delay); err != nil {
				return last
			}
		}
		last = c.processUser(ctx, userID)
		if last.Status != StatusError {
			return last
		}
	}
	last.RetriesExhausted = true
	return last
}

// backoffDelay returns the pause before retry attempt n: one second,
// doubling per further attempt.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1000<<(attempt-1)) * time.Millisecond
}

// processUser runs one curation attempt and, on failure, records it on
// the user's config so operators can spot chronically failing users.
func (c *Curator) processUser(ctx context.Context, userID int64) UserResult {
	start := c.now()
	result, err := c.curateUser(ctx, userID)
	result.UserID = userID
	result.ProcessingMs = c.now().Sub(start).Milliseconds()

	if err != nil {
		ts := database.FormatTime(c.now())
		if mergeErr := c.db.MergeCurationConfig(userID, database.CurationPatch{
			LastCheckAt:       &ts,
			IncrementFailures: true,
		}); mergeErr != nil {
			log.Printf("recording failure for user %d: %v", userID, mergeErr)
		}
		result.Status = StatusError
		result.Err = err
		log.Printf("curating user %d failed: %v", userID, err)
	}
	return result
}

// curateUser runs the pipeline for one user: build the interest profile,
// search, score and filter, check the daily quota, deliver, then update
// the seen-set and config. An error return means the attempt failed and
// may be retried; skips come back as ordinary results.
func (c *Curator) curateUser(ctx context.Context, userID int64) (UserResult, error) {
	p, err := c.profiles.Build(userID)
	if err != nil {
		return UserResult{}, fmt.Errorf("building profile: %w", err)
	}
	if p.Empty() {
		return c.skip(userID, ReasonNoInterests)
	}

	articles, err := c.articles.Search(ctx, p)
	if err != nil {
		return UserResult{}, fmt.Errorf("searching articles: %w", err)
	}
	if len(articles) == 0 {
		return c.skip(userID, ReasonNoArticles)
	}

	candidates, err := c.scoreAndFilter(userID, articles, p)
	if err != nil {
		return UserResult{}, err
	}
	if len(candidates) == 0 {
		return c.skip(userID, ReasonLowRelevance)
	}

	cfg, err := c.db.GetCurationConfig(userID)
	if err != nil {
		return UserResult{}, fmt.Errorf("loading curation config: %w", err)
	}

	now := c.now()
	today := database.DateOf(now)
	sentToday := 0
	resetNeeded := cfg == nil || cfg.LastResetDate == nil || *cfg.LastResetDate != today
	if !resetNeeded {
		sentToday = cfg.ArticlesSentToday
	}

	remaining := c.cfg.MaxArticlesPerDay - sentToday
	if remaining <= 0 {
		// Unlike the other skip paths this one leaves last_check_at alone,
		// so the user keeps their place at the front of the next batch once
		// quota frees up.
		return UserResult{Status: StatusSkipped, Reason: ReasonDailyLimit}, nil
	}

	limit := remaining
	if limit > c.cfg.MaxPerRun {
		limit = c.cfg.MaxPerRun
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	content := digest.Format(candidates, p, now)
	if _, err := c.delivery.Deliver(userID, content, now); err != nil {
		return UserResult{}, fmt.Errorf("delivering digest: %w", err)
	}

	for _, a := range candidates {
		if err := c.db.MarkArticleSeen(userID, a.URL, a.Title, now); err != nil {
			return UserResult{}, fmt.Errorf("marking article seen: %w", err)
		}
	}

	sent := len(candidates)
	ts := database.FormatTime(now)
	zero := 0
	patch := database.CurationPatch{
		LastCheckAt:         &ts,
		LastSuccessAt:       &ts,
		ConsecutiveFailures: &zero,
	}
	if resetNeeded {
		// The daily counter restarts on delivery, not on the calendar flip.
		patch.ArticlesSentToday = &sent
		patch.LastResetDate = &today
	} else {
		patch.AddArticlesSentToday = sent
	}
	if err := c.db.MergeCurationConfig(userID, patch); err != nil {
		return UserResult{}, fmt.Errorf("updating curation config: %w", err)
	}

	total := 0
	for _, a := range candidates {
		total += a.Score
	}
	return UserResult{
		Status:       StatusSuccess,
		ArticlesSent: sent,
		AvgScore:     float64(total) / float64(sent),
	}, nil
}

// skip records the check time and returns a skipped result.
func (c *Curator) skip(userID int64, reason string) (UserResult, error) {
	ts := database.FormatTime(c.now())
	if err := c.db.MergeCurationConfig(userID, database.CurationPatch{
		LastCheckAt: &ts,
	}); err != nil {
		return UserResult{}, fmt.Errorf("updating last check: %w", err)
	}
	return UserResult{Status: StatusSkipped, Reason: reason}, nil
}

// scoreAndFilter drops already-delivered and low-scoring articles,
// returning the survivors by descending score. Equal scores keep search
// order, which is newest first.
func (c *Curator) scoreAndFilter(userID int64, articles []search.Article, p profile.Profile) ([]digest.ScoredArticle, error) {
	var scored []digest.ScoredArticle
	for _, a := range articles {
		seen, err := c.db.HasSeenArticle(userID, a.URL)
		if err != nil {
			return nil, fmt.Errorf("checking seen article: %w", err)
		}
		if seen {
			continue
		}
		s := c.score(a, p)
		if s < c.cfg.MinRelevanceScore {
			continue
		}
		scored = append(scored, digest.ScoredArticle{Article: a, Score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

// Preview runs the read-only half of the pipeline for one user and
// renders the digest that would be delivered. Nothing is persisted, so it
// is safe to run repeatedly.
func (c *Curator) Preview(ctx context.Context, userID int64) (string, error) {
	p, err := c.profiles.Build(userID)
	if err != nil {
		return "", fmt.Errorf("building profile: %w", err)
	}
	if p.Empty() {
		return "", errors.New("user has no interests to curate for")
	}

	articles, err := c.articles.Search(ctx, p)
	if err != nil {
		return "", fmt.Errorf("searching articles: %w", err)
	}
	candidates, err := c.scoreAndFilter(userID, articles, p)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", errors.New("no relevant articles found")
	}
	if len(candidates) > c.cfg.MaxPerRun {
		candidates = candidates[:c.cfg.MaxPerRun]
	}
	return digest.Format(candidates, p, c.now()), nil
}
