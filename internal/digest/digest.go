// Package digest renders a scored article selection as a markdown
// briefing and delivers it into the user's assistant timeline.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/mindclone/mindclone/internal/database"
	"github.com/mindclone/mindclone/internal/profile"
	"github.com/mindclone/mindclone/internal/search"
)

// ScoredArticle pairs a candidate article with its relevance score.
type ScoredArticle struct {
	search.Article
	Score int
}

// Format renders the digest as markdown: a dated heading, the interests
// that drove the selection, then one bullet per article.
func Format(articles []ScoredArticle, p profile.Profile, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Your news digest for %s\n\n", now.UTC().Format("January 2, 2006"))
	if terms := p.Terms(); len(terms) > 0 {
		fmt.Fprintf(&b, "Curated around: %s.\n\n", strings.Join(terms, ", "))
	}

	for _, a := range articles {
		fmt.Fprintf(&b, "- **[%s](%s)** (%s)\n", a.Title, a.URL, articleMeta(a))
		if a.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", a.Summary)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// articleMeta renders the parenthetical after a headline: source, publish
// date when known, and the relevance score as a match percentage.
func articleMeta(a ScoredArticle) string {
	var parts []string
	if a.Source != "" {
		parts = append(parts, a.Source)
	}
	if !a.PublishedAt.IsZero() {
		parts = append(parts, a.PublishedAt.UTC().Format("Jan 2"))
	}
	parts = append(parts, fmt.Sprintf("%d%% match", a.Score))
	return strings.Join(parts, ", ")
}

// Deliverer writes digests into the message timeline.
type Deliverer struct {
	db *database.DB
}

// NewDeliverer creates a digest deliverer.
func NewDeliverer(db *database.DB) *Deliverer {
	return &Deliverer{db: db}
}

// Deliver stores the digest as an assistant message of kind "digest" and
// returns the new message ID.
func (d *Deliverer) Deliver(userID int64, content string, now time.Time) (int64, error) {
	id, err := d.db.InsertMessage(userID, "assistant", "digest", content, now)
	if err != nil {
		return 0, fmt.Errorf("storing digest: %w", err)
	}
	return id, nil
}
