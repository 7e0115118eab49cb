package search

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mindclone/mindclone/internal/config"
)

const (
	// maxPerFeed caps how many matching entries one feed can contribute.
	maxPerFeed = 20
	// maxSummaryRunes caps feed summaries after HTML stripping.
	maxSummaryRunes = 500
)

// FeedFetcher pulls candidate articles from configured RSS/Atom feeds.
type FeedFetcher struct {
	feeds    []config.Feed
	lookback time.Duration
	parser   *gofeed.Parser
}

// NewFeedFetcher creates a fetcher for the given feeds.
func NewFeedFetcher(feeds []config.Feed, lookbackHours int) *FeedFetcher {
	return &FeedFetcher{
		feeds:    feeds,
		lookback: time.Duration(lookbackHours) * time.Hour,
		parser:   gofeed.NewParser(),
	}
}

// Fetch parses every configured feed and returns entries mentioning any of
// the given terms. Individual feed failures are logged and skipped; an
// error comes back only when every feed failed.
func (f *FeedFetcher) Fetch(ctx context.Context, terms []string) ([]Article, error) {
	if len(f.feeds) == 0 || len(terms) == 0 {
		return nil, nil
	}

	var articles []Article
	failed := 0
	for _, feed := range f.feeds {
		parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			log.Printf("parsing feed %s: %v", feed.URL, err)
			failed++
			continue
		}

		name := feed.Name
		if name == "" {
			name = parsed.Title
		}

		kept := 0
		for _, item := range parsed.Items {
			if kept >= maxPerFeed {
				break
			}
			article, ok := f.toArticle(item, name)
			if !ok || !matchesAny(article, terms) {
				continue
			}
			articles = append(articles, article)
			kept++
		}
	}

	if failed == len(f.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}
	return articles, nil
}

// toArticle converts a feed item, enforcing the lookback window. Entries
// without any date get the benefit of the doubt.
func (f *FeedFetcher) toArticle(item *gofeed.Item, source string) (Article, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if link == "" || item.Title == "" {
		return Article{}, false
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}
	if !published.IsZero() && time.Since(published) > f.lookback {
		return Article{}, false
	}

	return Article{
		URL:         link,
		Title:       strings.TrimSpace(item.Title),
		Summary:     stripHTML(item.Description),
		Source:      source,
		PublishedAt: published,
	}, true
}

// matchesAny reports whether the article's title or summary mentions any
// of the terms, case-insensitively.
func matchesAny(a Article, terms []string) bool {
	text := strings.ToLower(a.Title + " " + a.Summary)
	for _, term := range terms {
		if term != "" && strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// stripHTML drops tags, decodes entities and collapses whitespace in feed
// descriptions, which frequently carry markup.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}

	text := html.UnescapeString(b.String())
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > maxSummaryRunes {
		text = string(runes[:maxSummaryRunes])
	}
	return text
}
