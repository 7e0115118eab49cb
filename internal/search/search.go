// Package search finds candidate articles for a user's interest profile.
// It combines the NewsAPI everything endpoint with configured RSS feeds;
// either source can be absent.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mindclone/mindclone/internal/config"
	"github.com/mindclone/mindclone/internal/profile"
)

// Article is one candidate story found for a user. A zero PublishedAt
// means the source did not report a date.
type Article struct {
	URL         string
	Title       string
	Summary     string
	Source      string
	PublishedAt time.Time
}

// Query terms beyond these caps add noise without improving recall.
const (
	maxQueryTopics   = 5
	maxQueryEntities = 3
)

// Searcher merges results from the configured article sources.
type Searcher struct {
	news  *NewsAPIClient
	feeds *FeedFetcher
}

// NewSearcher wires up the sources enabled in the config. Feeds share the
// NewsAPI lookback window.
func NewSearcher(cfg config.Sources) *Searcher {
	s := &Searcher{}
	if cfg.NewsAPI.Enabled {
		s.news = NewNewsAPIClient(cfg.NewsAPI)
	}
	if len(cfg.Feeds) > 0 {
		s.feeds = NewFeedFetcher(cfg.Feeds, cfg.NewsAPI.LookbackHours)
	}
	return s
}

// Search returns candidate articles for the profile, deduplicated by URL
// and ordered newest first. A failing source is logged and skipped; the
// search as a whole fails only when every configured source failed.
func (s *Searcher) Search(ctx context.Context, p profile.Profile) ([]Article, error) {
	type result struct {
		articles []Article
		err      error
	}
	var results []result

	if s.news != nil && s.news.IsConfigured() {
		articles, err := s.news.Search(ctx, buildQuery(p))
		if err != nil {
			log.Printf("newsapi search failed: %v", err)
		}
		results = append(results, result{articles, err})
	}
	if s.feeds != nil {
		articles, err := s.feeds.Fetch(ctx, p.Terms())
		if err != nil {
			log.Printf("feed fetch failed: %v", err)
		}
		results = append(results, result{articles, err})
	}

	if len(results) == 0 {
		return nil, nil
	}

	var merged []Article
	seen := make(map[string]bool)
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		for _, a := range r.articles {
			if a.URL == "" || seen[a.URL] {
				continue
			}
			seen[a.URL] = true
			merged = append(merged, a)
		}
	}
	if len(errs) == len(results) {
		return nil, fmt.Errorf("all article sources failed: %w", errors.Join(errs...))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	return merged, nil
}

// buildQuery turns a profile into a NewsAPI boolean query: the leading
// topics OR'd with the leading entities, multi-word terms quoted.
func buildQuery(p profile.Profile) string {
	var terms []string
	for i, topic := range p.Topics {
		if i >= maxQueryTopics {
			break
		}
		terms = append(terms, quoteTerm(topic))
	}
	for i, entity := range p.Entities {
		if i >= maxQueryEntities {
			break
		}
		terms = append(terms, quoteTerm(entity))
	}
	return strings.Join(terms, " OR ")
}

func quoteTerm(term string) string {
	if strings.ContainsRune(term, ' ') {
		return `"` + term + `"`
	}
	return term
}
