// Package relevance scores candidate articles against a user's interest
// profile. Scoring is deterministic keyword matching so runs are
// reproducible; no model calls.
package relevance

import (
	"strings"
	"unicode"

	"github.com/mindclone/mindclone/internal/profile"
	"github.com/mindclone/mindclone/internal/search"
)

// Component weights. Entities outweigh topics and titles outweigh
// summaries.
const (
	topicTitlePoints    = 30
	topicSummaryPoints  = 15
	entityTitlePoints   = 40
	entitySummaryPoints = 20
)

// Score rates how well an article matches the profile, from 0 to 100.
// Each matching term contributes once per field.
func Score(a search.Article, p profile.Profile) int {
	title := strings.ToLower(a.Title)
	summary := strings.ToLower(a.Summary)
	titleTokens := tokenize(title)
	summaryTokens := tokenize(summary)

	score := 0
	for _, topic := range p.Topics {
		if matches(topic, title, titleTokens) {
			score += topicTitlePoints
		}
		if matches(topic, summary, summaryTokens) {
			score += topicSummaryPoints
		}
	}
	for _, entity := range p.Entities {
		if matches(entity, title, titleTokens) {
			score += entityTitlePoints
		}
		if matches(entity, summary, summaryTokens) {
			score += entitySummaryPoints
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// matches reports whether the term occurs in the field. Single-word terms
// must match a whole token so "go" does not light up on "gossip";
// multi-word terms use substring search on the lowered text.
func matches(term, text string, tokens map[string]bool) bool {
	term = strings.ToLower(term)
	if strings.ContainsRune(term, ' ') {
		return strings.Contains(text, term)
	}
	return tokens[term]
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}
	return tokens
}
