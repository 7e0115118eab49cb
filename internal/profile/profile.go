package profile

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mindclone/mindclone/internal/database"
)

// recentKnowledgeLimit bounds how many knowledge items feed a profile.
const recentKnowledgeLimit = 25

// Profile is a snapshot of a user's interests, rebuilt fresh for every
// curation run and never persisted.
type Profile struct {
	Topics   []string
	Entities []string
}

// Empty reports whether the profile carries no interests at all.
func (p Profile) Empty() bool {
	return len(p.Topics) == 0 && len(p.Entities) == 0
}

// Terms returns topics followed by entities as a single list.
func (p Profile) Terms() []string {
	terms := make([]string, 0, len(p.Topics)+len(p.Entities))
	terms = append(terms, p.Topics...)
	terms = append(terms, p.Entities...)
	return terms
}

// Builder derives interest profiles from account settings and the
// knowledge base.
type Builder struct {
	db *database.DB
}

// NewBuilder creates a profile builder.
func NewBuilder(db *database.DB) *Builder {
	return &Builder{db: db}
}

// Build assembles the user's interest profile: topics come from the
// account interests field plus tags on recent knowledge items, entities
// from capitalized phrases in recent knowledge titles. Everything is
// lowercased and deduplicated, order of first appearance preserved.
func (b *Builder) Build(userID int64) (Profile, error) {
	user, err := b.db.GetUserByID(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return Profile{}, fmt.Errorf("user %d not found", userID)
	}

	var topics []string
	seen := make(map[string]bool)
	addTopic := func(raw string) {
		topic := strings.ToLower(strings.TrimSpace(raw))
		if topic == "" || seen[topic] {
			return
		}
		seen[topic] = true
		topics = append(topics, topic)
	}

	if user.Interests != nil {
		for _, raw := range strings.Split(*user.Interests, ",") {
			addTopic(raw)
		}
	}

	items, err := b.db.ListKnowledgeItems(userID, database.KnowledgeFilter{Limit: recentKnowledgeLimit})
	if err != nil {
		return Profile{}, fmt.Errorf("loading knowledge items: %w", err)
	}
	for _, item := range items {
		for _, tag := range item.Tags {
			addTopic(tag)
		}
	}

	return Profile{Topics: topics, Entities: extractEntities(items, seen)}, nil
}

// extractEntities pulls capitalized phrases out of knowledge titles
// ("Notes on the Raft Consensus Protocol" yields "raft consensus
// protocol"). Phrases already present as topics are not repeated.
func extractEntities(items []database.KnowledgeItem, seen map[string]bool) []string {
	var entities []string
	for _, item := range items {
		for _, phrase := range capitalizedPhrases(item.Title) {
			key := strings.ToLower(phrase)
			if len(key) < 3 || seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, key)
		}
	}
	return entities
}

// capitalizedPhrases returns maximal runs of capitalized words. A run
// consisting only of the title's first word is dropped, since titles
// start capitalized regardless of content.
func capitalizedPhrases(title string) []string {
	words := strings.Fields(title)
	var phrases []string
	var run []string
	runStart := -1

	flush := func() {
		if len(run) == 0 {
			return
		}
		if !(runStart == 0 && len(run) == 1) {
			phrases = append(phrases, strings.Join(run, " "))
		}
		run = nil
		runStart = -1
	}

	for i, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed != "" && unicode.IsUpper([]rune(trimmed)[0]) {
			if runStart == -1 {
				runStart = i
			}
			run = append(run, trimmed)
			continue
		}
		flush()
	}
	flush()

	return phrases
}
