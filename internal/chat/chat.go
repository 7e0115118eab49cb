// Package chat answers messages in the voice of the user's clone,
// grounding replies in their persona and knowledge base.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mindclone/mindclone/internal/database"
	"github.com/mindclone/mindclone/internal/llm"
)

const (
	// historyLimit bounds how many stored turns accompany a request.
	historyLimit = 20
	// knowledgeSnippets bounds how many knowledge items feed the system
	// prompt, most recently updated first.
	knowledgeSnippets = 10
	// snippetRunes caps each knowledge snippet.
	snippetRunes = 400
)

// Completer produces an assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, system string, messages []llm.Message) (string, error)
}

// Service handles chat turns against the store and the model.
type Service struct {
	db  *database.DB
	llm Completer
	now func() time.Time
}

// New creates a chat service.
func New(db *database.DB, completer Completer) *Service {
	return &Service{db: db, llm: completer, now: time.Now}
}

// Reply stores the user's message, asks the model for the clone's answer
// and stores that too. The user's message survives even when the model
// call fails.
func (s *Service) Reply(ctx context.Context, user *database.User, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty message")
	}

	history, err := s.db.GetMessages(user.ID, "chat", historyLimit)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	if _, err := s.db.InsertMessage(user.ID, "user", "chat", text, s.now()); err != nil {
		return "", fmt.Errorf("storing message: %w", err)
	}

	system, err := s.systemPrompt(user)
	if err != nil {
		return "", err
	}

	messages := historyToMessages(history)
	if len(messages) > 0 && messages[len(messages)-1].Role == "user" {
		messages[len(messages)-1].Content += "\n\n" + text
	} else {
		messages = append(messages, llm.Message{Role: "user", Content: text})
	}

	reply, err := s.llm.Complete(ctx, system, messages)
	if err != nil {
		return "", fmt.Errorf("completing chat: %w", err)
	}

	if _, err := s.db.InsertMessage(user.ID, "assistant", "chat", reply, s.now()); err != nil {
		return "", fmt.Errorf("storing reply: %w", err)
	}
	return reply, nil
}

// systemPrompt renders the clone instructions: who to impersonate, the
// persona text, and recent knowledge snippets.
func (s *Service) systemPrompt(user *database.User) (string, error) {
	name := user.Handle
	if user.DisplayName != nil && *user.DisplayName != "" {
		name = *user.DisplayName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the personal AI clone of %s. Answer as they would, in the first person.\n", name)
	if user.Persona != nil && *user.Persona != "" {
		fmt.Fprintf(&b, "\nPersona:\n%s\n", *user.Persona)
	}

	items, err := s.db.ListKnowledgeItems(user.ID, database.KnowledgeFilter{Limit: knowledgeSnippets})
	if err != nil {
		return "", fmt.Errorf("loading knowledge: %w", err)
	}
	if len(items) > 0 {
		b.WriteString("\nThings you know:\n")
		for _, item := range items {
			fmt.Fprintf(&b, "- %s: %s\n", item.Title, snippet(item.Content))
		}
	}
	return b.String(), nil
}

// historyToMessages converts stored history (newest first) into model
// turns, oldest first. The API wants strict user/assistant alternation
// starting with a user turn, so leading assistant turns are dropped and
// consecutive same-role turns merged.
func historyToMessages(history []database.Message) []llm.Message {
	var messages []llm.Message
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if len(messages) == 0 && m.Role != "user" {
			continue
		}
		if len(messages) > 0 && messages[len(messages)-1].Role == m.Role {
			messages[len(messages)-1].Content += "\n\n" + m.Content
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > snippetRunes {
		return string(runes[:snippetRunes]) + "..."
	}
	return s
}
