package core

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/adaptix-labs/botframe/internal/store"
)

var (
	// ErrBotNotFound covers both a missing and a deactivated bot; the chat
	// path does not reveal which.
	ErrBotNotFound = errors.New("bot not found or inactive")

	// ErrGeneration wraps any upstream failure during or after prompt
	// assembly. Surfaced to the caller as a generic internal error.
	ErrGeneration = errors.New("generation failed")
)

// TurnRequest carries one chat turn from the embedded widget. All fields are
// required; the handler rejects incomplete requests before any store access.
type TurnRequest struct {
	BotID     string `json:"botId"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	APIKey    string `json:"apiKey"`
}

type ChatService struct {
	dbStore   *store.SQLiteStore
	generator Generator
}

func NewChatService(db *store.SQLiteStore, g Generator) *ChatService {
	return &ChatService{
		dbStore:   db,
		generator: g,
	}
}

// HandleTurn runs one turn of a widget conversation: resolve the active bot,
// resolve or create the session's conversation, persist the user message,
// assemble the grounding prompt and call the model, persist the reply.
//
// The user message is persisted before generation is attempted, so a failed
// generation still leaves a durable record of it. Writes are not wrapped in a
// transaction; that partial state is an accepted outcome, not an error to
// reconcile.
func (s *ChatService) HandleTurn(ctx context.Context, req TurnRequest) (string, error) {
	bot, err := s.dbStore.GetActiveBot(req.BotID)
	if err != nil {
		return "", fmt.Errorf("failed to look up bot: %w", err)
	}
	if bot == nil {
		return "", ErrBotNotFound
	}

	conv, err := s.dbStore.GetOrCreateConversation(bot.ID, req.SessionID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve conversation: %w", err)
	}

	userMsg := store.Message{
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        req.Message,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return "", fmt.Errorf("failed to store user message: %w", err)
	}

	items, err := s.dbStore.GetKnowledgeByBotID(bot.ID, MaxKnowledgeItems)
	if err != nil {
		return "", fmt.Errorf("failed to fetch knowledge: %w", err)
	}
	knowledge := make([]string, 0, len(items))
	for _, item := range items {
		knowledge = append(knowledge, item.Content)
	}

	prompt := BuildGroundingPrompt(bot, knowledge)

	answer, err := s.generator.Generate(ctx, req.APIKey, prompt, req.Message)
	if err != nil {
		// The user message stays persisted; the next turn simply appends.
		log.Printf("Generation failed for bot %s, conversation %s: %v", bot.ID, conv.ID, err)
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	assistantMsg := store.Message{
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		Content:        answer,
	}
	if err := s.dbStore.CreateMessage(&assistantMsg); err != nil {
		return "", fmt.Errorf("failed to store assistant message: %w", err)
	}

	return answer, nil
}
