package core

import (
	"fmt"

	"github.com/adaptix-labs/botframe/internal/store"
)

// BotService backs the owner-facing dashboard and wizard API. The chat path
// never goes through it; bots are a read-only dependency there.
type BotService struct {
	dbStore *store.SQLiteStore
}

func NewBotService(db *store.SQLiteStore) *BotService {
	return &BotService{dbStore: db}
}

func (s *BotService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(externalUserID)
}

func (s *BotService) CreateUser(externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(externalUserID, passwordHash)
}

type KnowledgeInput struct {
	Content    string `json:"content"`
	SourceName string `json:"source_name"`
	SourceType string `json:"source_type"` // "file" or "text", defaults to "text"
}

type CreateBotInput struct {
	Name         string           `json:"name"`
	CompanyName  string           `json:"company_name"`
	Industry     string           `json:"industry"`
	Description  string           `json:"description"`
	Website      string           `json:"website"`
	Style        string           `json:"style"`
	CustomPrompt string           `json:"custom_prompt"`
	Language     string           `json:"language"`
	Knowledge    []KnowledgeInput `json:"knowledge"`
}

// CreateBot handles a wizard submission: the bot persona plus any initial
// knowledge snippets in one call.
func (s *BotService) CreateBot(userID int64, in CreateBotInput) (*store.Bot, []store.KnowledgeItem, error) {
	if in.Name == "" || in.CompanyName == "" {
		return nil, nil, fmt.Errorf("bot name and company name are required")
	}
	if in.Style == "" {
		in.Style = "friendly"
	}
	if in.Language == "" {
		in.Language = "en"
	}

	bot := store.Bot{
		UserID:       userID,
		Name:         in.Name,
		CompanyName:  in.CompanyName,
		Industry:     in.Industry,
		Description:  in.Description,
		Website:      in.Website,
		Style:        in.Style,
		CustomPrompt: in.CustomPrompt,
		Language:     in.Language,
	}
	if err := s.dbStore.CreateBot(&bot); err != nil {
		return nil, nil, fmt.Errorf("failed to create bot: %w", err)
	}

	items, err := s.addKnowledge(bot.ID, in.Knowledge)
	if err != nil {
		// The bot itself was created; surface the knowledge failure.
		return &bot, items, fmt.Errorf("bot created but knowledge insert failed: %w", err)
	}
	return &bot, items, nil
}

func (s *BotService) ListBots(userID int64) ([]store.Bot, error) {
	return s.dbStore.GetBotsByUserID(userID)
}

func (s *BotService) GetBot(botID string, userID int64) (*store.Bot, error) {
	return s.dbStore.GetBotByID(botID, userID)
}

type UpdateBotInput struct {
	Name         *string `json:"name"`
	CompanyName  *string `json:"company_name"`
	Industry     *string `json:"industry"`
	Description  *string `json:"description"`
	Website      *string `json:"website"`
	Style        *string `json:"style"`
	CustomPrompt *string `json:"custom_prompt"`
	Language     *string `json:"language"`
	IsActive     *bool   `json:"is_active"`
}

// UpdateBot applies a partial update; nil fields keep their current value.
// Toggling is_active is how the dashboard activates or deactivates a bot.
func (s *BotService) UpdateBot(botID string, userID int64, in UpdateBotInput) (*store.Bot, error) {
	bot, err := s.dbStore.GetBotByID(botID, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, nil // Not found
	}

	if in.Name != nil {
		bot.Name = *in.Name
	}
	if in.CompanyName != nil {
		bot.CompanyName = *in.CompanyName
	}
	if in.Industry != nil {
		bot.Industry = *in.Industry
	}
	if in.Description != nil {
		bot.Description = *in.Description
	}
	if in.Website != nil {
		bot.Website = *in.Website
	}
	if in.Style != nil {
		bot.Style = *in.Style
	}
	if in.CustomPrompt != nil {
		bot.CustomPrompt = *in.CustomPrompt
	}
	if in.Language != nil {
		bot.Language = *in.Language
	}
	if in.IsActive != nil {
		bot.IsActive = *in.IsActive
	}

	if err := s.dbStore.UpdateBot(bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *BotService) DeleteBot(botID string, userID int64) error {
	bot, err := s.dbStore.GetBotByID(botID, userID)
	if err != nil {
		return err
	}
	if bot == nil {
		return fmt.Errorf("bot not found")
	}
	return s.dbStore.DeleteBot(botID, userID)
}

func (s *BotService) AddKnowledge(botID string, userID int64, inputs []KnowledgeInput) ([]store.KnowledgeItem, error) {
	bot, err := s.dbStore.GetBotByID(botID, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot not found")
	}
	return s.addKnowledge(botID, inputs)
}

func (s *BotService) addKnowledge(botID string, inputs []KnowledgeInput) ([]store.KnowledgeItem, error) {
	var items []store.KnowledgeItem
	for _, in := range inputs {
		if in.Content == "" {
			continue // Skip empty snippets silently, as the wizard does
		}
		sourceType := in.SourceType
		if sourceType != store.SourceTypeFile {
			sourceType = store.SourceTypeText
		}
		item := store.KnowledgeItem{
			BotID:      botID,
			Content:    in.Content,
			SourceName: in.SourceName,
			SourceType: sourceType,
		}
		if err := s.dbStore.CreateKnowledgeItem(&item); err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ListKnowledge returns all of a bot's snippets for the dashboard, not the
// capped subset the chat path uses.
func (s *BotService) ListKnowledge(botID string, userID int64) ([]store.KnowledgeItem, error) {
	bot, err := s.dbStore.GetBotByID(botID, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot not found")
	}
	return s.dbStore.GetKnowledgeByBotID(botID, 0)
}

func (s *BotService) Stats(botID string, userID int64) (*store.BotStats, error) {
	bot, err := s.dbStore.GetBotByID(botID, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, nil // Not found
	}
	return s.dbStore.GetBotStats(botID)
}

func (s *BotService) ListConversations(botID string, userID int64) ([]store.Conversation, error) {
	bot, err := s.dbStore.GetBotByID(botID, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot not found")
	}
	return s.dbStore.GetConversationsByBotID(botID)
}

// ConversationMessages returns a transcript, verifying the conversation's
// bot belongs to the requesting user.
func (s *BotService) ConversationMessages(conversationID string, userID int64) ([]store.Message, error) {
	conv, err := s.dbStore.GetConversationByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation not found")
	}
	bot, err := s.dbStore.GetBotByID(conv.BotID, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("conversation not found")
	}
	return s.dbStore.GetMessagesByConversationID(conversationID, 500, 0)
}
