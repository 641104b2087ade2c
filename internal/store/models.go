package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	SourceTypeFile = "file"
	SourceTypeText = "text"
)

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

type Bot struct {
	ID           string    `json:"id"` // Using UUID for external ID
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	CompanyName  string    `json:"company_name"`
	Industry     string    `json:"industry"`
	Description  string    `json:"description"`
	Website      string    `json:"website"`
	Style        string    `json:"style"` // formal, friendly, humorous or expert
	CustomPrompt string    `json:"custom_prompt"`
	Language     string    `json:"language"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type KnowledgeItem struct {
	ID         string    `json:"id"`
	BotID      string    `json:"bot_id"`
	Content    string    `json:"content"`
	SourceName string    `json:"source_name"`
	SourceType string    `json:"source_type"` // "file" or "text"
	CreatedAt  time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	BotID     string    `json:"bot_id"`
	SessionID string    `json:"session_id"` // opaque, caller-supplied
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type BotStats struct {
	BotID         string `json:"bot_id"`
	Conversations int64  `json:"conversations"`
	Messages      int64  `json:"messages"`
}
