package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS bots (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        name TEXT NOT NULL,
        company_name TEXT NOT NULL,
        industry TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        website TEXT NOT NULL DEFAULT '',
        style TEXT NOT NULL DEFAULT 'friendly',
        custom_prompt TEXT NOT NULL DEFAULT '',
        language TEXT NOT NULL DEFAULT 'en',
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS knowledge_items (
        id TEXT PRIMARY KEY, -- UUID
        bot_id TEXT NOT NULL,
        content TEXT NOT NULL,
        source_name TEXT NOT NULL DEFAULT '',
        source_type TEXT NOT NULL CHECK (source_type IN ('file', 'text')),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (bot_id) REFERENCES bots (id)
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        bot_id TEXT NOT NULL,
        session_id TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (bot_id, session_id),
        FOREIGN KEY (bot_id) REFERENCES bots (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Bot methods
func (s *SQLiteStore) CreateBot(bot *Bot) error {
	bot.ID = uuid.NewString()
	now := time.Now()
	bot.CreatedAt = now
	bot.UpdatedAt = now
	bot.IsActive = true

	stmt, err := s.db.Prepare(`INSERT INTO bots
        (id, user_id, name, company_name, industry, description, website, style, custom_prompt, language, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare bot insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(bot.ID, bot.UserID, bot.Name, bot.CompanyName, bot.Industry, bot.Description, bot.Website,
		bot.Style, bot.CustomPrompt, bot.Language, bot.IsActive, bot.CreatedAt, bot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute bot insert: %w", err)
	}
	return nil
}

const botColumns = "id, user_id, name, company_name, industry, description, website, style, custom_prompt, language, is_active, created_at, updated_at"

func scanBot(row interface{ Scan(...any) error }) (*Bot, error) {
	var bot Bot
	err := row.Scan(&bot.ID, &bot.UserID, &bot.Name, &bot.CompanyName, &bot.Industry, &bot.Description, &bot.Website,
		&bot.Style, &bot.CustomPrompt, &bot.Language, &bot.IsActive, &bot.CreatedAt, &bot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetActiveBot returns the bot only while its active flag is set. This is the
// lookup the public chat path uses; it does not discriminate between a missing
// and a deactivated bot.
func (s *SQLiteStore) GetActiveBot(botID string) (*Bot, error) {
	row := s.db.QueryRow("SELECT "+botColumns+" FROM bots WHERE id = ? AND is_active = TRUE", botID)
	bot, err := scanBot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found or inactive
		}
		return nil, fmt.Errorf("failed to get active bot: %w", err)
	}
	return bot, nil
}

func (s *SQLiteStore) GetBotByID(botID string, userID int64) (*Bot, error) {
	row := s.db.QueryRow("SELECT "+botColumns+" FROM bots WHERE id = ? AND user_id = ?", botID, userID)
	bot, err := scanBot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found or not owned by user
		}
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}
	return bot, nil
}

func (s *SQLiteStore) GetBotsByUserID(userID int64) ([]Bot, error) {
	rows, err := s.db.Query("SELECT "+botColumns+" FROM bots WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bots: %w", err)
	}
	defer rows.Close()

	var bots []Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bot row: %w", err)
		}
		bots = append(bots, *bot)
	}
	return bots, nil
}

func (s *SQLiteStore) UpdateBot(bot *Bot) error {
	bot.UpdatedAt = time.Now()
	stmt, err := s.db.Prepare(`UPDATE bots SET
        name = ?, company_name = ?, industry = ?, description = ?, website = ?,
        style = ?, custom_prompt = ?, language = ?, is_active = ?, updated_at = ?
        WHERE id = ? AND user_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare bot update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(bot.Name, bot.CompanyName, bot.Industry, bot.Description, bot.Website,
		bot.Style, bot.CustomPrompt, bot.Language, bot.IsActive, bot.UpdatedAt, bot.ID, bot.UserID)
	if err != nil {
		return fmt.Errorf("failed to execute bot update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("bot not found or not owned by user, not updated")
	}
	return nil
}

// DeleteBot removes the bot together with its knowledge items, conversations
// and messages in one transaction.
func (s *SQLiteStore) DeleteBot(botID string, userID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bot delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM bots WHERE id = ? AND user_id = ?", botID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("bot not found or not owned by user, not deleted")
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE bot_id = ?)", botID); err != nil {
		return fmt.Errorf("failed to delete bot messages: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM conversations WHERE bot_id = ?", botID); err != nil {
		return fmt.Errorf("failed to delete bot conversations: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM knowledge_items WHERE bot_id = ?", botID); err != nil {
		return fmt.Errorf("failed to delete bot knowledge: %w", err)
	}

	return tx.Commit()
}

// Knowledge methods
func (s *SQLiteStore) CreateKnowledgeItem(item *KnowledgeItem) error {
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO knowledge_items (id, bot_id, content, source_name, source_type, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare knowledge insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(item.ID, item.BotID, item.Content, item.SourceName, item.SourceType, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute knowledge insert: %w", err)
	}
	return nil
}

// GetKnowledgeByBotID returns at most limit snippets in insertion order. A
// limit of 0 or less means no cap.
func (s *SQLiteStore) GetKnowledgeByBotID(botID string, limit int) ([]KnowledgeItem, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := s.db.Query("SELECT id, bot_id, content, source_name, source_type, created_at FROM knowledge_items WHERE bot_id = ? ORDER BY created_at ASC, rowid ASC LIMIT ?", botID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge items: %w", err)
	}
	defer rows.Close()

	var items []KnowledgeItem
	for rows.Next() {
		var item KnowledgeItem
		if err := rows.Scan(&item.ID, &item.BotID, &item.Content, &item.SourceName, &item.SourceType, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge row: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Conversation methods

// GetOrCreateConversation resolves the conversation for a (bot, session)
// pair. The UNIQUE constraint on (bot_id, session_id) plus INSERT OR IGNORE
// makes this atomic: concurrent first turns for the same pair end up on the
// same row.
func (s *SQLiteStore) GetOrCreateConversation(botID, sessionID string) (*Conversation, error) {
	_, err := s.db.Exec("INSERT OR IGNORE INTO conversations (id, bot_id, session_id, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), botID, sessionID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	var conv Conversation
	err = s.db.QueryRow("SELECT id, bot_id, session_id, created_at FROM conversations WHERE bot_id = ? AND session_id = ?", botID, sessionID).
		Scan(&conv.ID, &conv.BotID, &conv.SessionID, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) GetConversationByID(conversationID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRow("SELECT id, bot_id, session_id, created_at FROM conversations WHERE id = ?", conversationID).
		Scan(&conv.ID, &conv.BotID, &conv.SessionID, &conv.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) GetConversationsByBotID(botID string) ([]Conversation, error) {
	rows, err := s.db.Query("SELECT id, bot_id, session_id, created_at FROM conversations WHERE bot_id = ? ORDER BY created_at DESC", botID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.BotID, &conv.SessionID, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// Message methods
func (s *SQLiteStore) CreateMessage(msg *Message) error {
	msg.ID = uuid.NewString() // Ensure ID is set
	msg.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessagesByConversationID(conversationID string, limit int, offset int) ([]Message, error) {
	query := "SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC LIMIT ? OFFSET ?"
	rows, err := s.db.Query(query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Stats methods
func (s *SQLiteStore) GetBotStats(botID string) (*BotStats, error) {
	stats := BotStats{BotID: botID}

	err := s.db.QueryRow("SELECT COUNT(*) FROM conversations WHERE bot_id = ?", botID).Scan(&stats.Conversations)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE bot_id = ?)", botID).Scan(&stats.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	return &stats, nil
}
