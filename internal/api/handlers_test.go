package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/adaptix-labs/botframe/internal/config"
	"github.com/adaptix-labs/botframe/internal/core"
	"github.com/adaptix-labs/botframe/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	answer string
	err    error
	calls  int
}

func (g *stubGenerator) Generate(ctx context.Context, apiKey, groundingPrompt, userMessage string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type fixture struct {
	db     *store.SQLiteStore
	gen    *stubGenerator
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config.AppConfig = config.Config{
		JWTSecret:     "test-secret",
		PublicBaseURL: "https://chat.example.com",
	}

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gen := &stubGenerator{answer: "Generated answer."}
	handler := NewAPIHandler(core.NewChatService(db, gen), core.NewBotService(db))
	return &fixture{db: db, gen: gen, router: NewRouter(handler)}
}

func (f *fixture) newBot(t *testing.T) *store.Bot {
	t.Helper()
	user, err := f.db.CreateUser("owner@example.com", "hash")
	require.NoError(t, err)
	bot := &store.Bot{
		UserID:      user.ID,
		Name:        "Aria",
		CompanyName: "Acme",
		Style:       "friendly",
		Language:    "en",
	}
	require.NoError(t, f.db.CreateBot(bot))
	return bot
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func chatBody(botID string) map[string]string {
	return map[string]string{
		"botId":     botID,
		"message":   "Hi",
		"sessionId": "session-1",
		"apiKey":    "caller-key",
	}
}

func TestChatMissingFields(t *testing.T) {
	f := newFixture(t)
	bot := f.newBot(t)

	for _, field := range []string{"botId", "message", "sessionId", "apiKey"} {
		body := chatBody(bot.ID)
		delete(body, field)

		rec := f.do(t, http.MethodPost, "/api/chat", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "missing %s", field)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Missing required parameters", resp["error"])
	}

	// No store writes happened.
	convs, err := f.db.GetConversationsByBotID(bot.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.Zero(t, f.gen.calls)
}

func TestChatBotNotFound(t *testing.T) {
	f := newFixture(t)
	bot := f.newBot(t)

	rec := f.do(t, http.MethodPost, "/api/chat", chatBody("no-such-bot"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A deactivated bot is indistinguishable from a missing one.
	bot.IsActive = false
	require.NoError(t, f.db.UpdateBot(bot))
	rec = f.do(t, http.MethodPost, "/api/chat", chatBody(bot.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bot not found or inactive", resp["error"])

	convs, err := f.db.GetConversationsByBotID(bot.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestChatSuccess(t *testing.T) {
	f := newFixture(t)
	bot := f.newBot(t)

	rec := f.do(t, http.MethodPost, "/api/chat", chatBody(bot.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Generated answer.", resp["answer"])

	convs, err := f.db.GetConversationsByBotID(bot.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	messages, err := f.db.GetMessagesByConversationID(convs[0].ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
}

func TestChatGenerationFailure(t *testing.T) {
	f := newFixture(t)
	bot := f.newBot(t)
	f.gen.err = errors.New("upstream auth rejected")

	rec := f.do(t, http.MethodPost, "/api/chat", chatBody(bot.ID), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Internal server error", resp["error"])
	assert.NotContains(t, rec.Body.String(), "upstream auth rejected")

	convs, err := f.db.GetConversationsByBotID(bot.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	messages, err := f.db.GetMessagesByConversationID(convs[0].ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, store.RoleUser, messages[0].Role)
}

func TestChatPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://customer-site.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOwnerFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/signup", map[string]string{"user_id": "owner@example.com", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"user_id": "owner@example.com", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp["token"])
	authz := map[string]string{"Authorization": "Bearer " + loginResp["token"]}

	// Wizard submission: bot plus initial knowledge.
	createBody := map[string]any{
		"name":         "Aria",
		"company_name": "Acme",
		"style":        "humorous",
		"knowledge": []map[string]string{
			{"content": "We ship worldwide.", "source_name": "faq.txt", "source_type": "file"},
			{"content": "Support hours are 9-17 CET.", "source_type": "text"},
		},
	}
	rec = f.do(t, http.MethodPost, "/api/bots", createBody, authz)
	require.Equal(t, http.StatusCreated, rec.Code)
	var createResp struct {
		Bot       store.Bot             `json:"bot"`
		Knowledge []store.KnowledgeItem `json:"knowledge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &createResp))
	require.NotEmpty(t, createResp.Bot.ID)
	assert.True(t, createResp.Bot.IsActive)
	assert.Len(t, createResp.Knowledge, 2)

	botID := createResp.Bot.ID

	rec = f.do(t, http.MethodGet, "/api/bots", nil, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	var bots []store.Bot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bots))
	require.Len(t, bots, 1)

	// Dashboard toggle.
	rec = f.do(t, http.MethodPatch, "/api/bots/"+botID, map[string]any{"is_active": false}, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated store.Bot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.IsActive)

	// Embed code names the bot and the public endpoint.
	rec = f.do(t, http.MethodGet, "/api/bots/"+botID+"/embed", nil, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	var embedResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &embedResp))
	assert.Contains(t, embedResp["embed_code"], botID)
	assert.Contains(t, embedResp["embed_code"], "https://chat.example.com/widget.js")

	// Stats for a fresh bot.
	rec = f.do(t, http.MethodGet, "/api/bots/"+botID+"/stats", nil, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.BotStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.Conversations)

	rec = f.do(t, http.MethodDelete, "/api/bots/"+botID, nil, authz)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/bots/"+botID, nil, authz)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOwnerRoutesRequireAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/bots", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/bots", nil, map[string]string{"Authorization": "Bearer bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	bot := f.newBot(t) // owned by owner@example.com, created directly

	rec := f.do(t, http.MethodPost, "/api/signup", map[string]string{"user_id": "other@example.com", "password": "pw"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"user_id": "other@example.com", "password": "pw"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	authz := map[string]string{"Authorization": "Bearer " + loginResp["token"]}

	for _, path := range []string{
		"/api/bots/" + bot.ID,
		"/api/bots/" + bot.ID + "/knowledge",
		"/api/bots/" + bot.ID + "/stats",
		"/api/bots/" + bot.ID + "/conversations",
		"/api/bots/" + bot.ID + "/embed",
	} {
		rec := f.do(t, http.MethodGet, path, nil, authz)
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestWidgetScript(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/widget.js", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "https://chat.example.com/api/chat")
}

func TestConversationTranscript(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/signup", map[string]string{"user_id": "owner@example.com", "password": "pw"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"user_id": "owner@example.com", "password": "pw"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	authz := map[string]string{"Authorization": "Bearer " + loginResp["token"]}

	rec = f.do(t, http.MethodPost, "/api/bots", map[string]any{"name": "Aria", "company_name": "Acme"}, authz)
	require.Equal(t, http.StatusCreated, rec.Code)
	var createResp struct {
		Bot store.Bot `json:"bot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &createResp))
	botID := createResp.Bot.ID

	// Two widget turns on the same session.
	for i := 0; i < 2; i++ {
		body := chatBody(botID)
		body["message"] = fmt.Sprintf("question %d", i)
		rec := f.do(t, http.MethodPost, "/api/chat", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/bots/"+botID+"/conversations", nil, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []store.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "session-1", convs[0].SessionID)

	rec = f.do(t, http.MethodGet, "/api/conversations/"+convs[0].ID+"/messages", nil, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	require.Len(t, messages, 4)
	assert.Equal(t, "question 0", messages[0].Content)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, "question 1", messages[2].Content)
}
