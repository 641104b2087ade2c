package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/adaptix-labs/botframe/internal/auth"
	"github.com/adaptix-labs/botframe/internal/config"
	"github.com/adaptix-labs/botframe/internal/core"
	"github.com/adaptix-labs/botframe/internal/widget"
	"github.com/go-chi/chi/v5"
)

type APIHandler struct {
	chatService *core.ChatService
	botService  *core.BotService
}

func NewAPIHandler(cs *core.ChatService, bs *core.BotService) *APIHandler {
	return &APIHandler{chatService: cs, botService: bs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ChatHandler is the public conversation turn endpoint used by the embedded
// widget. It carries no auth of its own: resolving an *active* bot is the
// only gate on this path.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req core.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.BotID == "" || req.Message == "" || req.SessionID == "" || req.APIKey == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	answer, err := h.chatService.HandleTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrBotNotFound) {
			writeJSONError(w, http.StatusNotFound, "Bot not found or inactive")
			return
		}
		// Original error is logged inside the service; never echo upstream
		// detail (or anything derived from the caller's API key) back out.
		log.Printf("Chat turn failed for bot %s: %v", req.BotID, err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// WidgetScriptHandler serves the embeddable widget JavaScript.
func (h *APIHandler) WidgetScriptHandler(w http.ResponseWriter, r *http.Request) {
	script, err := widget.Script(config.AppConfig.PublicBaseURL)
	if err != nil {
		log.Printf("Error rendering widget script: %v", err)
		http.Error(w, "Failed to render widget", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write([]byte(script))
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.botService.GetUserByExternalID(externalUserID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", externalUserID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.botService.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.UserID, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.botService.GetUserByExternalID(req.UserID)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.UserID, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (h *APIHandler) CreateBotHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var req core.CreateBotInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.CompanyName == "" {
		http.Error(w, "Bot name and company name are required", http.StatusBadRequest)
		return
	}

	bot, items, err := h.botService.CreateBot(userID, req)
	if err != nil {
		log.Printf("Error creating bot for user %d: %v", userID, err)
		http.Error(w, "Failed to create bot", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"bot":       bot,
		"knowledge": items,
	})
}

func (h *APIHandler) ListBotsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	bots, err := h.botService.ListBots(userID)
	if err != nil {
		log.Printf("Error listing bots for user %d: %v", userID, err)
		http.Error(w, "Failed to list bots", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(bots)
}

func (h *APIHandler) GetBotHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	bot, err := h.botService.GetBot(botID, userID)
	if err != nil {
		log.Printf("Error getting bot %s for user %d: %v", botID, userID, err)
		http.Error(w, "Failed to get bot", http.StatusInternalServerError)
		return
	}
	if bot == nil {
		http.Error(w, "Bot not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(bot)
}

func (h *APIHandler) UpdateBotHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	var req core.UpdateBotInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	bot, err := h.botService.UpdateBot(botID, userID, req)
	if err != nil {
		log.Printf("Error updating bot %s for user %d: %v", botID, userID, err)
		http.Error(w, "Failed to update bot", http.StatusInternalServerError)
		return
	}
	if bot == nil {
		http.Error(w, "Bot not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(bot)
}

func (h *APIHandler) DeleteBotHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	if err := h.botService.DeleteBot(botID, userID); err != nil {
		if err.Error() == "bot not found" {
			http.Error(w, "Bot not found", http.StatusNotFound)
		} else {
			log.Printf("Error deleting bot %s for user %d: %v", botID, userID, err)
			http.Error(w, "Failed to delete bot", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type AddKnowledgeRequest struct {
	Items []core.KnowledgeInput `json:"items"`
}

func (h *APIHandler) AddKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	var req AddKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "At least one knowledge item is required", http.StatusBadRequest)
		return
	}

	items, err := h.botService.AddKnowledge(botID, userID, req.Items)
	if err != nil {
		if err.Error() == "bot not found" {
			http.Error(w, "Bot not found", http.StatusNotFound)
		} else {
			log.Printf("Error adding knowledge to bot %s for user %d: %v", botID, userID, err)
			http.Error(w, "Failed to add knowledge", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(items)
}

func (h *APIHandler) ListKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	items, err := h.botService.ListKnowledge(botID, userID)
	if err != nil {
		if err.Error() == "bot not found" {
			http.Error(w, "Bot not found", http.StatusNotFound)
		} else {
			log.Printf("Error listing knowledge for bot %s, user %d: %v", botID, userID, err)
			http.Error(w, "Failed to list knowledge", http.StatusInternalServerError)
		}
		return
	}
	json.NewEncoder(w).Encode(items)
}

func (h *APIHandler) BotStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	stats, err := h.botService.Stats(botID, userID)
	if err != nil {
		log.Printf("Error getting stats for bot %s, user %d: %v", botID, userID, err)
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		http.Error(w, "Bot not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	convs, err := h.botService.ListConversations(botID, userID)
	if err != nil {
		if err.Error() == "bot not found" {
			http.Error(w, "Bot not found", http.StatusNotFound)
		} else {
			log.Printf("Error listing conversations for bot %s, user %d: %v", botID, userID, err)
			http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		}
		return
	}
	json.NewEncoder(w).Encode(convs)
}

func (h *APIHandler) ConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := h.botService.ConversationMessages(conversationID, userID)
	if err != nil {
		if err.Error() == "conversation not found" {
			http.Error(w, "Conversation not found", http.StatusNotFound)
		} else {
			log.Printf("Error listing messages for conversation %s, user %d: %v", conversationID, userID, err)
			http.Error(w, "Failed to list messages", http.StatusInternalServerError)
		}
		return
	}
	json.NewEncoder(w).Encode(messages)
}

func (h *APIHandler) EmbedCodeHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	botID := chi.URLParam(r, "botID")

	bot, err := h.botService.GetBot(botID, userID)
	if err != nil {
		log.Printf("Error getting bot %s for embed code, user %d: %v", botID, userID, err)
		http.Error(w, "Failed to get bot", http.StatusInternalServerError)
		return
	}
	if bot == nil {
		http.Error(w, "Bot not found", http.StatusNotFound)
		return
	}

	snippet, err := widget.EmbedSnippet(config.AppConfig.PublicBaseURL, bot.ID, bot.Name)
	if err != nil {
		log.Printf("Error rendering embed snippet for bot %s: %v", botID, err)
		http.Error(w, "Failed to render embed code", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"embed_code": snippet})
}
