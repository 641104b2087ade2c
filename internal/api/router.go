package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// The widget runs on arbitrary customer sites, so every response
	// carries permissive CORS headers and preflights get an empty 200.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey"},
	}))

	// Embeddable widget script
	r.Get("/widget.js", apiHandler.WidgetScriptHandler)

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/chat", apiHandler.ChatHandler)
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Owner-authenticated routes (dashboard and wizard)
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/bots", apiHandler.CreateBotHandler)
			r.Get("/bots", apiHandler.ListBotsHandler)
			r.Get("/bots/{botID}", apiHandler.GetBotHandler)
			r.Patch("/bots/{botID}", apiHandler.UpdateBotHandler)
			r.Delete("/bots/{botID}", apiHandler.DeleteBotHandler)

			r.Post("/bots/{botID}/knowledge", apiHandler.AddKnowledgeHandler)
			r.Get("/bots/{botID}/knowledge", apiHandler.ListKnowledgeHandler)
			r.Get("/bots/{botID}/stats", apiHandler.BotStatsHandler)
			r.Get("/bots/{botID}/conversations", apiHandler.ListConversationsHandler)
			r.Get("/bots/{botID}/embed", apiHandler.EmbedCodeHandler)

			r.Get("/conversations/{conversationID}/messages", apiHandler.ConversationMessagesHandler)
		})
	})

	return r
}
