package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Vehicle routes
			r.Post("/vehicles", apiHandler.CreateVehicleHandler)
			r.Get("/vehicles", apiHandler.ListVehiclesHandler)
			r.Get("/vehicles/{vehicleID}", apiHandler.GetVehicleHandler)
			r.Post("/vehicles/{vehicleID}/issues/{issueID}/resolve", apiHandler.ResolveIssueHandler)

			// Diagnostics routes
			r.Post("/diagnostics", apiHandler.DiagnoseHandler)
			r.Get("/diagnostics/repair-guide/{issueID}", apiHandler.RepairGuideHandler)

			// Document-chat routes
			r.Post("/conversations", apiHandler.CreateConversationHandler)
			r.Post("/conversations/{conversationID}/documents", apiHandler.UploadDocumentsHandler)
			r.Post("/conversations/{conversationID}/chat", apiHandler.ConversationChatHandler)
		})
	})

	return r
}
