// Package api provides HTTP handlers for the agentchat server.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/agentchat/internal/store"
	"github.com/go-chi/chi/v5"
)

// PageCounter reports how many chat pages are open.
type PageCounter interface {
	Count() int
}

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	pages    PageCounter
	agentURL string
}

// NewHandler creates a new Handler. repo may be nil when transcripts are
// disabled.
func NewHandler(repo store.Repository, pages PageCounter, agentURL string) *Handler {
	return &Handler{
		repo:     repo,
		pages:    pages,
		agentURL: agentURL,
	}
}

// RegisterRoutes registers the JSON API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/transcripts/{pageID}", h.GetTranscript)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
