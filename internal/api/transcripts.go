package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/agentchat/internal/store"
	"github.com/ashureev/agentchat/internal/transcript"
	"github.com/go-chi/chi/v5"
)

// healthResponse is returned by GET /api/health.
type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	OpenPages   int    `json:"open_pages"`
	AgentAPIURL string `json:"agent_api_url"`
}

// transcriptResponse is returned by GET /api/transcripts/{pageID}.
type transcriptResponse struct {
	Page    *store.Page        `json:"page"`
	Entries []transcript.Entry `json:"entries"`
}

// Health reports database reachability and the number of open pages.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Database:    "disabled",
		AgentAPIURL: h.agentURL,
	}
	if h.pages != nil {
		resp.OpenPages = h.pages.Count()
	}

	status := http.StatusOK
	if h.repo != nil {
		resp.Database = "ok"
		if err := h.repo.Ping(r.Context()); err != nil {
			slog.Warn("Database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	JSON(w, status, resp)
}

// GetTranscript returns the recorded transcript of one page.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "transcripts_disabled")
		return
	}

	pageID := chi.URLParam(r, "pageID")
	page, err := h.repo.GetPage(r.Context(), pageID)
	if err != nil {
		slog.Error("Failed to load page", "page_id", pageID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load page")
		return
	}
	if page == nil {
		Error(w, http.StatusNotFound, "page not found")
		return
	}

	entries, err := h.repo.ListEntries(r.Context(), pageID)
	if err != nil {
		slog.Error("Failed to load transcript", "page_id", pageID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}

	JSON(w, http.StatusOK, transcriptResponse{Page: page, Entries: entries})
}
