package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/server"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

type feedbackRequest struct {
	Sentiment   *domain.Sentiment `json:"sentiment"`
	Explanation string            `json:"explanation"`
}

// HandleRecordFeedback rates the feedback slot opened by a generation.
func (h *Handler) HandleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	server.AddLogField(r.Context(), "feedback_id", id)

	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Sentiment == nil {
		writeError(w, r, badRequest("sentiment is required"))
		return
	}
	if err := storage.ValidateRating(*req.Sentiment, req.Explanation); err != nil {
		writeError(w, r, err)
		return
	}

	fb, err := h.store.RecordFeedback(r.Context(), id, *req.Sentiment, req.Explanation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}
