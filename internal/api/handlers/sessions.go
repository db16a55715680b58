package handlers

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/server"
	"github.com/devgenius/artifact-gateway/internal/session"
)

type createSessionRequest struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	UserName       string           `json:"user_name,omitempty"`
	UserEmail      string           `json:"user_email,omitempty"`
	Messages       []domain.Message `json:"messages,omitempty"`
}

type sessionResponse struct {
	ConversationID string                `json:"conversation_id"`
	UserName       string                `json:"user_name,omitempty"`
	UserEmail      string                `json:"user_email,omitempty"`
	BundleURL      string                `json:"bundle_url,omitempty"`
	Messages       int                   `json:"messages"`
	Selected       []domain.ArtifactKind `json:"selected"`
	Interactions   []domain.Interaction  `json:"interactions"`
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := checkMessages(req.Messages); err != nil {
		writeError(w, r, err)
		return
	}

	sess := h.sessions.GetOrCreate(strings.TrimSpace(req.ConversationID))
	sess.Lock()
	defer sess.Unlock()

	sess.UserName, sess.UserEmail = req.UserName, req.UserEmail
	if sess.UserName == "" {
		if c := server.GetClient(r.Context()); c != nil {
			sess.UserName = c.Description
		}
	}
	sess.Append(req.Messages...)
	server.AddLogField(r.Context(), "conversation_id", sess.ID)

	rec := &domain.SessionRecord{
		ConversationID: sess.ID,
		UserName:       sess.UserName,
		UserEmail:      sess.UserEmail,
		StartedAt:      sess.CreatedAt,
	}
	if err := h.store.SaveSession(r.Context(), rec); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save session",
			slog.String("conversation_id", sess.ID),
			slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusCreated, h.describe(r, sess))
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()
	writeJSON(w, http.StatusOK, h.describe(r, sess))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	h.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAppendMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Messages []domain.Message `json:"messages"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, r, badRequest("messages must not be empty"))
		return
	}
	if err := checkMessages(req.Messages); err != nil {
		writeError(w, r, err)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	sess.Append(req.Messages...)
	writeJSON(w, http.StatusOK, h.describe(r, sess))
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Kinds []domain.ArtifactKind `json:"kinds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, k := range req.Kinds {
		if !k.Valid() {
			writeError(w, r, badRequest("unknown artifact kind "+string(k)))
			return
		}
	}
	sess.Lock()
	defer sess.Unlock()
	for _, k := range domain.Kinds() {
		sess.Select(k, false)
	}
	for _, k := range req.Kinds {
		sess.Select(k, true)
	}
	writeJSON(w, http.StatusOK, h.describe(r, sess))
}

// describe must be called with sess locked.
func (h *Handler) describe(r *http.Request, sess *session.Session) sessionResponse {
	resp := sessionResponse{
		ConversationID: sess.ID,
		UserName:       sess.UserName,
		UserEmail:      sess.UserEmail,
		Messages:       sess.Len(),
		Selected:       sess.SelectedKinds(),
		Interactions:   sess.Interactions(),
	}
	if resp.Selected == nil {
		resp.Selected = []domain.ArtifactKind{}
	}
	if rec, err := h.store.GetSession(r.Context(), sess.ID); err == nil {
		resp.BundleURL = rec.BundleURL
	}
	return resp
}

func checkMessages(msgs []domain.Message) error {
	for _, m := range msgs {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return badRequest("message role must be user or assistant")
		}
		if strings.TrimSpace(m.Content) == "" {
			return badRequest("message content must not be empty")
		}
	}
	return nil
}

func (h *Handler) HandleListConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	recs, err := h.store.ListConversation(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.ConversationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (h *Handler) HandleListFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	fbs, err := h.store.ListFeedback(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if fbs == nil {
		fbs = []domain.Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": fbs})
}

type fileEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	names, err := h.artifacts.List(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	files := make([]fileEntry, 0, len(names))
	for _, name := range names {
		link, err := h.artifacts.URL(r.Context(), sess.ID, name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		files = append(files, fileEntry{Name: name, URL: link})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *Handler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	content, err := h.artifacts.Get(r.Context(), sess.ID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", fileContentType(name))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// HandleBundle stores the transcript and zips every markdown artifact of the
// conversation. The archive itself is returned when the client accepts zip.
func (h *Handler) HandleBundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	transcript := sess.Transcript()
	sess.Unlock()

	archive, link, err := artifact.Bundle(r.Context(), h.artifacts, sess.ID, transcript)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.UpdateSessionBundle(r.Context(), sess.ID, link); err != nil {
		h.logger.WarnContext(r.Context(), "failed to record bundle url",
			slog.String("conversation_id", sess.ID),
			slog.String("error", err.Error()))
	}

	if strings.Contains(r.Header.Get("Accept"), "application/zip") {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.BundleName+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(archive)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":  artifact.BundleName,
		"url":   link,
		"bytes": len(archive),
	})
}

func fileContentType(name string) string {
	switch path.Ext(name) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
