// Package handlers exposes sessions, artifact generation, feedback and the
// artifact tools over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/render"
	"github.com/devgenius/artifact-gateway/internal/server"
	"github.com/devgenius/artifact-gateway/internal/session"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

// maxBodyBytes bounds JSON request bodies. Artifacts under refinement can be
// large diagrams.
const maxBodyBytes = 8 << 20

type Handler struct {
	pipeline  *pipeline.Pipeline
	sessions  *session.Store
	store     storage.Store
	artifacts artifact.Store
	kroki     *render.Kroki
	logger    *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithKroki enables DSL rendering.
func WithKroki(k *render.Kroki) Option {
	return func(h *Handler) { h.kroki = k }
}

func New(p *pipeline.Pipeline, sessions *session.Store, store storage.Store, artifacts artifact.Store, opts ...Option) *Handler {
	h := &Handler{
		pipeline:  p,
		sessions:  sessions,
		store:     store,
		artifacts: artifacts,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.HandleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDeleteSession)
			r.Post("/messages", h.HandleAppendMessages)
			r.Put("/selection", h.HandleSelect)
			r.Post("/generate", h.HandleGenerateSelected)
			r.Post("/artifacts/{kind}", h.HandleGenerate)
			r.Get("/conversation", h.HandleListConversation)
			r.Get("/feedback", h.HandleListFeedback)
			r.Get("/files", h.HandleListFiles)
			r.Get("/files/{name}", h.HandleGetFile)
			r.Get("/bundle", h.HandleBundle)
			r.Post("/bundle", h.HandleBundle)
		})
		r.Post("/feedback/{id}", h.HandleRecordFeedback)

		r.Post("/validate/{kind}", h.HandleValidate)
		r.Post("/extract", h.HandleExtract)
		r.Post("/analyze/diagram", h.HandleAnalyzeDiagram)
		r.Post("/analyze/dsl", h.HandleExplainDSL)
		r.Post("/render/drawio", h.HandleRenderDrawIO)
		r.Post("/render/structurizr", h.HandleRenderStructurizr)
	})
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, r, errSessionNotFound)
		return nil, false
	}
	server.AddLogField(r.Context(), "conversation_id", id)
	return sess, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, badRequest("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
