package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/extract"
	"github.com/devgenius/artifact-gateway/internal/render"
	"github.com/devgenius/artifact-gateway/internal/validate"
)

type contentRequest struct {
	Content string `json:"content"`
	Format  string `json:"format,omitempty"`
}

func (h *Handler) decodeContent(w http.ResponseWriter, r *http.Request) (contentRequest, bool) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, badRequest("content must not be empty"))
		return req, false
	}
	return req, true
}

type validateResponse struct {
	*domain.ValidationResult
	Cleaned string `json:"cleaned,omitempty"`
}

// HandleValidate runs the structural check for kind over the body content.
// DSL is cleaned first and the cleaned text is returned alongside.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	kind := domain.ArtifactKind(chi.URLParam(r, "kind"))
	check, ok := validate.For(kind)
	if !ok {
		writeError(w, r, badRequest(fmt.Sprintf("unknown artifact kind %q", kind)))
		return
	}
	req, ok := h.decodeContent(w, r)
	if !ok {
		return
	}

	resp := validateResponse{}
	content := req.Content
	if kind == domain.KindDSL {
		content = validate.CleanDSL(content)
		resp.Cleaned = content
	}
	resp.ValidationResult = check(content)
	writeJSON(w, http.StatusOK, resp)
}

type extractRequest struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// HandleExtract returns every fenced block tagged tag. An empty tag matches
// any block.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	blocks, err := extract.All(req.Text, req.Tag)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *Handler) HandleAnalyzeDiagram(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeContent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, validate.AnalyzeDiagram(req.Content))
}

func (h *Handler) HandleExplainDSL(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeContent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, validate.ExplainDSL(req.Content))
}

// HandleRenderDrawIO wraps diagram XML in an embeddable viewer page.
func (h *Handler) HandleRenderDrawIO(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeContent(w, r)
	if !ok {
		return
	}
	page, err := render.DrawIOHTML(req.Content)
	if err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, page)
}

// HandleRenderStructurizr renders a workspace through Kroki.
func (h *Handler) HandleRenderStructurizr(w http.ResponseWriter, r *http.Request) {
	if h.kroki == nil {
		writeError(w, r, errRenderDisabled)
		return
	}
	req, ok := h.decodeContent(w, r)
	if !ok {
		return
	}
	diagram, err := h.kroki.Render(r.Context(), req.Content, req.Format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", diagram.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(diagram.Data)
}
