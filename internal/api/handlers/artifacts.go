package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/session"
)

type generateRequest struct {
	Description       string `json:"description,omitempty"`
	DocumentationType string `json:"documentation_type,omitempty"`
	Section           string `json:"section,omitempty"`
	Refinement        string `json:"refinement,omitempty"`
	Current           string `json:"current,omitempty"`
	Stream            bool   `json:"stream,omitempty"`
}

func (g generateRequest) pipelineRequest(kind domain.ArtifactKind) pipeline.Request {
	return pipeline.Request{
		Kind:              kind,
		Description:       g.Description,
		DocumentationType: g.DocumentationType,
		Section:           g.Section,
		Refinement:        g.Refinement,
		Current:           g.Current,
	}
}

// kindResult is one entry of a multi-kind generation.
type kindResult struct {
	Kind   domain.ArtifactKind `json:"kind"`
	Result *pipeline.Result    `json:"result,omitempty"`
	Error  *ErrorDetail        `json:"error,omitempty"`
}

// HandleGenerate runs the pipeline for the kind in the path.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind := domain.ArtifactKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, r, badRequest(fmt.Sprintf("unknown artifact kind %q", kind)))
		return
	}
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess.Lock()
	defer sess.Unlock()

	if req.Stream || wantsEventStream(r) {
		stream, ok := h.newEventStream(w, r)
		if !ok {
			return
		}
		h.streamKind(r, stream, sess, kind, req)
		return
	}

	res, err := h.pipeline.Run(r.Context(), sess, req.pipelineRequest(kind))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGenerateSelected runs the pipeline for every selected kind in display
// order. A failed kind does not stop the others.
func (h *Handler) HandleGenerateSelected(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess.Lock()
	defer sess.Unlock()

	kinds := sess.SelectedKinds()
	if len(kinds) == 0 {
		writeError(w, r, badRequest("no artifact kinds selected"))
		return
	}
	if req.Refinement != "" || req.Current != "" {
		writeError(w, r, badRequest("refinements target a single artifact kind"))
		return
	}

	if req.Stream || wantsEventStream(r) {
		stream, ok := h.newEventStream(w, r)
		if !ok {
			return
		}
		for _, kind := range kinds {
			if r.Context().Err() != nil {
				return
			}
			h.streamKind(r, stream, sess, kind, req)
		}
		stream.send("done", map[string]any{"kinds": kinds})
		return
	}

	results := make([]kindResult, 0, len(kinds))
	for _, kind := range kinds {
		res, err := h.pipeline.Run(r.Context(), sess, req.pipelineRequest(kind))
		if err != nil {
			h.logger.WarnContext(r.Context(), "generation failed",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
			_, body := errorResponse(err)
			results = append(results, kindResult{Kind: kind, Error: &body.Error})
			continue
		}
		results = append(results, kindResult{Kind: kind, Result: res})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// streamKind runs one kind and reports progress as server-sent events.
func (h *Handler) streamKind(r *http.Request, stream *eventStream, sess *session.Session, kind domain.ArtifactKind, req generateRequest) {
	preq := req.pipelineRequest(kind)
	var sent string
	preq.Observer = func(buf string) {
		// A restarted try replays from an earlier point.
		if !strings.HasPrefix(buf, sent) {
			stream.send("reset", map[string]any{"kind": kind, "text": buf})
		} else {
			stream.send("delta", map[string]any{"kind": kind, "text": buf[len(sent):]})
		}
		sent = buf
	}

	res, err := h.pipeline.Run(r.Context(), sess, preq)
	if err != nil {
		_, body := errorResponse(err)
		stream.send("error", map[string]any{"kind": kind, "error": body.Error})
		return
	}
	stream.send("result", res)
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
}

func (h *Handler) newEventStream(w http.ResponseWriter, r *http.Request) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, fmt.Errorf("streaming not supported"))
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher, logger: h.logger}, true
}

func (s *eventStream) send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE event", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload)
	s.flusher.Flush()
}
