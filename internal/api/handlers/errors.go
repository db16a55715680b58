package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/extract"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/render"
	"github.com/devgenius/artifact-gateway/internal/server"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

var (
	errSessionNotFound = &httpError{status: http.StatusNotFound, code: "not_found", message: "session not found"}
	errRenderDisabled  = &httpError{status: http.StatusServiceUnavailable, code: "render_disabled", message: "diagram rendering is not configured"}
)

type httpError struct {
	status  int
	code    string
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error {
	return &httpError{status: http.StatusBadRequest, code: "invalid_request", message: msg}
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Issues  []string `json:"issues,omitempty"`
	Raw     string   `json:"raw,omitempty"`
}

// errorResponse maps err to a status and envelope.
func errorResponse(err error) (int, ErrorBody) {
	var (
		he  *httpError
		pe  *pipeline.Error
		api *domain.APIError
	)
	switch {
	case errors.As(err, &he):
		return he.status, ErrorBody{ErrorDetail{Code: he.code, Message: he.message}}
	case errors.As(err, &pe):
		d := ErrorDetail{Code: string(pe.Code), Message: pe.Message, Issues: pe.Issues, Raw: pe.Raw}
		switch pe.Code {
		case pipeline.CodeInvalidRequest:
			return http.StatusBadRequest, ErrorBody{d}
		case pipeline.CodeExtractionFailed, pipeline.CodeValidationFailed:
			return http.StatusUnprocessableEntity, ErrorBody{d}
		}
		status, msg := upstreamStatus(pe.Err)
		d.Message = msg
		return status, ErrorBody{d}
	case errors.Is(err, extract.ErrNotFound):
		return http.StatusUnprocessableEntity, ErrorBody{ErrorDetail{Code: "extraction_failed", Message: err.Error()}}
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound, ErrorBody{ErrorDetail{Code: "not_found", Message: err.Error()}}
	case errors.Is(err, render.ErrUnsupportedFormat), errors.Is(err, render.ErrNotWorkspace):
		return http.StatusBadRequest, ErrorBody{ErrorDetail{Code: "invalid_request", Message: err.Error()}}
	case errors.Is(err, render.ErrUpstream):
		return http.StatusBadGateway, ErrorBody{ErrorDetail{Code: "render_failed", Message: err.Error()}}
	case errors.As(err, &api) && api.Type == domain.ErrorTypeInvalidRequest:
		return http.StatusBadRequest, ErrorBody{ErrorDetail{Code: "invalid_request", Message: api.Message}}
	}
	return http.StatusInternalServerError, ErrorBody{ErrorDetail{Code: "internal_error", Message: err.Error()}}
}

// upstreamStatus maps a model invocation failure.
func upstreamStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusBadGateway, "model invocation failed"
	case domain.IsThrottling(err):
		return http.StatusTooManyRequests, "the model provider is throttling requests, please retry later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "generation timed out"
	}
	return http.StatusBadGateway, domain.AsAPIError(err).Message
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}
