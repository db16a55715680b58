package pipeline

import (
	"fmt"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// ErrorCode classifies a failed run.
type ErrorCode string

const (
	CodeInvalidRequest   ErrorCode = "invalid_request"
	CodeInvocationFailed ErrorCode = "invocation_failed"
	CodeExtractionFailed ErrorCode = "extraction_failed"
	CodeValidationFailed ErrorCode = "validation_failed"
)

// Error is returned by Run for every failure. The session is left as it was
// before the run.
type Error struct {
	Code    ErrorCode
	Kind    domain.ArtifactKind
	Message string
	// Issues lists validation problems.
	Issues []string
	// Raw is the extracted artifact for validation failures and the full
	// response for extraction failures.
	Raw        string
	Validation *domain.ValidationResult
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
