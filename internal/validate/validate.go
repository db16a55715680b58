// Package validate runs structural checks over extracted artifacts. Every
// check is pure: it never calls out and never mutates its input.
package validate

import (
	"fmt"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// Func checks one artifact body.
type Func func(content string) *domain.ValidationResult

// For returns the validator registered for kind.
func For(kind domain.ArtifactKind) (Func, bool) {
	switch kind {
	case domain.KindArchitecture:
		return DiagramXML, true
	case domain.KindDSL:
		return DSL, true
	case domain.KindCost:
		return CostTable, true
	case domain.KindCloudFormation:
		return CloudFormation, true
	case domain.KindCDK:
		return CDK, true
	case domain.KindDocumentation:
		return Documentation, true
	}
	return nil, false
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}

// checkBraces reports an issue when the counts of { and } differ. Ordering
// is not checked, so "}{" passes.
func checkBraces(r *domain.ValidationResult, content string) {
	open := strings.Count(content, "{")
	closing := strings.Count(content, "}")
	r.Stats["open_braces"] = open
	r.Stats["close_braces"] = closing
	if open != closing {
		r.AddIssue(fmt.Sprintf("Unbalanced braces: %d opening, %d closing", open, closing))
	}
}
