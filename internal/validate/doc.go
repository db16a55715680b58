package validate

import (
	"regexp"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

var heading = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)

// Documentation checks generated markdown documentation.
func Documentation(content string) *domain.ValidationResult {
	r := domain.NewValidationResult()
	if strings.TrimSpace(content) == "" {
		r.AddIssue("Documentation is empty")
		return r
	}

	headings := len(heading.FindAllStringIndex(content, -1))
	if headings == 0 {
		r.AddWarning("No markdown headings found")
	}

	r.Stats["total_lines"] = lineCount(content)
	r.Stats["heading_count"] = headings
	r.Stats["word_count"] = len(strings.Fields(content))
	return r
}
