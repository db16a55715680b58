package validate

import (
	"regexp"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

var tableSeparator = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)

// CostTable checks a markdown cost estimate.
func CostTable(content string) *domain.ValidationResult {
	r := domain.NewValidationResult()

	rows := 0
	hasSeparator := false
	hasTotal := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		if tableSeparator.MatchString(line) {
			hasSeparator = true
			continue
		}
		rows++
		if strings.Contains(strings.ToLower(line), "total") {
			hasTotal = true
		}
	}

	if !hasSeparator || rows < 2 {
		r.AddIssue("No markdown cost table found")
	} else if !hasTotal {
		r.AddWarning("No total row found in cost table")
	}

	r.Stats["total_lines"] = lineCount(content)
	r.Stats["table_rows"] = rows
	r.Stats["has_total"] = hasTotal
	return r
}
