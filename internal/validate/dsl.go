package validate

import (
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

var requiredDSLElements = []string{"workspace", "model", "views"}

// DSL checks a Structurizr workspace. Every missing element is reported.
func DSL(content string) *domain.ValidationResult {
	r := domain.NewValidationResult()
	lower := strings.ToLower(content)

	for _, el := range requiredDSLElements {
		if !strings.Contains(lower, el) {
			r.AddIssue("Missing required element: " + el)
		}
	}
	checkBraces(r, content)

	if !strings.Contains(content, "autoLayout") {
		r.AddWarning("Consider adding 'autoLayout' to views for better diagram layout")
	}

	r.Stats["total_lines"] = lineCount(content)
	r.Stats["relationship_count"] = strings.Count(content, "->")
	return r
}

// CleanDSL trims text and, when it does not already start with
// "workspace", cuts out the block running from the first line that starts
// with "workspace" to the line where the brace balance returns to zero.
// Text without such a block is returned trimmed. CleanDSL is idempotent.
func CleanDSL(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "workspace") {
		return text
	}

	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "workspace") {
			start = i
			break
		}
	}
	if start < 0 {
		return text
	}

	depth := 0
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth == 0 && i > start {
			return strings.TrimSpace(strings.Join(lines[start:i+1], "\n"))
		}
	}
	return text
}
