package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// criticalTags must open and close the same number of times in a draw.io
// document.
var criticalTags = []string{"mxGraphModel", "root", "mxCell"}

var (
	anyOpenTag  = regexp.MustCompile(`<\w+[^>]*>`)
	anyCloseTag = regexp.MustCompile(`</\w+>`)

	tagOpen  = map[string]*regexp.Regexp{}
	tagClose = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range criticalTags {
		tagOpen[tag] = regexp.MustCompile(`<` + tag + `[^>]*>`)
		tagClose[tag] = regexp.MustCompile(`</` + tag + `>`)
	}
}

// countOpening counts matches of re that are not self-closing.
func countOpening(re *regexp.Regexp, s string) int {
	n := 0
	for _, m := range re.FindAllString(s, -1) {
		if !strings.HasSuffix(m, "/>") {
			n++
		}
	}
	return n
}

// DiagramXML checks a draw.io document. Tag balance is a count, not a
// parse: misnested but equally counted tags pass.
func DiagramXML(content string) *domain.ValidationResult {
	r := domain.NewValidationResult()
	trimmed := strings.TrimSpace(content)

	if !strings.HasPrefix(trimmed, "<") {
		r.AddIssue("XML does not start with an opening tag")
	}
	if !strings.HasSuffix(trimmed, ">") {
		r.AddIssue("XML does not end with a closing tag")
	}

	if !strings.Contains(content, "mxGraphModel") && !strings.Contains(content, "diagram") {
		r.AddWarning("No mxGraphModel or diagram tag found - might not be valid draw.io format")
	}

	for _, tag := range criticalTags {
		open := countOpening(tagOpen[tag], content)
		closing := len(tagClose[tag].FindAllStringIndex(content, -1))
		if open != closing {
			r.AddIssue(fmt.Sprintf("Unbalanced %s tags: %d opening, %d closing", tag, open, closing))
		}
	}

	lower := strings.ToLower(content)
	if !strings.Contains(lower, "aws") && !strings.Contains(lower, "amazon") {
		r.AddWarning("No AWS icons detected in diagram")
	}

	r.Stats["total_lines"] = lineCount(content)
	r.Stats["total_tags"] = countOpening(anyOpenTag, content) + len(anyCloseTag.FindAllStringIndex(content, -1))
	r.Stats["has_graph_model"] = strings.Contains(content, "mxGraphModel")
	r.Stats["has_cells"] = strings.Contains(content, "mxCell")
	return r
}
