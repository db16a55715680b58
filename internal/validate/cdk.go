package validate

import (
	"regexp"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

var (
	cdkImport     = regexp.MustCompile(`(?m)^\s*import\s.*['"](aws-cdk-lib|@aws-cdk/[\w-]+)(/[\w-]+)*['"]`)
	constructsImp = regexp.MustCompile(`['"]constructs['"]`)
	constructNew  = regexp.MustCompile(`\bnew\s+[\w.]+\(`)
)

// CDK checks a TypeScript CDK app or stack.
func CDK(content string) *domain.ValidationResult {
	r := domain.NewValidationResult()
	if strings.TrimSpace(content) == "" {
		r.AddIssue("CDK code is empty")
		return r
	}

	checkBraces(r, content)
	if !cdkImport.MatchString(content) {
		r.AddIssue("No aws-cdk-lib import found")
	}
	if !constructsImp.MatchString(content) {
		r.AddWarning("No constructs import found")
	}

	r.Stats["total_lines"] = lineCount(content)
	r.Stats["construct_count"] = len(constructNew.FindAllStringIndex(content, -1))
	return r
}
