package validate

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// CloudFormation parses a YAML template. Intrinsic function tags such as
// !Ref and !Sub are kept as node tags and need no schema.
func CloudFormation(content string) *domain.ValidationResult {
	r := domain.NewValidationResult()
	r.Stats["total_lines"] = lineCount(content)

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		r.AddIssue("Invalid YAML: " + err.Error())
		return r
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		r.AddIssue("Template must be a YAML mapping")
		return r
	}
	top := doc.Content[0]

	resources := mappingValue(top, "Resources")
	switch {
	case resources == nil:
		r.AddIssue("Missing required section: Resources")
	case resources.Kind != yaml.MappingNode || len(resources.Content) == 0:
		r.AddIssue("Resources section must declare at least one resource")
	default:
		types, untyped := resourceTypes(resources)
		r.Stats["resource_count"] = len(resources.Content) / 2
		r.Stats["resource_types"] = types
		if untyped > 0 {
			r.AddIssue(fmt.Sprintf("%d resource(s) missing Type", untyped))
		}
	}

	if mappingValue(top, "AWSTemplateFormatVersion") == nil {
		r.AddWarning("Missing AWSTemplateFormatVersion")
	}
	r.Stats["parameter_count"] = mappingLen(mappingValue(top, "Parameters"))
	r.Stats["output_count"] = mappingLen(mappingValue(top, "Outputs"))
	return r
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func mappingLen(n *yaml.Node) int {
	if n == nil || n.Kind != yaml.MappingNode {
		return 0
	}
	return len(n.Content) / 2
}

// resourceTypes returns the distinct Type values, sorted, and the number of
// resources that declare none.
func resourceTypes(resources *yaml.Node) ([]string, int) {
	seen := map[string]bool{}
	untyped := 0
	for i := 1; i < len(resources.Content); i += 2 {
		t := mappingValue(resources.Content[i], "Type")
		if t == nil || strings.TrimSpace(t.Value) == "" {
			untyped++
			continue
		}
		seen[t.Value] = true
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, untyped
}
