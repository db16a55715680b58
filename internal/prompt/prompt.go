// Package prompt renders the prompt sent for each artifact kind. Templates
// are embedded at build time.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"slices"
	"text/template"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompt").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"))

// Sections are the documentation sections that have their own prompt.
var Sections = []string{"architecture", "deployment", "security", "operations", "troubleshooting"}

// ValidSection reports whether s names a documentation section.
func ValidSection(s string) bool {
	return slices.Contains(Sections, s)
}

// Data is the input to every template. Fields a template does not use are
// ignored.
type Data struct {
	Description       string
	DocumentationType string
	// Refinement is the requested change for refine templates.
	Refinement string
	// Current is the artifact being refined.
	Current string
	// Context carries earlier assistant output, used by the cost prompt.
	Context string
}

// Name selects the template for kind. Refinement is only available for
// architecture, dsl and cost. A non-empty section selects a documentation
// section prompt.
func Name(kind domain.ArtifactKind, refine bool, section string) (string, error) {
	if kind == domain.KindDocumentation && section != "" {
		if !ValidSection(section) {
			return "", fmt.Errorf("unknown documentation section %q (available: %v)", section, Sections)
		}
		return "section_" + section + ".tmpl", nil
	}
	if !kind.Valid() {
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}
	if refine {
		switch kind {
		case domain.KindArchitecture, domain.KindDSL, domain.KindCost:
			return string(kind) + "_refine.tmpl", nil
		default:
			return "", fmt.Errorf("%s does not support refinement", kind)
		}
	}
	return string(kind) + ".tmpl", nil
}

// Render executes the named template.
func Render(name string, data Data) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
