package domain

// ArtifactKind names a family of generated artifacts.
type ArtifactKind string

const (
	KindArchitecture   ArtifactKind = "architecture"
	KindDSL            ArtifactKind = "dsl"
	KindCost           ArtifactKind = "cost"
	KindCloudFormation ArtifactKind = "cloudformation"
	KindCDK            ArtifactKind = "cdk"
	KindDocumentation  ArtifactKind = "documentation"
)

// Kinds lists every artifact kind in display order.
func Kinds() []ArtifactKind {
	return []ArtifactKind{
		KindArchitecture,
		KindDSL,
		KindCost,
		KindCloudFormation,
		KindCDK,
		KindDocumentation,
	}
}

// Valid reports whether k is a known kind.
func (k ArtifactKind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ValidationResult is the outcome of a structural artifact check.
// Issues make the artifact invalid; warnings are advisory.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Issues   []string       `json:"issues"`
	Warnings []string       `json:"warnings"`
	Stats    map[string]any `json:"stats"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Issues:   []string{},
		Warnings: []string{},
		Stats:    map[string]any{},
	}
}

// AddIssue records a blocking problem.
func (r *ValidationResult) AddIssue(issue string) {
	r.Issues = append(r.Issues, issue)
	r.Valid = false
}

// AddWarning records an advisory problem.
func (r *ValidationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}
