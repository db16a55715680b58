package pipeline

import (
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/validate"
)

// Spec parameterises the generic pipeline for one artifact kind.
type Spec struct {
	Kind domain.ArtifactKind
	// Tags are the code fence info strings tried in order. Empty means the
	// whole response is the artifact.
	Tags []string
	// JoinBlocks concatenates every block of the matching tag instead of
	// keeping the first.
	JoinBlocks bool
	Reasoning  bool
	// ContentType names stored artifacts, e.g. "architecture-<ts>.md".
	ContentType string
	// UseCase labels feedback slots.
	UseCase string
	// InteractionType heads the transcript entry.
	InteractionType string
	// Marker replaces the response in the per-kind thread. Empty keeps the
	// response.
	Marker string

	Normalize func(string) string
	Clean     func(string) string
	Validate  validate.Func
}

var specs = map[domain.ArtifactKind]Spec{
	domain.KindArchitecture: {
		Kind:            domain.KindArchitecture,
		Tags:            []string{"xml"},
		Reasoning:       true,
		ContentType:     "architecture",
		UseCase:         "generate_architecture",
		InteractionType: "Solution Architecture",
		Marker:          "XML",
		Validate:        validate.DiagramXML,
	},
	domain.KindDSL: {
		Kind:            domain.KindDSL,
		Tags:            []string{"dsl", "structurizr"},
		Reasoning:       true,
		ContentType:     "dsl",
		UseCase:         "generate_dsl",
		InteractionType: "DSL Diagram",
		Marker:          "DSL",
		Clean:           validate.CleanDSL,
		Validate:        validate.DSL,
	},
	domain.KindCost: {
		Kind:            domain.KindCost,
		ContentType:     "cost",
		UseCase:         "generate_cost",
		InteractionType: "Cost Analysis",
		Normalize:       normalizeCurrency,
		Validate:        validate.CostTable,
	},
	domain.KindCloudFormation: {
		Kind:            domain.KindCloudFormation,
		Tags:            []string{"yaml", "yml"},
		ContentType:     "cfn",
		UseCase:         "generate_cfn",
		InteractionType: "CloudFormation Template",
		Validate:        validate.CloudFormation,
	},
	domain.KindCDK: {
		Kind:            domain.KindCDK,
		Tags:            []string{"typescript", "ts"},
		JoinBlocks:      true,
		ContentType:     "cdk",
		UseCase:         "generate_cdk",
		InteractionType: "CDK Template",
		Validate:        validate.CDK,
	},
	domain.KindDocumentation: {
		Kind:            domain.KindDocumentation,
		ContentType:     "documentation",
		UseCase:         "generate_documentation",
		InteractionType: "Technical Documentation",
		Validate:        validate.Documentation,
	},
}

// SpecFor returns the built-in spec for kind.
func SpecFor(kind domain.ArtifactKind) (Spec, bool) {
	s, ok := specs[kind]
	return s, ok
}

// forSection narrows the documentation spec to one section.
func (s Spec) forSection(section string) Spec {
	if section == "" {
		return s
	}
	s.ContentType = s.ContentType + "_" + section
	s.UseCase = s.UseCase + "_" + section
	s.InteractionType = s.InteractionType + ": " + strings.ToUpper(section[:1]) + section[1:]
	return s
}

func normalizeCurrency(s string) string {
	return strings.ReplaceAll(s, "$", "USD ")
}
