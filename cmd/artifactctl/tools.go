package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/extract"
	"github.com/devgenius/artifact-gateway/internal/render"
	"github.com/devgenius/artifact-gateway/internal/runtime"
	"github.com/devgenius/artifact-gateway/internal/validate"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <kind> [file]",
		Short: "Run the structural check for an artifact kind",
		Long: `Validate reads an artifact from a file or stdin and prints the validation
result as JSON. DSL input is cleaned first. The command fails when the
artifact has issues.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.ArtifactKind(args[0])
			check, ok := validate.For(kind)
			if !ok {
				return fmt.Errorf("unknown artifact kind %q", kind)
			}
			content, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}
			if kind == domain.KindDSL {
				content = validate.CleanDSL(content)
			}
			res := check(content)
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%s artifact is invalid: %d issue(s)", kind, len(res.Issues))
			}
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var tag string
	var first bool
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Print the fenced code blocks of a markdown document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			blocks, err := extract.All(text, tag)
			if err != nil {
				return err
			}
			if first {
				blocks = blocks[:1]
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), ensureNewline(strings.Join(blocks, "\n\n")))
			return err
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "language tag to match, empty matches any")
	cmd.Flags().BoolVar(&first, "first", false, "print only the first block")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarise a diagram or a DSL workspace",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "diagram [file]",
			Short: "List the cloud services and connections of a draw.io diagram",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				xml, err := readInput(cmd, args)
				if err != nil {
					return err
				}
				return printJSON(cmd, validate.AnalyzeDiagram(xml))
			},
		},
		&cobra.Command{
			Use:   "dsl [file]",
			Short: "Explain the structure of a Structurizr workspace",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dsl, err := readInput(cmd, args)
				if err != nil {
					return err
				}
				return printJSON(cmd, validate.ExplainDSL(dsl))
			},
		},
	)
	return cmd
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	var out, format string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render diagrams for viewing",
	}
	drawio := &cobra.Command{
		Use:   "drawio [file]",
		Short: "Wrap draw.io XML in an HTML viewer page",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xml, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			page, err := render.DrawIOHTML(strings.TrimSpace(xml))
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, []byte(page))
		},
	}
	structurizr := &cobra.Command{
		Use:   "structurizr [file]",
		Short: "Render a Structurizr workspace through Kroki",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsl, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			kroki, err := runtime.NewKroki(cfg.Render, g.logger)
			if err != nil {
				return err
			}
			if kroki == nil {
				return fmt.Errorf("rendering is disabled: render.kroki_url is empty")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			d, err := kroki.Render(ctx, dsl, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, d.Data)
		},
	}
	structurizr.Flags().StringVarP(&format, "format", "f", "svg", "output format: "+strings.Join(render.Formats, ", "))

	for _, c := range []*cobra.Command{drawio, structurizr} {
		c.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
		cmd.AddCommand(c)
	}
	return cmd
}
