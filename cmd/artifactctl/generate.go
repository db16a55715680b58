package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/provider/fake"
	"github.com/devgenius/artifact-gateway/internal/runtime"
	"github.com/devgenius/artifact-gateway/internal/session"
)

type generateOptions struct {
	description     string
	descriptionFile string
	docType         string
	section         string
	refine          string
	currentFile     string
	replayFile      string
	out             string
	asJSON          bool
	stream          bool
}

func newGenerateCmd(g *globalOptions) *cobra.Command {
	o := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <kind>",
		Short: "Generate one artifact from a solution description",
		Long: `Generate one artifact. Kinds: architecture, dsl, cost, cloudformation,
cdk, documentation.

--replay serves a recorded model response from a file instead of calling the
configured provider.`,
		Example: `  artifactctl generate architecture -d "Serverless image thumbnailer"
  artifactctl generate documentation --section security --description-file solution.md
  artifactctl generate dsl --refine "add a cache" --current-file workspace.dsl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, g, o, domain.ArtifactKind(args[0]))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.description, "description", "d", "", "solution description")
	f.StringVar(&o.descriptionFile, "description-file", "", "read the solution description from a file")
	f.StringVar(&o.docType, "doc-type", "", "documentation flavour, e.g. technical")
	f.StringVar(&o.section, "section", "", "documentation section")
	f.StringVar(&o.refine, "refine", "", "change to apply to the current artifact")
	f.StringVar(&o.currentFile, "current-file", "", "artifact to refine")
	f.StringVar(&o.replayFile, "replay", "", "serve the model response from a file")
	f.StringVarP(&o.out, "out", "o", "", "write the artifact to a file")
	f.BoolVar(&o.asJSON, "json", false, "print the full result as JSON")
	f.BoolVar(&o.stream, "stream", false, "echo the response to stderr while it streams")
	return cmd
}

func runGenerate(cmd *cobra.Command, g *globalOptions, o *generateOptions, kind domain.ArtifactKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown artifact kind %q", kind)
	}
	req := pipeline.Request{
		Kind:              kind,
		Description:       o.description,
		DocumentationType: o.docType,
		Section:           o.section,
		Refinement:        o.refine,
	}
	if o.descriptionFile != "" {
		b, err := os.ReadFile(o.descriptionFile)
		if err != nil {
			return err
		}
		req.Description = string(b)
	}
	if o.currentFile != "" {
		b, err := os.ReadFile(o.currentFile)
		if err != nil {
			return err
		}
		req.Current = string(b)
	}
	if strings.TrimSpace(req.Description) == "" && req.Refinement == "" {
		return errors.New("a description is required (--description or --description-file)")
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()

	var provider domain.Provider
	if o.replayFile != "" {
		b, err := os.ReadFile(o.replayFile)
		if err != nil {
			return err
		}
		provider = fake.New(fake.Text(domain.StopReasonEndTurn, string(b)))
	} else if provider, err = runtime.NewProvider(ctx, cfg); err != nil {
		return err
	}

	store, err := runtime.OpenStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	artifacts, region, err := runtime.OpenArtifacts(cfg.Artifacts)
	if err != nil {
		return err
	}

	p := pipeline.New(runtime.NewRunner(provider, cfg, g.logger),
		pipeline.WithArtifactStore(artifacts),
		pipeline.WithConversationStore(store),
		pipeline.WithFeedbackStore(store),
		pipeline.WithModel(cfg.Provider.Model),
		pipeline.WithReasoningBudget(cfg.Provider.ReasoningBudget),
		pipeline.WithRegion(region),
		pipeline.WithLogger(g.logger),
	)

	if o.stream {
		var sent string
		req.Observer = func(buf string) {
			if strings.HasPrefix(buf, sent) {
				fmt.Fprint(cmd.ErrOrStderr(), buf[len(sent):])
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "\n--- restarted ---\n", buf)
			}
			sent = buf
		}
	}

	sess := session.NewStore().Create()
	sess.Lock()
	res, err := p.Run(ctx, sess, req)
	sess.Unlock()
	if o.stream {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return describeError(cmd, err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	for _, w := range res.Validation.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "validation warning: %s\n", w)
	}
	if res.DeployURL != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "deploy: %s\n", res.DeployURL)
	}

	if o.asJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(cmd, o.out, append(b, '\n'))
	}
	return writeOutput(cmd, o.out, []byte(ensureNewline(res.Artifact)))
}

// describeError prints validation issues before returning err.
func describeError(cmd *cobra.Command, err error) error {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		for _, issue := range pe.Issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "issue: %s\n", issue)
		}
	}
	return err
}
