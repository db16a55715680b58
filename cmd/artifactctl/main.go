// Command artifactctl generates, validates and renders solution artifacts
// from the command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/devgenius/artifact-gateway/internal/config"
	_ "github.com/devgenius/artifact-gateway/internal/provider/anthropic"
	_ "github.com/devgenius/artifact-gateway/internal/provider/gemini"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
	timeout    time.Duration

	logger *slog.Logger
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "artifactctl",
		Short: "Generate and check architecture artifacts",
		Long: `artifactctl turns a solution description into draw.io diagrams,
Structurizr DSL, cost tables, CloudFormation, CDK and documentation, and
offers the validators and renderers used by the gateway.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			g.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(g.logger)
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "path to config.yaml")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 15*time.Minute, "operation timeout")

	root.AddCommand(
		newGenerateCmd(g),
		newValidateCmd(),
		newExtractCmd(),
		newAnalyzeCmd(),
		newRenderCmd(g),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readInput reads the file named by args[0], or stdin when args is empty or
// names "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeOutput writes data to path, or to the command output when path is
// empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
