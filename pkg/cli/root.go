// Package cli implements the secagent command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

const defaultHost = "http://localhost:8000"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if getOutputFormat(rootCmd) == OutputJSON {
			errObj := map[string]any{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				if apiErr.Query != "" {
					errObj["query"] = apiErr.Query
				}
				if apiErr.Statement != "" {
					errObj["statement"] = apiErr.Statement
				}
			}
			_, _ = printStructured(os.Stdout, OutputJSON, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globals holds the resolved persistent flags.
type globals struct {
	host      string
	output    string
	profile   string
	outputDir string
	verbose   bool
	client    *Client
}

func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "secagent",
		Short:         "Security log analysis agent CLI",
		Long:          "Command-line client for the security agent API, plus local database tooling.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			p, err := cfg.ActiveProfile(g.profile)
			if err != nil {
				return err
			}

			// Precedence: flag > env > profile > default.
			flags := cmd.Root().PersistentFlags()
			if !flags.Changed("host") {
				if v := os.Getenv("SECAGENT_HOST"); v != "" {
					g.host = v
				} else if p.Host != "" {
					g.host = p.Host
				}
			}
			if !flags.Changed("output") {
				if v := os.Getenv("SECAGENT_OUTPUT"); v != "" {
					g.output = v
				} else if p.Output != "" {
					g.output = p.Output
				}
				_ = flags.Set("output", g.output)
			}
			g.outputDir = p.OutputDir
			if err := validateOutputFormat(g.output); err != nil {
				return err
			}
			g.client = NewClient(g.host)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.host, "host", defaultHost, "API host URL")
	pf.StringVarP(&g.output, "output", "o", OutputText, "Output format (text, json, yaml)")
	pf.StringVarP(&g.profile, "profile", "p", "", "Config profile to use")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(g),
		newAskCmd(g),
		newReportCmd(g),
		newSeedCmd(g),
		newVersionCmd(),
	)
	return rootCmd
}
