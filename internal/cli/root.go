// Package cli implements the coral-sampler command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-sampler/internal/cli/helpers"
	"github.com/coral-mesh/coral-sampler/internal/cli/profile"
	"github.com/coral-mesh/coral-sampler/internal/cli/serve"
	"github.com/coral-mesh/coral-sampler/pkg/version"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coral-sampler",
		Short: "Coral sampler - in-process CPU profiling for Go programs",
		Long: `Sample the call stacks of every goroutine at a fixed frequency and
aggregate them into folded stacks, pprof profiles or JSON reports.

Configuration is read from coral-sampler.yaml (or --config) and can be
overridden with CORAL_SAMPLER_* environment variables and flags.

Examples:
  # Profile the built-in workload for 5s and render a flame graph
  coral-sampler profile cpu --duration 5s | flamegraph.pl > cpu.svg

  # Serve on-demand profiles and prometheus metrics
  coral-sampler serve --listen localhost:6061`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	helpers.AddGlobalFlags(cmd)

	cmd.AddCommand(profile.NewProfileCmd())
	cmd.AddCommand(serve.NewServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("coral-sampler version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command. Cancelling ctx ends running sessions
// early.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
