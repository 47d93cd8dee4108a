// Package profile implements the profile command group.
package profile

import "github.com/spf13/cobra"

// NewProfileCmd creates the root profile command.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Collect profiles of this process",
		Long: `Collect profiles while the built-in workload runs in this process.

Examples:
  coral-sampler profile cpu --duration 10s
  coral-sampler profile cpu --format pprof --output cpu.pb.gz`,
	}

	cmd.AddCommand(NewCPUCmd())

	return cmd
}
