package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-sampler/internal/cli/helpers"
	"github.com/coral-mesh/coral-sampler/internal/config"
	"github.com/coral-mesh/coral-sampler/internal/constants"
	cerrors "github.com/coral-mesh/coral-sampler/internal/errors"
	"github.com/coral-mesh/coral-sampler/internal/workload"
	"github.com/coral-mesh/coral-sampler/pkg/sampler"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
)

type cpuOptions struct {
	duration    time.Duration
	frequencyHz int
	workers     int
	format      string
	output      string
	capturer    string
	onCPUOnly   bool
	top         int
}

// apply copies the flags the user set over the loaded configuration.
func (o *cpuOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("duration") {
		cfg.Report.Duration = o.duration
	}
	if flags.Changed("frequency") {
		cfg.Sampler.FrequencyHz = o.frequencyHz
	}
	if flags.Changed("workers") {
		cfg.Workload.Workers = o.workers
	}
	if flags.Changed("format") {
		cfg.Report.Format = o.format
	}
	if flags.Changed("output") {
		cfg.Report.Output = o.output
	}
	if flags.Changed("capturer") {
		cfg.Sampler.Capturer = o.capturer
	}
	if flags.Changed("on-cpu-only") {
		cfg.Sampler.OnCPUOnly = o.onCPUOnly
	}
}

// NewCPUCmd creates the cpu profiling command.
func NewCPUCmd() *cobra.Command {
	var opts cpuOptions

	cmd := &cobra.Command{
		Use:   "cpu",
		Short: "Sample goroutine stacks while the built-in workload runs",
		Long: `Run the built-in CPU workload (prime counting and hash chaining) and
sample every goroutine at the requested frequency for the requested duration.

Folded output (default) is ready for flamegraph.pl; pprof output can be opened
with 'go tool pprof'.

Examples:
  # 5s at 99Hz, folded stacks on stdout
  coral-sampler profile cpu --duration 5s

  # pprof profile with only running goroutines
  coral-sampler profile cpu --format pprof --output cpu.pb.gz --on-cpu-only

  # Show the ten hottest functions alongside the folded output
  coral-sampler profile cpu --top 10 > cpu.folded

  # Resolve frames from raw program counters instead of the stack dump
  coral-sampler profile cpu --capturer goroutineprofile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("format") {
				if err := helpers.ValidateFormat(opts.format); err != nil {
					return err
				}
			}

			cfg, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runCPU(cmd, cfg, opts.top)
		},
	}

	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", constants.DefaultReportDuration, "Profiling duration (max: 5m)")
	cmd.Flags().IntVar(&opts.frequencyHz, "frequency", constants.DefaultFrequencyHz, "Sampling frequency in Hz (max: 1000Hz)")
	cmd.Flags().IntVar(&opts.workers, "workers", constants.DefaultWorkers, "Workload goroutines (0 profiles an idle process)")
	helpers.AddFormatFlag(cmd, &opts.format, constants.DefaultReportFormat)
	cmd.Flags().StringVar(&opts.output, "output", "-", "Output file ('-' for stdout)")
	cmd.Flags().StringVar(&opts.capturer, "capturer", constants.DefaultCapturer, "Stack capturer: stackdump, goroutineprofile")
	cmd.Flags().BoolVar(&opts.onCPUOnly, "on-cpu-only", false, "Only record goroutines that were running or runnable")
	cmd.Flags().IntVar(&opts.top, "top", 0, "Print the N hottest functions to stderr")

	return cmd
}

func runCPU(cmd *cobra.Command, cfg *config.Config, top int) error {
	logger := helpers.NewLogger(cmd, cfg)

	reg, err := helpers.NewRegistry(cfg, logger, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Report.Duration)
	defer cancel()

	g, err := sampler.Start(reg, cfg.Sampler.FrequencyHz)
	if err != nil {
		return fmt.Errorf("failed to start profiler: %w", err)
	}
	defer g.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Profiling CPU (%s at %dHz, %d workers)...\n",
		cfg.Report.Duration, cfg.Sampler.FrequencyHz, cfg.Workload.Workers)

	if cfg.Workload.Workers > 0 {
		if _, err := workload.Run(ctx, workload.Config{Workers: cfg.Workload.Workers, Logger: logger}); err != nil {
			return fmt.Errorf("workload failed: %w", err)
		}
	} else {
		<-ctx.Done()
	}

	builder := g.Report().WithLogger(logger)
	g.Close()

	rep, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	if top > 0 {
		renderTop(cmd.ErrOrStderr(), rep, top)
	}

	return writeReport(cmd, cfg, rep, logger)
}

func writeReport(cmd *cobra.Command, cfg *config.Config, rep *report.Report, logger zerolog.Logger) error {
	w, closer, err := helpers.OpenOutput(cmd, cfg.Report.Output)
	if err != nil {
		return err
	}
	defer cerrors.DeferClose(logger, closer, "failed to close report output")

	fmt.Fprintf(cmd.ErrOrStderr(), "Total samples: %d\n", rep.SampleCount)
	fmt.Fprintf(cmd.ErrOrStderr(), "Unique stacks: %d\n", len(rep.Stacks))
	if rep.Process != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "CPU time: %s, OS threads: %d\n", rep.Process.CPUTotal(), rep.Process.OSThreads)
	}

	return rep.Write(w, cfg.Report.Format)
}
