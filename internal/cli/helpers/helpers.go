// Package helpers holds flag and setup code shared by coral-sampler
// commands.
package helpers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-sampler/internal/config"
	"github.com/coral-mesh/coral-sampler/internal/logging"
	"github.com/coral-mesh/coral-sampler/pkg/sampler"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// Global flag names.
const (
	FlagConfig   = "config"
	FlagLogLevel = "log-level"
)

// ReportFormats lists the formats every report-producing command accepts.
var ReportFormats = []string{report.FormatFolded, report.FormatPprof, report.FormatJSON}

// AddGlobalFlags adds the persistent flags understood by every command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(FlagConfig, "", "Config file (default: ./coral-sampler.yaml if present)")
	cmd.PersistentFlags().String(FlagLogLevel, "", "Log level: trace, debug, info, warn, error (overrides config)")
}

// AddFormatFlag adds a --format/-o flag restricted to ReportFormats.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat string) {
	description := fmt.Sprintf("Output format (%s)", strings.Join(ReportFormats, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", defaultFormat, description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return ReportFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// ValidateFormat checks that format is one of ReportFormats.
func ValidateFormat(format string) error {
	for _, f := range ReportFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(ReportFormats, ", "))
}

// LoadConfig loads the configuration named by --config and applies
// --log-level.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString(FlagLogLevel); level != "" {
		if !logging.ValidLevel(level) {
			return nil, fmt.Errorf("unknown log level %q", level)
		}
		cfg.Logging.Level = level
	}

	return cfg, nil
}

// NewLogger builds the command logger. Logs go to the command's error
// stream so reports written to stdout stay clean.
func NewLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Pretty = cfg.Logging.Pretty
	lc.Output = cmd.ErrOrStderr()
	return logging.New(lc)
}

// OpenOutput opens path for writing a report. "-" and "" select the
// command's standard output; the returned closer is nil in that case.
func OpenOutput(cmd *cobra.Command, path string) (io.Writer, io.Closer, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), nil, nil
	}

	//nolint:gosec // G304: Output path is chosen by the operator.
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

// NewRegistry builds a sampler registry from cfg. Metrics are registered
// with promReg when it is non-nil and metrics are enabled.
func NewRegistry(cfg *config.Config, logger zerolog.Logger, promReg prometheus.Registerer) (*sampler.Registry, error) {
	capturer, err := stack.New(cfg.Sampler.Capturer)
	if err != nil {
		return nil, err
	}

	samplerCfg := sampler.Config{
		Logger:    &logger,
		Capturer:  capturer,
		MaxDepth:  cfg.Sampler.MaxDepth,
		MaxStacks: cfg.Sampler.MaxStacks,
		OnCPUOnly: cfg.Sampler.OnCPUOnly,
	}
	if cfg.Metrics.Enabled && promReg != nil {
		samplerCfg.MetricsRegisterer = promReg
	}

	return sampler.NewRegistry(samplerCfg), nil
}
