package config

import (
	"fmt"
	"net"

	"github.com/hashicorp/go-multierror"

	"github.com/coral-mesh/coral-sampler/internal/constants"
	"github.com/coral-mesh/coral-sampler/internal/logging"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Sampler.FrequencyHz <= 0 || c.Sampler.FrequencyHz > constants.MaxConfigFrequencyHz {
		result = multierror.Append(result, fmt.Errorf(
			"sampler.frequency_hz must be between 1 and %d, got %d",
			constants.MaxConfigFrequencyHz, c.Sampler.FrequencyHz))
	}
	if c.Sampler.MaxDepth <= 0 {
		result = multierror.Append(result, fmt.Errorf("sampler.max_depth must be positive, got %d", c.Sampler.MaxDepth))
	}
	if c.Sampler.MaxStacks < 0 {
		result = multierror.Append(result, fmt.Errorf("sampler.max_stacks must not be negative, got %d", c.Sampler.MaxStacks))
	}
	if _, err := stack.New(c.Sampler.Capturer); err != nil {
		result = multierror.Append(result, fmt.Errorf("sampler.capturer: %w", err))
	}

	switch c.Report.Format {
	case report.FormatFolded, report.FormatPprof, report.FormatJSON:
	default:
		result = multierror.Append(result, fmt.Errorf("report.format: %w: %q", report.ErrUnknownFormat, c.Report.Format))
	}
	if c.Report.Output == "" {
		result = multierror.Append(result, fmt.Errorf("report.output must not be empty"))
	}
	if c.Report.Duration <= 0 || c.Report.Duration > constants.MaxReportDuration {
		result = multierror.Append(result, fmt.Errorf(
			"report.duration must be between 0 and %s, got %s",
			constants.MaxReportDuration, c.Report.Duration))
	}

	if c.Workload.Workers < 0 {
		result = multierror.Append(result, fmt.Errorf("workload.workers must not be negative, got %d", c.Workload.Workers))
	}

	if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
		result = multierror.Append(result, fmt.Errorf("server.listen_addr: %w", err))
	}

	if !logging.ValidLevel(c.Logging.Level) {
		result = multierror.Append(result, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	return result.ErrorOrNil()
}
