// Package constants defines shared configuration defaults.
package constants

import "time"

const (
	// ConfigFile is the default configuration file name.
	ConfigFile = "coral-sampler.yaml"

	// EnvPrefix prefixes every environment variable the sampler reads.
	EnvPrefix = "CORAL_SAMPLER_"
)

// Sampling defaults.
const (
	// DefaultFrequencyHz is the default sampling frequency.
	DefaultFrequencyHz = 99

	// MaxConfigFrequencyHz caps the frequency accepted from configuration.
	MaxConfigFrequencyHz = 1000

	// DefaultMaxStacks bounds distinct stacks per session.
	DefaultMaxStacks = 10000

	// DefaultCapturer selects the stack capturer.
	DefaultCapturer = "stackdump"
)

// Report defaults.
const (
	DefaultReportFormat   = "folded"
	DefaultReportDuration = 10 * time.Second
	MaxReportDuration     = 5 * time.Minute

	// DefaultSymbolCacheSize is the number of resolved program counters kept
	// by the report builder.
	DefaultSymbolCacheSize = 4096
)

// Server and workload defaults.
const (
	DefaultListenAddr = "localhost:6061"
	DefaultWorkers    = 2
)
