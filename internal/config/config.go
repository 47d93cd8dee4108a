// Package config loads the coral-sampler configuration from defaults, an
// optional YAML file and CORAL_SAMPLER_* environment variables.
package config

import (
	"time"

	"github.com/coral-mesh/coral-sampler/internal/constants"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// Config is the complete coral-sampler configuration.
type Config struct {
	Sampler  SamplerConfig  `yaml:"sampler"`
	Report   ReportConfig   `yaml:"report"`
	Workload WorkloadConfig `yaml:"workload"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SamplerConfig configures the sampling engine.
type SamplerConfig struct {
	FrequencyHz int    `yaml:"frequency_hz" env:"FREQUENCY_HZ"`
	MaxDepth    int    `yaml:"max_depth" env:"MAX_DEPTH"`
	MaxStacks   int    `yaml:"max_stacks" env:"MAX_STACKS"`
	Capturer    string `yaml:"capturer" env:"CAPTURER"`
	OnCPUOnly   bool   `yaml:"on_cpu_only" env:"ON_CPU_ONLY"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	Format   string        `yaml:"format" env:"REPORT_FORMAT"`
	Output   string        `yaml:"output" env:"REPORT_OUTPUT"`
	Duration time.Duration `yaml:"duration" env:"REPORT_DURATION"`
}

// WorkloadConfig configures the built-in CPU workload.
type WorkloadConfig struct {
	Workers int `yaml:"workers" env:"WORKERS"`
}

// ServerConfig configures the HTTP profiling endpoint.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

// MetricsConfig configures prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			FrequencyHz: constants.DefaultFrequencyHz,
			MaxDepth:    stack.DefaultMaxDepth,
			MaxStacks:   constants.DefaultMaxStacks,
			Capturer:    constants.DefaultCapturer,
		},
		Report: ReportConfig{
			Format:   constants.DefaultReportFormat,
			Output:   "-",
			Duration: constants.DefaultReportDuration,
		},
		Workload: WorkloadConfig{
			Workers: constants.DefaultWorkers,
		},
		Server: ServerConfig{
			ListenAddr: constants.DefaultListenAddr,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
