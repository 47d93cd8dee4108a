package sampler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-sampler/internal/constants"
	"github.com/coral-mesh/coral-sampler/internal/metrics"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/collector"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// Config configures a Registry.
type Config struct {
	// Logger receives session and tick diagnostics. Nil disables logging.
	Logger *zerolog.Logger

	// Capturer enumerates and captures goroutine stacks. Nil selects the
	// stackdump capturer.
	Capturer stack.Capturer

	// MaxDepth bounds the frames kept per stack. Zero selects
	// stack.DefaultMaxDepth.
	MaxDepth int

	// MaxStacks bounds distinct stack identities per session. Zero means
	// unbounded.
	MaxStacks int

	// OnCPUOnly drops goroutines that were parked when enumerated.
	OnCPUOnly bool

	// MetricsRegisterer receives the sampler instruments. Nil keeps them
	// unregistered.
	MetricsRegisterer prometheus.Registerer
}

// DefaultConfig returns the configuration used by Default.
func DefaultConfig() Config {
	return Config{
		MaxDepth:  stack.DefaultMaxDepth,
		MaxStacks: constants.DefaultMaxStacks,
	}
}

// Registry holds the process's single profiler behind a reader/writer lock.
// Starting and stopping a session and every timer tick take the write lock;
// building a report takes the read lock.
type Registry struct {
	mu       sync.RWMutex
	profiler *Profiler
	initErr  error

	capturer  stack.Capturer
	maxDepth  int
	onCPUOnly bool

	logger  zerolog.Logger
	metrics *metrics.Metrics

	warmUp sync.Once
}

// NewRegistry creates a registry with an idle profiler. A profiler that
// cannot be constructed is not fatal here; every Start on the registry
// then fails with ErrCreating.
func NewRegistry(cfg Config) *Registry {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "sampler").Logger()
	}

	r := &Registry{
		capturer:  cfg.Capturer,
		maxDepth:  cfg.MaxDepth,
		onCPUOnly: cfg.OnCPUOnly,
		logger:    logger,
		metrics:   metrics.NilMetrics(),
	}
	if r.capturer == nil {
		r.capturer = stack.NewStackDumpCapturer()
	}
	if r.maxDepth <= 0 {
		r.maxDepth = stack.DefaultMaxDepth
	}

	if cfg.MetricsRegisterer != nil {
		m, err := metrics.NewMetrics(cfg.MetricsRegisterer)
		if err != nil {
			logger.Warn().Err(err).Msg("Sampler metrics disabled")
		} else {
			r.metrics = m
		}
	}

	r.profiler, r.initErr = NewProfiler(collector.Config{MaxStacks: cfg.MaxStacks}, logger)
	if r.initErr != nil {
		logger.Error().Err(r.initErr).Msg("Failed to create profiler")
	}

	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(DefaultConfig())
})

// Default returns the process-wide registry, created on first use.
func Default() *Registry {
	return defaultRegistry()
}

// Running reports whether a session is active.
func (r *Registry) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.profiler != nil && r.profiler.Running()
}

// SampleCount returns the number of samples taken in the active session.
func (r *Registry) SampleCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.profiler == nil {
		return 0
	}
	return r.profiler.SampleCount()
}

// warmUpLocked runs the capturer once and discards the result so the
// first real tick does not pay for buffer growth. The caller holds the
// write lock.
func (r *Registry) warmUpLocked() {
	r.warmUp.Do(func() {
		threads, err := r.capturer.Threads()
		if err != nil {
			r.logger.Debug().Err(err).Msg("Capturer warm-up failed")
			return
		}
		for _, t := range threads {
			_, _ = r.capturer.Capture(t, r.maxDepth)
		}
		r.logger.Debug().Int("goroutines", len(threads)).Msg("Capturer warmed up")
	})
}
