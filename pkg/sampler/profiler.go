package sampler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/collector"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// Profiler is the Idle/Running state machine that owns one collector per
// session. It is not safe for concurrent use; a Registry serializes access.
type Profiler struct {
	newCollector func() (*collector.Collector, error)
	collector    *collector.Collector
	logger       zerolog.Logger

	running     bool
	sampleCount uint64
	sessionID   string
	frequencyHz int
	startedAt   time.Time
}

// NewProfiler creates an idle profiler with an empty collector.
func NewProfiler(cfg collector.Config, logger zerolog.Logger) (*Profiler, error) {
	p := &Profiler{
		newCollector: func() (*collector.Collector, error) { return collector.New(cfg) },
		logger:       logger,
	}

	c, err := p.newCollector()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreating, err)
	}
	p.collector = c

	return p, nil
}

// Start moves the profiler from Idle to Running. The collector left by the
// previous Stop (or construction) receives the session's samples.
func (p *Profiler) Start(frequencyHz int) error {
	if p.running {
		return ErrAlreadyRunning
	}

	if p.collector == nil {
		c, err := p.newCollector()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCreating, err)
		}
		p.collector = c
	}

	p.running = true
	p.sampleCount = 0
	p.sessionID = uuid.NewString()
	p.frequencyHz = frequencyHz
	p.startedAt = time.Now()

	p.logger.Info().
		Str("session_id", p.sessionID).
		Int("frequency_hz", frequencyHz).
		Msg("Starting CPU profiler")

	return nil
}

// Stop moves the profiler from Running to Idle and replaces the collector
// with an empty one. The profiler is Idle afterwards even when the new
// collector cannot be allocated; the next Start retries the allocation.
func (p *Profiler) Stop() error {
	if !p.running {
		return ErrNotRunning
	}

	p.logger.Info().
		Str("session_id", p.sessionID).
		Uint64("samples", p.sampleCount).
		Int("unique_stacks", p.collector.Len()).
		Dur("elapsed", time.Since(p.startedAt)).
		Msg("Stopping CPU profiler")

	p.running = false
	p.sampleCount = 0
	p.sessionID = ""
	p.frequencyHz = 0
	p.startedAt = time.Time{}
	p.collector = nil

	c, err := p.newCollector()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreating, err)
	}
	p.collector = c

	return nil
}

// Sample folds one captured stack into the session with weight 1. It does
// nothing while idle. The result reports whether the collector accepted the
// sample; a refusal is not an error for the caller.
func (p *Profiler) Sample(frames []stack.Frame, label string, threadID uint64) bool {
	if !p.running || p.collector == nil {
		return false
	}

	p.sampleCount++
	err := p.collector.Add(collector.Sample{
		Frames:      frames,
		ThreadLabel: label,
		ThreadID:    threadID,
	}, 1)

	return err == nil
}

// Running reports whether a session is active.
func (p *Profiler) Running() bool {
	return p.running
}

// SampleCount returns the number of samples submitted in this session,
// including ones the collector refused.
func (p *Profiler) SampleCount() uint64 {
	return p.sampleCount
}

// SessionID returns the active session id, or "" while idle.
func (p *Profiler) SessionID() string {
	return p.sessionID
}

// TotalWeight returns the collector's accumulated weight.
func (p *Profiler) TotalWeight() uint64 {
	if p.collector == nil {
		return 0
	}
	return p.collector.TotalWeight()
}

// Snapshot copies the session's aggregation for report building.
func (p *Profiler) Snapshot() report.Snapshot {
	snap := report.Snapshot{
		SessionID:   p.sessionID,
		FrequencyHz: p.frequencyHz,
		StartedAt:   p.startedAt,
		TakenAt:     time.Now(),
		SampleCount: p.sampleCount,
	}
	if p.collector != nil {
		snap.Entries = p.collector.Snapshot()
	}
	return snap
}
