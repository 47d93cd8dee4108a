package sampler

import (
	"errors"
	"sync"
	"time"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
)

// Guard is the scope of one profiling session. Close ends the session and
// must run on every exit path, so it is normally deferred right after a
// successful Start:
//
//	g, err := sampler.StartProfiling(99)
//	if err != nil {
//		return err
//	}
//	defer g.Close()
type Guard struct {
	registry    *Registry
	timer       *timer
	sessionID   string
	frequencyHz int
	startedAt   time.Time

	closeOnce sync.Once
}

// StartProfiling starts a session on the default registry.
func StartProfiling(frequencyHz int) (*Guard, error) {
	return Start(Default(), frequencyHz)
}

// Start starts a session on reg sampling at frequencyHz. It fails with
// ErrInvalidFrequency, ErrCreating or ErrAlreadyRunning and leaves any
// active session untouched.
func Start(reg *Registry, frequencyHz int) (*Guard, error) {
	if _, err := intervalFor(frequencyHz); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	if reg.initErr != nil {
		reg.mu.Unlock()
		return nil, reg.initErr
	}

	reg.warmUpLocked()

	if err := reg.profiler.Start(frequencyHz); err != nil {
		reg.mu.Unlock()
		return nil, err
	}
	g := &Guard{
		registry:    reg,
		sessionID:   reg.profiler.SessionID(),
		frequencyHz: frequencyHz,
		startedAt:   time.Now(),
	}
	reg.metrics.SessionsStarted.Inc()
	reg.metrics.Running.Set(1)
	reg.mu.Unlock()

	t, err := newTimer(frequencyHz, reg.sampleTick, reg.logger)
	if err != nil {
		g.stopProfiler()
		return nil, err
	}
	g.timer = t

	return g, nil
}

// SessionID returns the id of the guarded session.
func (g *Guard) SessionID() string {
	return g.sessionID
}

// Report returns a builder bound to a snapshot of the session so far. After
// Close the snapshot is empty.
func (g *Guard) Report() *report.Builder {
	reg := g.registry

	reg.mu.RLock()
	var snap report.Snapshot
	if reg.profiler.Running() && reg.profiler.SessionID() == g.sessionID {
		snap = reg.profiler.Snapshot()
	}
	reg.mu.RUnlock()

	if snap.SessionID == "" {
		snap = report.Snapshot{
			SessionID:   g.sessionID,
			FrequencyHz: g.frequencyHz,
			StartedAt:   g.startedAt,
			TakenAt:     time.Now(),
		}
	}

	return report.NewBuilder(snap).WithLogger(reg.logger)
}

// Close stops the timer, releases the sampler thread and stops the
// profiler. Failures are logged rather than returned. Only the first call
// has an effect.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		if g.timer != nil {
			g.timer.stop()
			if err := g.timer.wait(); err != nil {
				g.registry.logger.Warn().Err(err).Msg("Failed to release sampler thread")
			}
		}
		g.stopProfiler()
	})
}

func (g *Guard) stopProfiler() {
	reg := g.registry

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if err := reg.profiler.Stop(); err != nil {
		level := reg.logger.Error()
		if errors.Is(err, ErrNotRunning) {
			level = reg.logger.Warn()
		}
		level.Err(err).Str("session_id", g.sessionID).Msg("Failed to stop profiler")
	}
	reg.metrics.Running.Set(0)
}
