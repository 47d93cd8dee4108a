package sampler

import (
	"fmt"
)

// sampleTick is the timer callback. It captures every goroutine except the
// sampler's own and folds the stacks into the active session. A tick that
// cannot take the lock immediately is skipped rather than queued.
func (r *Registry) sampleTick() {
	if !r.mu.TryLock() {
		r.metrics.TicksSkipped.Inc()
		return
	}
	defer r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.CaptureErrors.Inc()
			r.logger.Error().
				Err(fmt.Errorf("panic: %v", rec)).
				Msg("Sampling tick panicked")
		}
	}()

	if r.profiler == nil || !r.profiler.Running() {
		return
	}
	r.metrics.Ticks.Inc()

	threads, err := r.capturer.Threads()
	if err != nil {
		r.metrics.CaptureErrors.Inc()
		r.logger.Debug().Err(err).Msg("Failed to enumerate goroutines")
		return
	}

	for _, t := range threads {
		if t.Self {
			continue
		}
		if r.onCPUOnly && !t.OnCPU() {
			continue
		}

		frames, err := r.capturer.Capture(t, r.maxDepth)
		if err != nil {
			r.metrics.CaptureErrors.Inc()
			r.logger.Debug().Err(err).Uint64("goroutine", t.ID).Msg("Failed to capture stack")
			continue
		}

		if r.profiler.Sample(frames, threadLabel(t.ID), t.ID) {
			r.metrics.Samples.Inc()
		} else {
			r.metrics.SamplesDropped.Inc()
		}
	}
}
