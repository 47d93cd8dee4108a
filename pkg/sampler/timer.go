package sampler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxFrequencyHz is the highest accepted sampling frequency; it keeps the
// interval at one microsecond or more.
const MaxFrequencyHz = 1_000_000

// intervalFor converts a frequency in Hz into the sampling interval. It
// rejects frequencies outside [1, MaxFrequencyHz] before dividing.
func intervalFor(frequencyHz int) (time.Duration, error) {
	if frequencyHz <= 0 || frequencyHz > MaxFrequencyHz {
		return 0, fmt.Errorf("%w: %d Hz", ErrInvalidFrequency, frequencyHz)
	}
	return time.Duration(1_000_000/frequencyHz) * time.Microsecond, nil
}

// timer runs tick on a dedicated goroutine, pinned to its own OS thread,
// once per interval until stopped.
type timer struct {
	interval time.Duration
	tick     func()
	logger   zerolog.Logger

	cancel   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	releaseErr error
}

// newTimer validates the frequency and starts the tick loop.
func newTimer(frequencyHz int, tick func(), logger zerolog.Logger) (*timer, error) {
	interval, err := intervalFor(frequencyHz)
	if err != nil {
		return nil, err
	}

	t := &timer{
		interval: interval,
		tick:     tick,
		logger:   logger.With().Str("component", "sampler-timer").Logger(),
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()

	return t, nil
}

func (t *timer) run() {
	defer close(t.done)

	thread, err := registerSamplerThread()
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to register sampler thread")
	} else {
		t.logger.Debug().
			Int("tid", thread.tid).
			Dur("interval", t.interval).
			Msg("Sampler thread registered")
	}
	defer func() { t.releaseErr = thread.release() }()

	wait := time.NewTimer(t.interval)
	defer wait.Stop()

	for {
		select {
		case <-t.cancel:
			return
		default:
		}

		select {
		case <-t.cancel:
			return
		case <-wait.C:
		}

		t.tick()
		wait.Reset(t.interval)
	}
}

// stop requests cancellation. It is safe to call any number of times from
// any goroutine; a tick already in progress still completes.
func (t *timer) stop() {
	t.stopOnce.Do(func() { close(t.cancel) })
}

// wait blocks until the loop has exited and returns the error from
// releasing the sampler thread registration.
func (t *timer) wait() error {
	<-t.done
	return t.releaseErr
}
