package sampler

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-sampler/internal/testutil"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

func TestStart_InvalidFrequency(t *testing.T) {
	fake := newFakeCapturer()
	reg := newTestRegistry(t, fake)

	for _, hz := range []int{0, -1, MaxFrequencyHz + 1} {
		g, err := Start(reg, hz)
		require.ErrorIs(t, err, ErrInvalidFrequency)
		assert.Nil(t, g)
	}
	assert.False(t, reg.Running())
	assert.Zero(t, fake.threadsCalls.Load(), "validation happens before warm-up")
}

func TestStart_Creating(t *testing.T) {
	reg := NewRegistry(Config{MaxStacks: -1, Capturer: newFakeCapturer()})

	g, err := Start(reg, 100)
	require.ErrorIs(t, err, ErrCreating)
	assert.Nil(t, g)
	assert.False(t, reg.Running())
}

func TestStart_AlreadyRunning(t *testing.T) {
	reg := newTestRegistry(t, newFakeCapturer())

	g, err := Start(reg, 200)
	require.NoError(t, err)

	second, err := Start(reg, 200)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, second)
	assert.True(t, reg.Running(), "a refused start must not stop the active session")

	g.Close()
	assert.False(t, reg.Running())

	third, err := Start(reg, 200)
	require.NoError(t, err)
	third.Close()
}

func TestGuard_CloseIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t, newFakeCapturer())

	g, err := Start(reg, 200)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Close()
		}()
	}
	wg.Wait()

	assert.NotPanics(t, g.Close)
	assert.False(t, reg.Running())
}

func TestGuard_PanicInScopeStopsProfiler(t *testing.T) {
	reg := newTestRegistry(t, newFakeCapturer())

	func() {
		defer func() {
			assert.Equal(t, "boom", recover())
		}()

		g, err := Start(reg, 500)
		require.NoError(t, err)
		defer g.Close()

		panic("boom")
	}()

	assert.False(t, reg.Running())

	g, err := Start(reg, 500)
	require.NoError(t, err)
	g.Close()
}

func TestGuard_Report(t *testing.T) {
	fake := newFakeCapturer()
	reg := newTestRegistry(t, fake)

	g, err := Start(reg, 1000)
	require.NoError(t, err)
	defer g.Close()

	require.Eventually(t, func() bool { return reg.SampleCount() >= 30 }, 5*time.Second, time.Millisecond)

	r, err := g.Report().WithProcessStats(false).Build()
	require.NoError(t, err)

	assert.Equal(t, g.SessionID(), r.SessionID)
	assert.Equal(t, 1000, r.FrequencyHz)
	assert.GreaterOrEqual(t, r.SampleCount, uint64(30))

	labels := make(map[string]bool)
	for _, s := range r.Stacks {
		labels[s.ThreadLabel] = true
		for _, f := range s.Frames {
			assert.NotEqual(t, "sampler.tick", f.Function, "the sampler's own goroutine is never recorded")
		}
	}
	assert.Equal(t, map[string]bool{"Thread:1": true, "Thread:2": true, "Thread:3": true}, labels)

	// Every tick records each of the three non-self goroutines once.
	weight, ticks := weightAndTicks(reg)
	assert.Positive(t, ticks)
	assert.Equal(t, 3*ticks, weight)
}

func weightAndTicks(reg *Registry) (uint64, uint64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.profiler.TotalWeight(), uint64(promtestutil.ToFloat64(reg.metrics.Ticks))
}

func TestGuard_ReportAfterClose(t *testing.T) {
	reg := newTestRegistry(t, newFakeCapturer())

	g, err := Start(reg, 1000)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return reg.SampleCount() > 0 }, 5*time.Second, time.Millisecond)
	g.Close()

	r, err := g.Report().WithProcessStats(false).Build()
	require.NoError(t, err)
	assert.Equal(t, g.SessionID(), r.SessionID)
	assert.Empty(t, r.Stacks)
	assert.Zero(t, reg.SampleCount())
}

func TestGuard_Metrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	logger := testutil.NewTestLogger(t)
	reg := NewRegistry(Config{
		Logger:            &logger,
		Capturer:          newFakeCapturer(),
		MetricsRegisterer: promReg,
	})

	g, err := Start(reg, 1000)
	require.NoError(t, err)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(reg.metrics.Running))
	g.Close()

	assert.Equal(t, float64(0), promtestutil.ToFloat64(reg.metrics.Running))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(reg.metrics.SessionsStarted))

	// A second registry on the same prometheus registry still works with
	// unregistered instruments.
	other := NewRegistry(Config{Capturer: newFakeCapturer(), MetricsRegisterer: promReg})
	g, err = Start(other, 100)
	require.NoError(t, err)
	g.Close()
}

//go:noinline
func spin(stop <-chan struct{}) int {
	n := 0
	for {
		select {
		case <-stop:
			return n
		default:
		}
		for i := 0; i < 1000; i++ {
			n += i * i
		}
	}
}

func TestProfiling_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end sampling in short mode")
	}

	for _, kind := range []string{stack.KindStackDump, stack.KindGoroutineProfile} {
		t.Run(kind, func(t *testing.T) {
			capturer, err := stack.New(kind)
			require.NoError(t, err)
			logger := testutil.NewTestLogger(t)
			reg := NewRegistry(Config{Logger: &logger, Capturer: capturer})

			stop := make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer close(done)
				spin(stop)
			}()

			g, err := Start(reg, 100)
			require.NoError(t, err)
			require.Eventually(t, func() bool { return reg.SampleCount() >= 20 }, 10*time.Second, 10*time.Millisecond)

			b := g.Report().WithLogger(logger)
			g.Close()
			close(stop)
			<-done

			r, err := b.Build()
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, r.Write(&out, report.FormatFolded))
			folded := out.String()

			assert.Contains(t, folded, "sampler.spin")
			assert.NotContains(t, folded, "sampleTick")
			for _, line := range strings.Split(strings.TrimSpace(folded), "\n") {
				assert.True(t, strings.HasPrefix(line, "Thread:"), line)
			}
		})
	}
}

func TestStartProfiling_DefaultRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end sampling in short mode")
	}

	reg := Default()
	_, ticksBefore := weightAndTicks(reg)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		spin(stop)
	}()
	defer func() {
		close(stop)
		<-done
	}()

	g, err := StartProfiling(100)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ticks := weightAndTicks(reg)
		return ticks-ticksBefore >= 5
	}, 10*time.Second, 10*time.Millisecond)

	// The spinning goroutine is live on every tick.
	weight, ticks := weightAndTicks(reg)
	assert.GreaterOrEqual(t, weight, ticks-ticksBefore)

	r, err := g.Report().WithProcessStats(false).Build()
	require.NoError(t, err)
	assert.NotEmpty(t, r.Stacks)
	assert.Positive(t, r.TotalWeight())

	g.Close()
	assert.False(t, reg.Running())

	g2, err := StartProfiling(100)
	require.NoError(t, err)
	assert.NotEqual(t, g.SessionID(), g2.SessionID())
	g2.Close()
	assert.False(t, reg.Running())
}
