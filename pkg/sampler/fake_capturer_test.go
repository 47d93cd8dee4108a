package sampler

import (
	"errors"
	"sync/atomic"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

var errCaptureFailed = errors.New("capture failed")

// fakeCapturer serves a fixed goroutine set. Stacks are looked up by id;
// ids listed in failing return an error from Capture.
type fakeCapturer struct {
	threads []stack.Thread
	stacks  map[uint64][]stack.Frame
	failing map[uint64]bool

	enumerateErr error
	panicOn      bool

	threadsCalls atomic.Int64
	captureCalls atomic.Int64
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{
		threads: []stack.Thread{
			{ID: 100, State: "running", Self: true},
			{ID: 1, State: "running"},
			{ID: 2, State: "chan receive"},
			{ID: 3, State: "runnable"},
		},
		stacks: map[uint64][]stack.Frame{
			100: {{Function: "sampler.tick"}},
			1:   {{Function: "app.compute"}, {Function: "app.main"}},
			2:   {{Function: "app.wait"}, {Function: "app.main"}},
			3:   {{Function: "app.io"}, {Function: "app.main"}},
		},
		failing: map[uint64]bool{},
	}
}

func (f *fakeCapturer) Threads() ([]stack.Thread, error) {
	f.threadsCalls.Add(1)
	if f.panicOn {
		panic("capturer exploded")
	}
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	return append([]stack.Thread(nil), f.threads...), nil
}

func (f *fakeCapturer) Capture(t stack.Thread, maxDepth int) ([]stack.Frame, error) {
	f.captureCalls.Add(1)
	if f.failing[t.ID] {
		return nil, errCaptureFailed
	}
	frames := f.stacks[t.ID]
	if maxDepth > 0 && len(frames) > maxDepth {
		frames = frames[:maxDepth]
	}
	return append([]stack.Frame(nil), frames...), nil
}
