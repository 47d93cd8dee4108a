package stack

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/DataDog/gostackparse"
)

const (
	initialDumpSize = 64 << 10
	maxDumpSize     = 64 << 20
)

// StackDumpCapturer reads runtime.Stack for all goroutines and parses the
// text traceback. The dump buffer is reused across calls.
type StackDumpCapturer struct {
	buf []byte
}

// NewStackDumpCapturer creates a capturer backed by the runtime goroutine dump.
func NewStackDumpCapturer() *StackDumpCapturer {
	return &StackDumpCapturer{buf: make([]byte, initialDumpSize)}
}

// Threads implements Capturer. The runtime writes the calling goroutine
// first, which is how Self is determined.
func (c *StackDumpCapturer) Threads() ([]Thread, error) {
	dump, err := c.dump()
	if err != nil {
		return nil, err
	}

	goroutines, errs := gostackparse.Parse(bytes.NewReader(dump))
	if len(goroutines) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to parse goroutine dump: %w", errs[0])
	}

	threads := make([]Thread, 0, len(goroutines))
	for i, g := range goroutines {
		if g == nil || g.ID <= 0 {
			continue
		}
		threads = append(threads, Thread{
			ID:     uint64(g.ID),
			State:  g.State,
			Self:   i == 0,
			handle: g,
		})
	}

	return threads, nil
}

// Capture implements Capturer.
func (c *StackDumpCapturer) Capture(t Thread, maxDepth int) ([]Frame, error) {
	g, ok := t.handle.(*gostackparse.Goroutine)
	if !ok {
		return nil, ErrForeignThread
	}

	frames := make([]Frame, clampDepth(len(g.Stack), maxDepth))
	for i := range frames {
		f := g.Stack[i]
		frames[i] = Frame{Function: f.Func, File: f.File, Line: f.Line}
	}

	return frames, nil
}

func (c *StackDumpCapturer) dump() ([]byte, error) {
	for {
		n := runtime.Stack(c.buf, true)
		if n < len(c.buf) {
			return c.buf[:n], nil
		}
		if len(c.buf) >= maxDumpSize {
			return nil, fmt.Errorf("goroutine dump exceeds %d bytes", maxDumpSize)
		}
		c.buf = make([]byte, 2*len(c.buf))
	}
}
