package stack

import (
	"runtime"
)

// GoroutineProfileCapturer reads runtime.GoroutineProfile. Its frames carry
// raw return addresses only, and thread ids are positions within one
// snapshot because the runtime does not expose goroutine ids here.
type GoroutineProfileCapturer struct {
	records []runtime.StackRecord
	self    uintptr
}

// NewGoroutineProfileCapturer creates a capturer backed by the goroutine
// profile.
func NewGoroutineProfileCapturer() *GoroutineProfileCapturer {
	return &GoroutineProfileCapturer{}
}

// Threads implements Capturer.
func (c *GoroutineProfileCapturer) Threads() ([]Thread, error) {
	if c.self == 0 {
		pc, _, _, ok := runtime.Caller(0)
		if ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				c.self = fn.Entry()
			}
		}
	}

	// The number of goroutines is unknown up front, so the record slice is
	// grown with 10% headroom until the runtime reports it fits. Once it
	// reaches the peak goroutine count it is reused without allocating.
	for {
		n, ok := runtime.GoroutineProfile(c.records)
		if ok {
			records := c.records[:n]
			threads := make([]Thread, len(records))
			for i := range records {
				threads[i] = Thread{
					ID:     uint64(i + 1),
					Self:   c.isSelf(records[i].Stack()),
					handle: &records[i],
				}
			}
			return threads, nil
		}
		c.records = make([]runtime.StackRecord, int(float64(n)*1.1)+1)
	}
}

// Capture implements Capturer.
func (c *GoroutineProfileCapturer) Capture(t Thread, maxDepth int) ([]Frame, error) {
	rec, ok := t.handle.(*runtime.StackRecord)
	if !ok {
		return nil, ErrForeignThread
	}

	pcs := rec.Stack()
	frames := make([]Frame, clampDepth(len(pcs), maxDepth))
	for i := range frames {
		frames[i] = Frame{PC: pcs[i]}
	}

	return frames, nil
}

func (c *GoroutineProfileCapturer) isSelf(pcs []uintptr) bool {
	if c.self == 0 {
		return false
	}
	for _, pc := range pcs {
		// Return addresses point one past the call instruction.
		if fn := runtime.FuncForPC(pc - 1); fn != nil && fn.Entry() == c.self {
			return true
		}
	}
	return false
}
