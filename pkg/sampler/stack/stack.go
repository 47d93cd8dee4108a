// Package stack enumerates the goroutines of the current process and captures
// their call stacks.
//
// Two capturers are available. The stackdump capturer parses the runtime's
// full goroutine dump and yields real goroutine ids with symbolized frames.
// The goroutineprofile capturer reads runtime.GoroutineProfile and yields raw
// return addresses that are resolved later, when a report is built.
package stack

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxDepth is the number of frames kept per stack when the caller
	// does not choose a depth.
	DefaultMaxDepth = 64

	// MaxThreadName bounds the length in bytes of a thread label. It fits
	// "Thread:" followed by any uint64.
	MaxThreadName = 32
)

// Capturer kinds accepted by New.
const (
	KindStackDump        = "stackdump"
	KindGoroutineProfile = "goroutineprofile"
)

var (
	// ErrForeignThread is returned when a Thread handle produced by one
	// capturer is passed to another.
	ErrForeignThread = errors.New("thread handle belongs to a different capturer")

	// ErrUnknownCapturer is returned by New for an unsupported kind.
	ErrUnknownCapturer = errors.New("unknown capturer")
)

// Frame is a single call stack entry. Capturers that walk raw return
// addresses only set PC; capturers that read the runtime's own traceback set
// Function, File and Line instead.
type Frame struct {
	PC       uintptr `json:"pc,omitempty"`
	Function string  `json:"function,omitempty"`
	File     string  `json:"file,omitempty"`
	Line     int     `json:"line,omitempty"`

	// Inlined marks a frame that the compiler inlined into the next frame.
	// Both were resolved from the same PC.
	Inlined bool `json:"inlined,omitempty"`
}

// Resolved reports whether the frame already carries symbol information.
func (f Frame) Resolved() bool {
	return f.Function != ""
}

// Thread is an opaque handle on one goroutine, valid for the snapshot it
// was enumerated from.
type Thread struct {
	// ID is the goroutine id when the capturer knows it, otherwise a
	// position within the snapshot.
	ID uint64

	// State is the scheduler wait reason ("running", "chan receive", ...)
	// when known.
	State string

	// Self marks the goroutine that performed the enumeration.
	Self bool

	handle any
}

// OnCPU reports whether the goroutine was executing or ready to execute when
// it was enumerated. Goroutines with an unknown state count as on-CPU.
func (t Thread) OnCPU() bool {
	switch t.State {
	case "", "running", "runnable", "syscall":
		return true
	}
	return false
}

// Capturer enumerates threads and captures their stacks.
//
// Implementations are not safe for concurrent use; the sampler calls them
// from a single goroutine.
type Capturer interface {
	// Threads returns every live goroutine of the process. Goroutines that
	// cannot be read are skipped rather than failing the whole enumeration.
	Threads() ([]Thread, error)

	// Capture returns up to maxDepth frames of t's stack, leaf first.
	// Deeper stacks are truncated.
	Capture(t Thread, maxDepth int) ([]Frame, error)
}

// New returns the capturer registered under kind. An empty kind selects the
// stackdump capturer.
func New(kind string) (Capturer, error) {
	switch kind {
	case "", KindStackDump:
		return NewStackDumpCapturer(), nil
	case KindGoroutineProfile:
		return NewGoroutineProfileCapturer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapturer, kind)
	}
}

func clampDepth(n, maxDepth int) int {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if n > maxDepth {
		return maxDepth
	}
	return n
}
