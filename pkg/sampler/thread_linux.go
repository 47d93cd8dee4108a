//go:build linux

package sampler

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const samplerThreadName = "coral-sampler"

// samplerThread is the OS thread the timer loop is pinned to. On Linux the
// thread is renamed for the session so it is recognizable in top, perf and
// /proc; release restores the previous name.
type samplerThread struct {
	tid      int
	name     [16]byte
	prevName [16]byte
	renamed  bool
}

// registerSamplerThread must be called from the timer goroutine. The
// returned value is never nil and must be released from the same goroutine.
func registerSamplerThread() (*samplerThread, error) {
	runtime.LockOSThread()

	st := &samplerThread{tid: unix.Gettid()}
	copy(st.name[:len(st.name)-1], samplerThreadName)

	if err := unix.Prctl(unix.PR_GET_NAME, uintptr(unsafe.Pointer(&st.prevName[0])), 0, 0, 0); err != nil {
		return st, fmt.Errorf("failed to read thread name: %w", err)
	}
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&st.name[0])), 0, 0, 0); err != nil {
		return st, fmt.Errorf("failed to set thread name: %w", err)
	}
	st.renamed = true

	return st, nil
}

func (st *samplerThread) release() error {
	defer runtime.UnlockOSThread()

	if !st.renamed {
		return nil
	}
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&st.prevName[0])), 0, 0, 0); err != nil {
		return fmt.Errorf("failed to restore thread name: %w", err)
	}
	st.renamed = false

	return nil
}
