//go:build !linux

package sampler

import "runtime"

// samplerThread is the OS thread the timer loop is pinned to. Only Linux
// exposes a thread id and name to manage.
type samplerThread struct {
	tid int
}

func registerSamplerThread() (*samplerThread, error) {
	runtime.LockOSThread()
	return &samplerThread{}, nil
}

func (st *samplerThread) release() error {
	runtime.UnlockOSThread()
	return nil
}
