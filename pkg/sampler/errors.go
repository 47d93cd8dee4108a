package sampler

import "errors"

var (
	// ErrCreating is returned when the profiler or its collector could not
	// be allocated. It prevents a session from starting but leaves the
	// process untouched.
	ErrCreating = errors.New("failed to create profiler")

	// ErrAlreadyRunning is returned when a session is started while another
	// one is active.
	ErrAlreadyRunning = errors.New("profiler is already running")

	// ErrNotRunning is returned when an idle profiler is stopped.
	ErrNotRunning = errors.New("profiler is not running")

	// ErrInvalidFrequency is returned for a sampling frequency outside
	// [1, MaxFrequencyHz].
	ErrInvalidFrequency = errors.New("invalid sampling frequency")
)
