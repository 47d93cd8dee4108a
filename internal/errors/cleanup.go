// Package errors provides utilities for error handling in the sampler.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a failure.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
