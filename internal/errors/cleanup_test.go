package errors

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     io.Closer
		wantLogged bool
	}{
		{name: "nil closer", closer: nil},
		{name: "successful close", closer: &mockCloser{}},
		{name: "close with error", closer: &mockCloser{closeErr: errors.New("close failed")}, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "test close")

			if tt.closer != nil {
				assert.True(t, tt.closer.(*mockCloser).closed)
			}
			assert.Equal(t, tt.wantLogged, buf.Len() > 0)
		})
	}
}
