package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "info", wantDebug: false, wantInfo: true},
		{level: "error", wantDebug: false, wantInfo: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tt.level, Output: &buf})

			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug message")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info message")))
		})
	}
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Output: &buf})
	logger.Info().Str("session_id", "abc").Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestValidLevel(t *testing.T) {
	for _, name := range []string{"trace", "DEBUG", "info", "warning", "error", "off"} {
		assert.True(t, ValidLevel(name), name)
	}
	for _, name := range []string{"", "verbose", "fatal"} {
		assert.False(t, ValidLevel(name), name)
	}
}
