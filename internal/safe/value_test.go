package safe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64ToInt64(t *testing.T) {
	tests := []struct {
		name        string
		in          uint64
		want        int64
		wantClamped bool
	}{
		{name: "zero", in: 0, want: 0},
		{name: "small", in: 42, want: 42},
		{name: "max int64", in: math.MaxInt64, want: math.MaxInt64},
		{name: "overflow", in: math.MaxInt64 + 1, want: math.MaxInt64, wantClamped: true},
		{name: "max uint64", in: math.MaxUint64, want: math.MaxInt64, wantClamped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := Uint64ToInt64(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClamped, clamped)
		})
	}
}

func TestMulInt64(t *testing.T) {
	assert.Equal(t, int64(0), MulInt64(0, 5))
	assert.Equal(t, int64(0), MulInt64(5, 0))
	assert.Equal(t, int64(30), MulInt64(5, 6))
	assert.Equal(t, int64(math.MaxInt64), MulInt64(math.MaxInt64/2, 3))
}
