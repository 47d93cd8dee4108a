package report

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolCache_Memoizes(t *testing.T) {
	pcs := callerPCs()
	require.NotEmpty(t, pcs)

	c := newSymbolCache(4)
	first := c.resolve(pcs[0])
	second := c.resolve(pcs[0])

	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.len())
}

func TestSymbolCache_Evicts(t *testing.T) {
	c := newSymbolCache(2)
	c.resolve(0x1)
	c.resolve(0x2)
	c.resolve(0x1)
	c.resolve(0x3)

	assert.Equal(t, 2, c.len())
	_, ok := c.items[0x2]
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.items[0x1]
	assert.True(t, ok)
}

func TestSymbolize_Unknown(t *testing.T) {
	frames := symbolize(0x10)
	require.Len(t, frames, 1)
	assert.Equal(t, "0x10", frames[0].Function)
	assert.Equal(t, uintptr(0x10), frames[0].PC)
	assert.False(t, frames[0].Inlined)
}

func TestSymbolize_Known(t *testing.T) {
	pc, _, _, ok := runtime.Caller(0)
	require.True(t, ok)

	// symbolize expects a return address, one past the call instruction.
	frames := symbolize(pc + 1)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Function, "TestSymbolize_Known")
	assert.False(t, frames[len(frames)-1].Inlined)
	for _, f := range frames[:len(frames)-1] {
		assert.True(t, f.Inlined, f.Function)
	}
}
