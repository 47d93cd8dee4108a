package sampler

import (
	"strconv"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

const threadLabelPrefix = "Thread:"

// threadLabel formats the label recorded for a goroutine, bounded by
// stack.MaxThreadName bytes.
func threadLabel(id uint64) string {
	var buf [stack.MaxThreadName]byte
	b := append(buf[:0], threadLabelPrefix...)
	b = strconv.AppendUint(b, id, 10)
	if len(b) > stack.MaxThreadName {
		b = b[:stack.MaxThreadName]
	}
	return string(b)
}
