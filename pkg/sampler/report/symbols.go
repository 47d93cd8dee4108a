package report

import (
	"container/list"
	"fmt"
	"runtime"
	"sync"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// symbolCache memoizes program counter resolution with LRU eviction.
type symbolCache struct {
	capacity int
	mu       sync.Mutex
	items    map[uintptr]*list.Element
	lruList  *list.List
}

type symbolEntry struct {
	pc     uintptr
	frames []stack.Frame
}

func newSymbolCache(capacity int) *symbolCache {
	return &symbolCache{
		capacity: capacity,
		items:    make(map[uintptr]*list.Element),
		lruList:  list.New(),
	}
}

// resolve returns the frames for pc, which is a return address. More than
// one frame comes back when the call site was inlined.
func (c *symbolCache) resolve(pc uintptr) []stack.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[pc]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*symbolEntry).frames
	}

	frames := symbolize(pc)
	c.items[pc] = c.lruList.PushFront(&symbolEntry{pc: pc, frames: frames})
	if c.lruList.Len() > c.capacity {
		oldest := c.lruList.Back()
		c.lruList.Remove(oldest)
		delete(c.items, oldest.Value.(*symbolEntry).pc)
	}

	return frames
}

func (c *symbolCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

func symbolize(pc uintptr) []stack.Frame {
	var out []stack.Frame
	frames := runtime.CallersFrames([]uintptr{pc})
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			out = append(out, stack.Frame{
				PC:       pc,
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}
		if !more {
			break
		}
	}

	if len(out) == 0 {
		out = append(out, stack.Frame{PC: pc, Function: fmt.Sprintf("0x%x", pc)})
	}
	// The last frame is the physical caller; the ones before it were
	// inlined into it.
	for i := range out[:len(out)-1] {
		out[i].Inlined = true
	}
	return out
}
