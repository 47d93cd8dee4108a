// Package collector folds captured stacks into a deduplicated, weighted
// aggregation.
package collector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

var (
	// ErrFull is returned by Add when a new stack identity would exceed the
	// configured capacity.
	ErrFull = errors.New("collector is full")

	// ErrZeroWeight is returned by Add for a zero weight.
	ErrZeroWeight = errors.New("sample weight must be positive")
)

// Sample is one captured, not yet symbolized stack of one thread.
type Sample struct {
	Frames      []stack.Frame
	ThreadLabel string
	ThreadID    uint64
}

// Entry is a deduplicated stack identity with its accumulated weight. The
// ThreadID is the one first seen for the identity.
type Entry struct {
	Sample Sample
	Count  uint64
}

// Config configures a Collector.
type Config struct {
	// MaxStacks bounds the number of distinct stack identities. Zero means
	// unbounded.
	MaxStacks int
}

// Collector maps a stack identity (frames plus thread label) to its weight.
// It is not safe for concurrent use.
type Collector struct {
	buckets   map[uint64][]*Entry
	maxStacks int
	size      int
	total     uint64
	hasher    *xxh3.Hasher
	scratch   [8]byte
}

// New creates an empty collector.
func New(cfg Config) (*Collector, error) {
	if cfg.MaxStacks < 0 {
		return nil, fmt.Errorf("invalid max stacks %d", cfg.MaxStacks)
	}

	return &Collector{
		buckets:   make(map[uint64][]*Entry),
		maxStacks: cfg.MaxStacks,
		hasher:    xxh3.New(),
	}, nil
}

// Add folds weight into the entry for s, creating it when absent.
func (c *Collector) Add(s Sample, weight uint32) error {
	if weight == 0 {
		return ErrZeroWeight
	}

	key := c.hash(s)
	for _, e := range c.buckets[key] {
		if sameIdentity(e.Sample, s) {
			e.Count += uint64(weight)
			c.total += uint64(weight)
			return nil
		}
	}

	if c.maxStacks > 0 && c.size >= c.maxStacks {
		return fmt.Errorf("%w: %d distinct stacks", ErrFull, c.size)
	}

	c.buckets[key] = append(c.buckets[key], &Entry{
		Sample: Sample{
			Frames:      slices.Clone(s.Frames),
			ThreadLabel: s.ThreadLabel,
			ThreadID:    s.ThreadID,
		},
		Count: uint64(weight),
	})
	c.size++
	c.total += uint64(weight)

	return nil
}

// Weight returns the accumulated weight for the identity of s.
func (c *Collector) Weight(s Sample) uint64 {
	for _, e := range c.buckets[c.hash(s)] {
		if sameIdentity(e.Sample, s) {
			return e.Count
		}
	}
	return 0
}

// Len returns the number of distinct stack identities.
func (c *Collector) Len() int {
	return c.size
}

// TotalWeight returns the sum of all weights.
func (c *Collector) TotalWeight() uint64 {
	return c.total
}

// Snapshot returns a deep copy of all entries, heaviest first.
func (c *Collector) Snapshot() []Entry {
	out := make([]Entry, 0, c.size)
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			out = append(out, Entry{
				Sample: Sample{
					Frames:      slices.Clone(e.Sample.Frames),
					ThreadLabel: e.Sample.ThreadLabel,
					ThreadID:    e.Sample.ThreadID,
				},
				Count: e.Count,
			})
		}
	}

	slices.SortFunc(out, func(a, b Entry) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Sample.ThreadLabel, b.Sample.ThreadLabel)
	})

	return out
}

func (c *Collector) hash(s Sample) uint64 {
	h := c.hasher
	h.Reset()
	for _, f := range s.Frames {
		binary.LittleEndian.PutUint64(c.scratch[:], uint64(f.PC))
		_, _ = h.Write(c.scratch[:])
		_, _ = h.WriteString(f.Function)
		_, _ = h.WriteString(f.File)
		binary.LittleEndian.PutUint64(c.scratch[:], uint64(f.Line))
		_, _ = h.Write(c.scratch[:])
	}
	_, _ = h.WriteString(s.ThreadLabel)
	return h.Sum64()
}

func sameIdentity(a, b Sample) bool {
	return a.ThreadLabel == b.ThreadLabel && slices.Equal(a.Frames, b.Frames)
}
