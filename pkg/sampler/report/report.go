// Package report turns a profiling session's aggregated samples into a
// symbolized report and renders it as folded stacks, pprof or JSON.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-sampler/internal/constants"
	"github.com/coral-mesh/coral-sampler/internal/safe"
	"github.com/coral-mesh/coral-sampler/internal/sys/proc"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/collector"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/stack"
)

// Output formats understood by Write.
const (
	FormatFolded = "folded"
	FormatPprof  = "pprof"
	FormatJSON   = "json"
)

// ErrUnknownFormat is returned by Write for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Snapshot is a copy of a session's aggregation taken under the profiler's
// read lock.
type Snapshot struct {
	SessionID   string
	FrequencyHz int
	StartedAt   time.Time
	TakenAt     time.Time
	SampleCount uint64
	Entries     []collector.Entry
}

// Builder produces a Report from a Snapshot.
type Builder struct {
	snapshot     Snapshot
	logger       zerolog.Logger
	symbols      *symbolCache
	processStats bool
}

// NewBuilder creates a builder bound to snap.
func NewBuilder(snap Snapshot) *Builder {
	return &Builder{
		snapshot:     snap,
		logger:       zerolog.Nop(),
		symbols:      newSymbolCache(constants.DefaultSymbolCacheSize),
		processStats: true,
	}
}

// WithLogger sets the logger used while building.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger.With().Str("component", "report-builder").Logger()
	return b
}

// WithProcessStats controls whether host process statistics are attached.
func (b *Builder) WithProcessStats(enabled bool) *Builder {
	b.processStats = enabled
	return b
}

// Snapshot returns the snapshot the builder is bound to.
func (b *Builder) Snapshot() Snapshot {
	return b.snapshot
}

// Build symbolizes the snapshot.
func (b *Builder) Build() (*Report, error) {
	snap := b.snapshot
	if snap.FrequencyHz <= 0 {
		return nil, fmt.Errorf("invalid snapshot frequency %d", snap.FrequencyHz)
	}

	r := &Report{
		SessionID:   snap.SessionID,
		FrequencyHz: snap.FrequencyHz,
		StartedAt:   snap.StartedAt,
		SampleCount: snap.SampleCount,
		Stacks:      make([]Stack, 0, len(snap.Entries)),
	}
	if !snap.StartedAt.IsZero() && !snap.TakenAt.IsZero() {
		r.Duration = snap.TakenAt.Sub(snap.StartedAt)
	}

	for _, e := range snap.Entries {
		r.Stacks = append(r.Stacks, Stack{
			ThreadLabel: e.Sample.ThreadLabel,
			ThreadID:    e.Sample.ThreadID,
			Frames:      b.resolve(e.Sample.Frames),
			Count:       e.Count,
		})
	}

	if b.processStats {
		stats, err := proc.Self()
		if err != nil {
			b.logger.Warn().Err(err).Msg("Failed to read process statistics")
		} else {
			r.Process = stats
		}
	}

	b.logger.Debug().
		Str("session_id", r.SessionID).
		Int("stacks", len(r.Stacks)).
		Uint64("total_weight", r.TotalWeight()).
		Int("symbols_cached", b.symbols.len()).
		Msg("Built report")

	return r, nil
}

func (b *Builder) resolve(frames []stack.Frame) []stack.Frame {
	out := make([]stack.Frame, 0, len(frames))
	for _, f := range frames {
		if f.Resolved() || f.PC == 0 {
			out = append(out, f)
			continue
		}
		out = append(out, b.symbols.resolve(f.PC)...)
	}
	return out
}

// Report is a symbolized profiling session.
type Report struct {
	SessionID   string        `json:"session_id"`
	FrequencyHz int           `json:"frequency_hz"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	SampleCount uint64        `json:"sample_count"`
	Stacks      []Stack       `json:"stacks"`
	Process     *proc.Stats   `json:"process,omitempty"`
}

// Stack is one deduplicated stack with its weight. Frames are leaf first.
type Stack struct {
	ThreadLabel string        `json:"thread_label"`
	ThreadID    uint64        `json:"thread_id"`
	Frames      []stack.Frame `json:"frames"`
	Count       uint64        `json:"count"`
}

// TotalWeight returns the sum of all stack weights.
func (r *Report) TotalWeight() uint64 {
	var total uint64
	for _, s := range r.Stacks {
		total += s.Count
	}
	return total
}

// Write renders the report in the named format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", FormatFolded:
		return r.WriteFolded(w)
	case FormatPprof:
		return r.WritePprof(w)
	case FormatJSON:
		return r.WriteJSON(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFolded writes one "label;root;...;leaf count" line per distinct
// folded stack, sorted, as consumed by flamegraph.pl.
func (r *Report) WriteFolded(w io.Writer) error {
	folded := make(map[string]uint64, len(r.Stacks))
	for _, s := range r.Stacks {
		parts := make([]string, 0, len(s.Frames)+1)
		parts = append(parts, s.ThreadLabel)
		for i := len(s.Frames) - 1; i >= 0; i-- {
			parts = append(parts, frameName(s.Frames[i]))
		}
		folded[strings.Join(parts, ";")] += s.Count
	}

	keys := make([]string, 0, len(folded))
	for k := range folded {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s %d\n", k, folded[k]); err != nil {
			return fmt.Errorf("failed to write folded stacks: %w", err)
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WritePprof writes the report as a gzipped pprof protobuf.
func (r *Report) WritePprof(w io.Writer) error {
	if err := r.Profile().Write(w); err != nil {
		return fmt.Errorf("failed to write pprof profile: %w", err)
	}
	return nil
}

// Profile converts the report to a pprof profile with a count and a cpu
// sample value per stack and a "thread" label.
func (r *Report) Profile() *profile.Profile {
	period := int64(time.Second) / int64(max(r.FrequencyHz, 1))

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType:    &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:        period,
		TimeNanos:     r.StartedAt.UnixNano(),
		DurationNanos: int64(r.Duration),
	}
	mapping := &profile.Mapping{ID: 1, HasFunctions: true}
	prof.Mapping = []*profile.Mapping{mapping}

	type functionKey struct {
		Name     string
		Filename string
	}
	// Locations with a PC are keyed by it alone; symbolic frames by their
	// function and line.
	type locationKey struct {
		PC       uintptr
		Function functionKey
		Line     int
	}
	functions := map[functionKey]*profile.Function{}
	locations := map[locationKey]*profile.Location{}

	function := func(frame stack.Frame) *profile.Function {
		fk := functionKey{Name: frameName(frame), Filename: frame.File}
		fn, ok := functions[fk]
		if !ok {
			fn = &profile.Function{
				ID:         uint64(len(prof.Function)) + 1,
				Name:       fk.Name,
				SystemName: fk.Name,
				Filename:   fk.Filename,
			}
			functions[fk] = fn
			prof.Function = append(prof.Function, fn)
		}
		return fn
	}

	for _, s := range r.Stacks {
		locs := make([]*profile.Location, 0, len(s.Frames))
		for _, group := range locationFrames(s.Frames) {
			last := group[len(group)-1]
			lk := locationKey{PC: last.PC}
			if last.PC == 0 {
				lk.Function = functionKey{Name: frameName(last), Filename: last.File}
				lk.Line = last.Line
			}

			loc, ok := locations[lk]
			if !ok {
				// Leaf first; the last line is the caller the others were
				// inlined into.
				lines := make([]profile.Line, len(group))
				for i, frame := range group {
					lines[i] = profile.Line{Function: function(frame), Line: int64(frame.Line)}
				}
				loc = &profile.Location{
					ID:      uint64(len(prof.Location)) + 1,
					Mapping: mapping,
					Address: uint64(last.PC),
					Line:    lines,
				}
				locations[lk] = loc
				prof.Location = append(prof.Location, loc)
			}
			locs = append(locs, loc)
		}

		count, _ := safe.Uint64ToInt64(s.Count)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{count, safe.MulInt64(count, period)},
			Label:    map[string][]string{"thread": {s.ThreadLabel}},
		})
	}

	return prof
}

// locationFrames splits leaf-first frames into one group per physical
// frame: a run of inlined frames followed by the frame they were inlined
// into.
func locationFrames(frames []stack.Frame) [][]stack.Frame {
	var groups [][]stack.Frame
	start := 0
	for i, f := range frames {
		if f.Inlined && i < len(frames)-1 {
			continue
		}
		groups = append(groups, frames[start:i+1])
		start = i + 1
	}
	return groups
}

func frameName(f stack.Frame) string {
	if f.Function != "" {
		return f.Function
	}
	return fmt.Sprintf("0x%x", f.PC)
}
