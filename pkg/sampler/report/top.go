package report

import (
	"slices"
	"strings"
)

// FunctionStat is the weight attributed to one function across all stacks.
// Flat counts samples where the function was the leaf; Cum counts samples
// where it appeared anywhere, once per stack.
type FunctionStat struct {
	Function string `json:"function"`
	Flat     uint64 `json:"flat"`
	Cum      uint64 `json:"cum"`
}

// Top returns the n functions with the highest flat weight, ties broken by
// cumulative weight and then name. n <= 0 returns every function.
func (r *Report) Top(n int) []FunctionStat {
	stats := make(map[string]*FunctionStat)
	get := func(name string) *FunctionStat {
		s, ok := stats[name]
		if !ok {
			s = &FunctionStat{Function: name}
			stats[name] = s
		}
		return s
	}

	for _, s := range r.Stacks {
		if len(s.Frames) == 0 {
			continue
		}
		get(frameName(s.Frames[0])).Flat += s.Count

		seen := make(map[string]bool, len(s.Frames))
		for _, f := range s.Frames {
			name := frameName(f)
			if seen[name] {
				continue
			}
			seen[name] = true
			get(name).Cum += s.Count
		}
	}

	out := make([]FunctionStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b FunctionStat) int {
		switch {
		case a.Flat != b.Flat:
			return cmpDesc(a.Flat, b.Flat)
		case a.Cum != b.Cum:
			return cmpDesc(a.Cum, b.Cum)
		default:
			return strings.Compare(a.Function, b.Function)
		}
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func cmpDesc(a, b uint64) int {
	if a > b {
		return -1
	}
	return 1
}
