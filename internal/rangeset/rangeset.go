// Package rangeset implements half-open integer interval algebra over
// sorted, disjoint lists of Range — the building block the virtual LRU
// buffer and the cached filelike use to reason about which bytes are
// resident and which are missing.
package rangeset

import "sort"

// Range is a half-open interval [Start, End) of non-negative offsets.
// Empty ranges (Start == End) are never constructed by this package's own
// operations, but callers must not pass them in on the public API.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Len() int64 { return r.End - r.Start }

func (r Range) IsEmpty() bool { return r.End <= r.Start }

// IsOverlapping reports whether a and b share any offset.
func IsOverlapping(a, b Range) bool {
	return a.Start < b.End && b.Start < a.End
}

// Normalize sorts ranges by start and merges touching/overlapping intervals
// into canonical disjoint form.
func Normalize(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	out := make([]Range, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.IsEmpty() {
			continue
		}
		if r.Start <= cur.End {
			if r.End > cur.End {
				cur.End = r.End
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out
}

// IsCovered reports whether query is fully contained within the union of
// ranges. ranges need not be pre-normalized.
func IsCovered(query Range, ranges []Range) bool {
	if query.IsEmpty() {
		return true
	}
	return len(Missing(query, ranges)) == 0
}

// Missing returns the portions of query not covered by ranges, in
// ascending order. ranges are first clipped to query's bound so
// out-of-bounds entries cannot corrupt the complement.
func Missing(query Range, ranges []Range) []Range {
	if query.IsEmpty() {
		return nil
	}
	clipped := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		s, e := r.Start, r.End
		if s < query.Start {
			s = query.Start
		}
		if e > query.End {
			e = query.End
		}
		if s < e {
			clipped = append(clipped, Range{Start: s, End: e})
		}
	}
	clipped = Normalize(clipped)

	var out []Range
	cursor := query.Start
	for _, r := range clipped {
		if r.Start > cursor {
			out = append(out, Range{Start: cursor, End: r.Start})
		}
		if r.End > cursor {
			cursor = r.End
		}
	}
	if cursor < query.End {
		out = append(out, Range{Start: cursor, End: query.End})
	}
	return out
}

// Intersect returns the intersection of two (not-necessarily-normalized)
// range lists, in ascending, normalized form.
func Intersect(a, b []Range) []Range {
	na := Normalize(a)
	nb := Normalize(b)
	var out []Range
	i, j := 0, 0
	for i < len(na) && j < len(nb) {
		s := na[i].Start
		if nb[j].Start > s {
			s = nb[j].Start
		}
		e := na[i].End
		if nb[j].End < e {
			e = nb[j].End
		}
		if s < e {
			out = append(out, Range{Start: s, End: e})
		}
		if na[i].End < nb[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}
