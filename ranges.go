package netsim

//
// Range algebra: merge/subtract/overlap for half-open integer ranges
// with a step of 1, i.e. [Start, Stop).
//

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a half-open interval of integers [Start, Stop).
type Range struct {
	Start int64
	Stop  int64
}

// Empty reports whether r contains no integers.
func (r Range) Empty() bool {
	return r.Stop <= r.Start
}

// Len returns the number of integers in r.
func (r Range) Len() int64 {
	if r.Empty() {
		return 0
	}
	return r.Stop - r.Start
}

// RangeOverlap returns the range that x and y have in common. The
// result is empty (zero value semantics: check with [Range.Empty]) if
// they do not overlap.
func RangeOverlap(x, y Range) Range {
	start := x.Start
	if y.Start > start {
		start = y.Start
	}
	stop := x.Stop
	if y.Stop < stop {
		stop = y.Stop
	}
	return Range{Start: start, Stop: stop}
}

// RangeContains reports whether y is entirely contained in x.
func RangeContains(x, y Range) bool {
	return x.Start <= y.Start && x.Stop >= y.Stop
}

// RangeMerge returns rs sorted by Start with contiguous or overlapping
// ranges coalesced into a single range. The result is sorted and
// pairwise disjoint (no two result ranges touch or overlap).
func RangeMerge(rs []Range) []Range {
	if len(rs) == 0 {
		return nil
	}
	sorted := make([]Range, len(rs))
	copy(sorted, rs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := make([]Range, 0, len(sorted))
	for _, higher := range sorted {
		if len(merged) == 0 {
			merged = append(merged, higher)
			continue
		}
		lower := &merged[len(merged)-1]
		if higher.Start <= lower.Stop {
			if higher.Stop > lower.Stop {
				lower.Stop = higher.Stop
			}
			continue
		}
		merged = append(merged, higher)
	}
	return merged
}

// RangeSubtract returns the maximal sorted, disjoint subranges of x
// that are not covered by any range in rs.
func RangeSubtract(x Range, rs ...Range) []Range {
	merged := RangeMerge(rs)
	var result []Range
	start := x.Start
	for _, remove := range merged {
		if remove.Stop <= start {
			continue
		}
		if remove.Start >= x.Stop {
			break
		}
		if remove.Start > start {
			result = append(result, Range{Start: start, Stop: remove.Start})
		}
		start = remove.Stop
	}
	if start < x.Stop {
		result = append(result, Range{Start: start, Stop: x.Stop})
	}
	return result
}

// RangeFormat renders ranges as a comma-separated "start-end" list
// (inclusive end, matching the convention used in trace messages), for
// example "1000-1499,2500-3999".
func RangeFormat(rs ...Range) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, fmt.Sprintf("%d-%d", r.Start, r.Stop-1))
	}
	return strings.Join(parts, ",")
}
