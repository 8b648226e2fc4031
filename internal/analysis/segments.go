// Package analysis derives time segments and species statistics from
// detection timestamps. Everything here is a pure function.
package analysis

import (
	"sort"

	"bird-analysis-service/internal/entity"
)

// BuildSegments merges detection timestamps into contiguous time ranges.
// Consecutive timestamps no further apart than gap fall into the same
// segment. The result is sorted, non-overlapping and minimal: merging
// any two adjacent segments would violate the gap tolerance.
func BuildSegments(timestamps []float64, gap float64) []entity.Segment {
	if len(timestamps) == 0 {
		return nil
	}

	ts := make([]float64, len(timestamps))
	copy(ts, timestamps)
	sort.Float64s(ts)

	var segments []entity.Segment
	cur := entity.Segment{StartTime: ts[0], EndTime: ts[0]}
	for _, t := range ts[1:] {
		if t-cur.EndTime <= gap {
			cur.EndTime = t
			continue
		}
		segments = append(segments, cur)
		cur = entity.Segment{StartTime: t, EndTime: t}
	}
	return append(segments, cur)
}
