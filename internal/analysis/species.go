package analysis

import (
	"sort"

	"bird-analysis-service/internal/entity"
)

// RankSpecies orders species by descending count. order is the
// first-seen order of species during the run; ties keep that order
// (stable sort).
func RankSpecies(counts map[string]int, order []string) []entity.SpeciesStat {
	stats := make([]entity.SpeciesStat, 0, len(order))
	for _, s := range order {
		stats = append(stats, entity.SpeciesStat{Species: s, Count: counts[s]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// SegmentsByClass applies BuildSegments independently to each species.
// A species seen without timestamps (unknown fps) maps to an empty
// slice, so it serializes as [] rather than null.
func SegmentsByClass(byClass map[string][]float64, gap float64, order []string) map[string][]entity.Segment {
	out := make(map[string][]entity.Segment, len(order))
	for _, s := range order {
		segs := BuildSegments(byClass[s], gap)
		if segs == nil {
			segs = []entity.Segment{}
		}
		out[s] = segs
	}
	return out
}

// DominantSpecies returns the species with the most timestamps inside
// [seg.StartTime, seg.EndTime], bounds inclusive. Species are evaluated
// in first-seen order, so ties go to the earlier one. Nil when no
// timestamps fall inside the segment.
func DominantSpecies(seg entity.Segment, byClass map[string][]float64, order []string) *entity.SpeciesStat {
	var best *entity.SpeciesStat
	for _, s := range order {
		n := 0
		for _, t := range byClass[s] {
			if t >= seg.StartTime && t <= seg.EndTime {
				n++
			}
		}
		if n > 0 && (best == nil || n > best.Count) {
			best = &entity.SpeciesStat{Species: s, Count: n}
		}
	}
	return best
}
