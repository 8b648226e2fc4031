package analysis_test

import (
	"encoding/json"
	"testing"

	"bird-analysis-service/internal/analysis"
	"bird-analysis-service/internal/entity"
)

func TestRankSpecies_StableTieBreak(t *testing.T) {
	counts := map[string]int{"sparrow": 7, "hawk": 7, "crow": 2}
	order := []string{"sparrow", "hawk", "crow"} // sparrow seen first

	got := analysis.RankSpecies(counts, order)
	want := []entity.SpeciesStat{
		{Species: "sparrow", Count: 7},
		{Species: "hawk", Count: 7},
		{Species: "crow", Count: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d stats, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank %d: expected %#v, got %#v", i, want[i], got[i])
		}
	}
}

func TestRankSpecies_Empty(t *testing.T) {
	if got := analysis.RankSpecies(map[string]int{}, nil); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %#v", got)
	}
}

func TestSegmentsByClass(t *testing.T) {
	byClass := map[string][]float64{
		"sparrow": {0, 0.5, 5.0},
		"crow":    {2.0},
	}

	got := analysis.SegmentsByClass(byClass, 1.0, []string{"sparrow", "crow"})
	if len(got["sparrow"]) != 2 {
		t.Fatalf("sparrow: expected 2 segments, got %#v", got["sparrow"])
	}
	if len(got["crow"]) != 1 {
		t.Fatalf("crow: expected 1 segment, got %#v", got["crow"])
	}
}

func TestSegmentsByClass_NoTimestampsIsEmptyNotNil(t *testing.T) {
	// a species counted without timestamps (unknown fps) must serialize
	// as [] rather than null
	got := analysis.SegmentsByClass(map[string][]float64{}, 1.0, []string{"sparrow"})

	segs, ok := got["sparrow"]
	if !ok {
		t.Fatal("expected an entry for every ordered species")
	}
	if segs == nil || len(segs) != 0 {
		t.Fatalf("expected non-nil empty slice, got %#v", segs)
	}

	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"sparrow":[]}` {
		t.Fatalf("unexpected serialization: %s", raw)
	}
}

func TestDominantSpecies_InclusiveBounds(t *testing.T) {
	byClass := map[string][]float64{
		"sparrow": {1.0, 2.0},
		"crow":    {2.0, 2.5, 3.0},
	}
	seg := entity.Segment{StartTime: 1.0, EndTime: 3.0}

	got := analysis.DominantSpecies(seg, byClass, []string{"sparrow", "crow"})
	if got == nil || got.Species != "crow" || got.Count != 3 {
		t.Fatalf("expected crow(3), got %#v", got)
	}
}

func TestDominantSpecies_TieGoesToFirstSeen(t *testing.T) {
	byClass := map[string][]float64{
		"hawk":    {1.0, 2.0},
		"sparrow": {1.5, 2.5},
	}
	seg := entity.Segment{StartTime: 0, EndTime: 10}

	got := analysis.DominantSpecies(seg, byClass, []string{"hawk", "sparrow"})
	if got == nil || got.Species != "hawk" {
		t.Fatalf("expected hawk on tie, got %#v", got)
	}
}

func TestDominantSpecies_NoneInside(t *testing.T) {
	byClass := map[string][]float64{"sparrow": {10.0}}
	seg := entity.Segment{StartTime: 0, EndTime: 5}

	if got := analysis.DominantSpecies(seg, byClass, []string{"sparrow"}); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}
