package pipeline

import (
	"testing"

	"bird-analysis-service/internal/entity"
)

func boxes(species string) []entity.DetectionBox {
	return []entity.DetectionBox{{Species: species, Confidence: 0.9}}
}

// With stride S and multiplier M, a detection at frame F stays on the
// overlay exactly while k <= M*S, given no sampled frame refreshes it.
func TestPersistence_TTLBoundary(t *testing.T) {
	const stride, mult = 5, 2

	for k := 0; k <= 15; k++ {
		p := NewPersistence(stride, mult)
		p.Update(0, true, boxes("sparrow"))

		var got []entity.DetectionBox
		for f := 1; f <= k; f++ {
			got = p.Update(f, f%stride == 0, nil)
		}
		if k == 0 {
			got = p.Update(0, true, boxes("sparrow"))
		}

		wantLive := k <= mult*stride
		if (len(got) > 0) != wantLive {
			t.Fatalf("k=%d: expected live=%v, got %d boxes", k, wantLive, len(got))
		}
	}
}

func TestPersistence_FreshDetectionsReplace(t *testing.T) {
	p := NewPersistence(5, 2)
	p.Update(0, true, boxes("sparrow"))
	got := p.Update(5, true, boxes("crow"))

	if len(got) != 1 || got[0].Species != "crow" {
		t.Fatalf("expected crow, got %#v", got)
	}
}

// An empty sampled frame neither clears nor refreshes: the old set
// survives until the TTL runs out.
func TestPersistence_EmptySampleDoesNotRefresh(t *testing.T) {
	p := NewPersistence(5, 2)
	p.Update(0, true, boxes("sparrow"))

	if got := p.Update(5, true, nil); len(got) != 1 {
		t.Fatalf("frame 5: expected sparrow to persist, got %#v", got)
	}
	if got := p.Update(10, true, nil); len(got) != 1 {
		t.Fatalf("frame 10: expected sparrow at the TTL edge, got %#v", got)
	}
	if got := p.Update(11, false, nil); len(got) != 0 {
		t.Fatalf("frame 11: expected sparrow expired, got %#v", got)
	}
}

func TestPersistence_NoDetectionsEver(t *testing.T) {
	p := NewPersistence(3, 2)
	for f := 0; f < 20; f++ {
		if got := p.Update(f, f%3 == 0, nil); len(got) != 0 {
			t.Fatalf("frame %d: expected empty overlay, got %#v", f, got)
		}
	}
}
