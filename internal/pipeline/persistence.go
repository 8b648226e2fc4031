// Package pipeline drives frames through detection, TTL smoothing and
// overlay drawing.
package pipeline

import "bird-analysis-service/internal/entity"

// Persistence smooths overlays across skipped frames. Sampling at a
// stride leaves gaps between detector calls; drawing only live results
// makes boxes flicker. Persistence keeps the last non-empty detection
// set on screen until it has gone ttlMultiplier*stride frames without a
// refresh. An empty sampled frame does not reset the clock, it just
// fails to refresh it.
type Persistence struct {
	stride        int
	ttlMultiplier int

	boxes     []entity.DetectionBox
	lastFresh int
}

func NewPersistence(stride, ttlMultiplier int) *Persistence {
	if stride <= 0 {
		stride = 1
	}
	if ttlMultiplier <= 0 {
		ttlMultiplier = 1
	}
	return &Persistence{stride: stride, ttlMultiplier: ttlMultiplier, lastFresh: -1}
}

// Update advances to frameIdx and returns the detection set to draw.
// sampled says whether the detector ran on this frame; detections is
// its output (possibly empty).
func (p *Persistence) Update(frameIdx int, sampled bool, detections []entity.DetectionBox) []entity.DetectionBox {
	if sampled && len(detections) > 0 {
		p.boxes = detections
		p.lastFresh = frameIdx
		return p.boxes
	}

	if p.lastFresh >= 0 && frameIdx-p.lastFresh > p.ttlMultiplier*p.stride {
		p.boxes = nil
	}
	return p.boxes
}
