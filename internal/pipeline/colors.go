package pipeline

import (
	"hash/fnv"
	"image/color"
)

// SpeciesColor maps a species name to a stable overlay color. The hash
// makes the mapping deterministic across frames and runs; each channel
// is biased into 64..223 so boxes stay visible on both dark and bright
// footage.
func SpeciesColor(species string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(species))
	sum := h.Sum32()

	mid := func(b uint32) uint8 { return uint8(64 + b%160) }
	return color.RGBA{
		R: mid(sum >> 16),
		G: mid(sum >> 8),
		B: mid(sum),
		A: 255,
	}
}
