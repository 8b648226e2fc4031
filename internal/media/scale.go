package media

// ComputeScale picks the output frame size: capped at maxW x maxH,
// never upscaled, both dimensions forced even for codec compatibility.
// The bool reports whether the output differs from the source.
func ComputeScale(w, h, maxW, maxH int) (int, int, bool) {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}

	ow := int(float64(w)*scale) &^ 1
	oh := int(float64(h)*scale) &^ 1
	return ow, oh, ow != w || oh != h
}
