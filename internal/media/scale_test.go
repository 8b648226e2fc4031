package media

import "testing"

func TestComputeScale(t *testing.T) {
	cases := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
		scaled     bool
	}{
		{"fits untouched", 640, 480, 1280, 720, 640, 480, false},
		{"width bound", 1920, 1080, 1280, 720, 1280, 720, true},
		{"height bound", 1000, 1000, 1280, 720, 720, 720, true},
		{"never upscaled", 320, 240, 1280, 720, 320, 240, false},
		{"no limits", 1920, 1080, 0, 0, 1920, 1080, false},
		{"odd source forced even", 641, 481, 1280, 720, 640, 480, true},
		{"4k both bound", 3840, 2160, 1280, 720, 1280, 720, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, scaled := ComputeScale(tc.w, tc.h, tc.maxW, tc.maxH)
			if w != tc.wantW || h != tc.wantH || scaled != tc.scaled {
				t.Fatalf("ComputeScale(%d,%d,%d,%d) = (%d,%d,%v), want (%d,%d,%v)",
					tc.w, tc.h, tc.maxW, tc.maxH, w, h, scaled, tc.wantW, tc.wantH, tc.scaled)
			}
		})
	}
}
