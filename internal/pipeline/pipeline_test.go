package pipeline_test

import (
	"context"
	"image"
	"io"
	"testing"

	"bird-analysis-service/internal/entity"
	"bird-analysis-service/internal/pipeline"
)

type fakeSource struct {
	frames int
	w, h   int
	read   int
}

func (s *fakeSource) Next() (*image.RGBA, error) {
	if s.read >= s.frames {
		return nil, io.EOF
	}
	s.read++
	return image.NewRGBA(image.Rect(0, 0, s.w, s.h)), nil
}

// fakeDetector returns canned detections keyed by sampled-call order.
type fakeDetector struct {
	byFrame map[int][]entity.DetectionBox
	call    int
}

func (d *fakeDetector) Detect(ctx context.Context, frame image.Image, conf float64) ([]entity.DetectionBox, error) {
	dets := d.byFrame[d.call]
	d.call++
	return dets, nil
}

type fakeSink struct {
	frames []*image.RGBA
}

func (s *fakeSink) Write(f *image.RGBA) error {
	s.frames = append(s.frames, f)
	return nil
}

func det(species string, x1, y1, x2, y2 float64) entity.DetectionBox {
	return entity.DetectionBox{
		Species:    species,
		Confidence: 0.8,
		Box:        entity.PixelBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func TestRun_AccumulatesDetections(t *testing.T) {
	src := &fakeSource{frames: 10, w: 64, h: 48}
	sink := &fakeSink{}
	d := &fakeDetector{byFrame: map[int][]entity.DetectionBox{
		0: {det("sparrow", 1, 1, 10, 10)},
		1: {det("sparrow", 2, 2, 12, 12), det("crow", 20, 20, 30, 30)},
	}}

	var frameCalls []int
	res, err := pipeline.Run(context.Background(), src, d, sink, pipeline.Config{
		Stride:        5,
		Confidence:    0.25,
		TTLMultiplier: 2,
		FPS:           10,
		FrameCount:    10,
		SrcWidth:      64,
		SrcHeight:     48,
		OutWidth:      64,
		OutHeight:     48,
		OnFrame:       func(idx int) { frameCalls = append(frameCalls, idx) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.FramesProcessed != 10 {
		t.Fatalf("expected 10 frames, got %d", res.FramesProcessed)
	}
	if len(sink.frames) != 10 {
		t.Fatalf("expected 10 written frames, got %d", len(sink.frames))
	}
	if len(frameCalls) != 10 || frameCalls[0] != 0 || frameCalls[9] != 9 {
		t.Fatalf("frame callback wrong: %v", frameCalls)
	}

	// frames 0 and 5 were sampled; both had detections
	if len(res.Timestamps) != 2 || res.Timestamps[0] != 0.0 || res.Timestamps[1] != 0.5 {
		t.Fatalf("timestamps wrong: %v", res.Timestamps)
	}
	if res.Counts["sparrow"] != 2 || res.Counts["crow"] != 1 {
		t.Fatalf("counts wrong: %v", res.Counts)
	}
	if len(res.ClassOrder) != 2 || res.ClassOrder[0] != "sparrow" || res.ClassOrder[1] != "crow" {
		t.Fatalf("class order wrong: %v", res.ClassOrder)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(res.Observations))
	}
}

func TestRun_NoFPSMeansNoTimestamps(t *testing.T) {
	src := &fakeSource{frames: 6, w: 32, h: 32}
	sink := &fakeSink{}
	d := &fakeDetector{byFrame: map[int][]entity.DetectionBox{
		0: {det("sparrow", 1, 1, 5, 5)},
		1: {det("sparrow", 1, 1, 5, 5)},
	}}

	res, err := pipeline.Run(context.Background(), src, d, sink, pipeline.Config{
		Stride:     3,
		FPS:        0,
		SrcWidth:   32,
		SrcHeight:  32,
		OutWidth:   32,
		OutHeight:  32,
		FrameCount: 6,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Timestamps) != 0 {
		t.Fatalf("expected no timestamps without fps, got %v", res.Timestamps)
	}
	if res.Counts["sparrow"] != 2 {
		t.Fatalf("counts should still accumulate: %v", res.Counts)
	}
	for _, obs := range res.Observations {
		if obs.Time != nil {
			t.Fatalf("expected nil observation time, got %v", *obs.Time)
		}
	}
}

func TestRun_ScalesBoxesToOutputFrame(t *testing.T) {
	src := &fakeSource{frames: 1, w: 100, h: 100}
	sink := &fakeSink{}
	d := &fakeDetector{byFrame: map[int][]entity.DetectionBox{
		0: {det("sparrow", 10, 20, 50, 60)},
	}}

	res, err := pipeline.Run(context.Background(), src, d, sink, pipeline.Config{
		Stride:    1,
		FPS:       25,
		SrcWidth:  100,
		SrcHeight: 100,
		OutWidth:  50,
		OutHeight: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := sink.frames[0]
	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 50 {
		t.Fatalf("expected 50x50 output frame, got %v", out.Bounds())
	}

	box := res.Observations[0].Detections[0]
	if box.OutBox == nil {
		t.Fatal("expected scaled output box")
	}
	if box.OutBox.X1 != 5 || box.OutBox.Y1 != 10 || box.OutBox.X2 != 25 || box.OutBox.Y2 != 30 {
		t.Fatalf("scaled box wrong: %#v", *box.OutBox)
	}
}

func TestRun_KeyFramesOncePerSpeciesCombination(t *testing.T) {
	src := &fakeSource{frames: 10, w: 40, h: 40}
	sink := &fakeSink{}
	// sampled frames 0,2,4,6,8 -> detector calls 0..4
	d := &fakeDetector{byFrame: map[int][]entity.DetectionBox{
		0: {det("sparrow", 1, 1, 10, 10)},
		1: {det("sparrow", 2, 2, 11, 11)},                           // same combination, no key frame
		2: {det("crow", 5, 5, 15, 15), det("sparrow", 1, 1, 9, 9)},  // new pair
		3: {det("sparrow", 3, 3, 12, 12), det("crow", 6, 6, 16, 16)}, // same pair, order ignored
		4: {det("sparrow", 1, 1, 8, 8), det("sparrow", 20, 20, 30, 30)}, // two sparrows is a new combination
	}}

	res, err := pipeline.Run(context.Background(), src, d, sink, pipeline.Config{
		Stride:     2,
		FPS:        10,
		FrameCount: 10,
		SrcWidth:   40,
		SrcHeight:  40,
		OutWidth:   40,
		OutHeight:  40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.KeyFrames) != 3 {
		t.Fatalf("expected 3 key frames, got %d", len(res.KeyFrames))
	}
	for i, wantIdx := range []int{0, 4, 8} {
		kf := res.KeyFrames[i]
		if kf.FrameIndex != wantIdx {
			t.Fatalf("key frame %d at index %d, want %d", i, kf.FrameIndex, wantIdx)
		}
		if kf.Time == nil || *kf.Time != float64(wantIdx)/10 {
			t.Fatalf("key frame %d time wrong: %v", i, kf.Time)
		}
		if len(kf.Detections) == 0 {
			t.Fatalf("key frame %d lost its detections", i)
		}
		if kf.ImageB64 == "" {
			t.Fatalf("key frame %d missing the annotated still", i)
		}
	}
}

func TestRun_OverlayPersistsAcrossSkippedFrames(t *testing.T) {
	// detection only at frame 0; stride 2, multiplier 1 => frames 0..2
	// carry the overlay, frame 3 onward is clean
	src := &fakeSource{frames: 5, w: 40, h: 40}
	sink := &fakeSink{}
	d := &fakeDetector{byFrame: map[int][]entity.DetectionBox{
		0: {det("sparrow", 5, 5, 20, 20)},
	}}

	_, err := pipeline.Run(context.Background(), src, d, sink, pipeline.Config{
		Stride:        2,
		TTLMultiplier: 1,
		FPS:           10,
		SrcWidth:      40,
		SrcHeight:     40,
		OutWidth:      40,
		OutHeight:     40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the box border pixel at (5,5) is only colored while the overlay is live
	boxPix := func(f *image.RGBA) bool {
		r, g, b, _ := f.At(5, 5).RGBA()
		return r|g|b != 0
	}
	for idx, want := range []bool{true, true, true, false, false} {
		if got := boxPix(sink.frames[idx]); got != want {
			t.Fatalf("frame %d: overlay present=%v, want %v", idx, got, want)
		}
	}
}
