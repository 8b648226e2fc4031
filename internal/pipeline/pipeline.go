package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"sort"
	"strings"

	xdraw "golang.org/x/image/draw"

	"bird-analysis-service/internal/analysis"
	"bird-analysis-service/internal/entity"
)

// FrameSource yields decoded frames in order; io.EOF ends the stream.
type FrameSource interface {
	Next() (*image.RGBA, error)
}

// FrameSink receives annotated frames in output order.
type FrameSink interface {
	Write(frame *image.RGBA) error
}

// Detector is the opaque object-detection capability. Boxes come back
// in source-frame pixel coordinates.
type Detector interface {
	Detect(ctx context.Context, frame image.Image, confidence float64) ([]entity.DetectionBox, error)
}

// Config drives one pipeline run.
type Config struct {
	Stride        int
	Confidence    float64
	TTLMultiplier int

	FPS        float64
	FrameCount int // 0 when the container does not report it
	SrcWidth   int
	SrcHeight  int
	OutWidth   int // equal to Src* when no downscale is configured
	OutHeight  int

	// OnFrame is called after each frame is written; the caller owns
	// progress reporting.
	OnFrame func(frameIdx int)
}

// Result accumulates everything the analytics step needs.
type Result struct {
	FramesProcessed int
	Timestamps      []float64
	ByClass         map[string][]float64
	Counts          map[string]int
	ClassOrder      []string // first-seen order, the tie-break axis
	KeyFrames       []entity.KeyFrame
	Observations    []entity.FrameObservation
}

const hudTopSpecies = 3

// Run reads every frame, invokes the detector at the stride, applies
// TTL persistence, draws overlays and writes the annotated frame.
// Frames are processed strictly sequentially; persistence depends on
// frame order.
func Run(ctx context.Context, src FrameSource, det Detector, sink FrameSink, cfg Config) (*Result, error) {
	if cfg.Stride <= 0 {
		cfg.Stride = 1
	}

	scaled := cfg.OutWidth != cfg.SrcWidth || cfg.OutHeight != cfg.SrcHeight
	sx := float64(cfg.OutWidth) / float64(cfg.SrcWidth)
	sy := float64(cfg.OutHeight) / float64(cfg.SrcHeight)

	persist := NewPersistence(cfg.Stride, cfg.TTLMultiplier)
	res := &Result{
		ByClass: make(map[string][]float64),
		Counts:  make(map[string]int),
	}
	seenSignatures := make(map[string]struct{})

	for frameIdx := 0; ; frameIdx++ {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frameIdx, err)
		}

		out := frame
		if scaled {
			out = image.NewRGBA(image.Rect(0, 0, cfg.OutWidth, cfg.OutHeight))
			xdraw.ApproxBiLinear.Scale(out, out.Bounds(), frame, frame.Bounds(), xdraw.Over, nil)
		}

		sampled := frameIdx%cfg.Stride == 0
		var detections []entity.DetectionBox
		if sampled {
			detections, err = det.Detect(ctx, frame, cfg.Confidence)
			if err != nil {
				return nil, fmt.Errorf("detect frame %d: %w", frameIdx, err)
			}
			if scaled {
				for i := range detections {
					detections[i].OutBox = &entity.PixelBox{
						X1: detections[i].Box.X1 * sx,
						Y1: detections[i].Box.Y1 * sy,
						X2: detections[i].Box.X2 * sx,
						Y2: detections[i].Box.Y2 * sy,
					}
				}
			}
			res.observe(frameIdx, cfg, detections)
		}

		live := persist.Update(frameIdx, sampled, detections)
		drawDetections(out, live)

		top := analysis.RankSpecies(res.Counts, res.ClassOrder)
		if len(top) > hudTopSpecies {
			top = top[:hudTopSpecies]
		}
		drawHUD(out, len(live), top)

		if sampled && len(detections) > 0 {
			sig := classSignature(detections)
			if _, seen := seenSignatures[sig]; !seen {
				seenSignatures[sig] = struct{}{}
				res.KeyFrames = append(res.KeyFrames, entity.KeyFrame{
					FrameIndex: frameIdx,
					Time:       timestamp(frameIdx, cfg.FPS),
					Detections: detections,
					ImageB64:   encodeKeyFrame(out),
				})
			}
		}

		if err := sink.Write(out); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", frameIdx, err)
		}
		res.FramesProcessed++
		if cfg.OnFrame != nil {
			cfg.OnFrame(frameIdx)
		}
	}

	return res, nil
}

// classSignature identifies the species combination of one sampled
// frame: the sorted class list, duplicates included. The first frame
// of each new signature becomes a key frame.
func classSignature(detections []entity.DetectionBox) string {
	classes := make([]string, len(detections))
	for i, d := range detections {
		classes[i] = d.Species
	}
	sort.Strings(classes)
	return strings.Join(classes, "|")
}

// encodeKeyFrame renders the annotated frame as a base64 JPEG. An
// encode failure drops the image, never the key frame.
func encodeKeyFrame(img *image.RGBA) string {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// timestamp converts a frame index to seconds; nil when fps is unknown.
func timestamp(frameIdx int, fps float64) *float64 {
	if fps <= 0 {
		return nil
	}
	t := float64(frameIdx) / fps
	return &t
}

// observe records a sampled frame's detections into the accumulators.
// Timestamps are only defined when fps > 0.
func (r *Result) observe(frameIdx int, cfg Config, detections []entity.DetectionBox) {
	ts := timestamp(frameIdx, cfg.FPS)

	if len(detections) > 0 {
		r.Observations = append(r.Observations, entity.FrameObservation{
			FrameIndex: frameIdx,
			Time:       ts,
			Detections: detections,
		})
		if ts != nil {
			r.Timestamps = append(r.Timestamps, *ts)
		}
	}

	for _, d := range detections {
		if _, seen := r.Counts[d.Species]; !seen {
			r.ClassOrder = append(r.ClassOrder, d.Species)
		}
		r.Counts[d.Species]++
		if ts != nil {
			r.ByClass[d.Species] = append(r.ByClass[d.Species], *ts)
		}
	}
}
