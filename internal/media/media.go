// Package media wraps OpenCV capture and raw-video writing via gocv.
package media

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"gocv.io/x/gocv"
)

// ErrMediaUnreadable is returned when a source cannot be opened or decoded.
var ErrMediaUnreadable = errors.New("media unreadable")

// Info is what the container reports about a video. FrameCount and FPS
// can be zero or negative for broken or streamed containers.
type Info struct {
	FPS        float64
	FrameCount int
	Width      int
	Height     int
}

// Duration returns the media length in seconds, or nil when fps or
// frame count is unknown.
func (i Info) Duration() *float64 {
	if i.FPS <= 0 || i.FrameCount <= 0 {
		return nil
	}
	d := float64(i.FrameCount) / i.FPS
	return &d
}

// Source decodes frames from a video file.
type Source struct {
	cap  *gocv.VideoCapture
	info Info
	mat  gocv.Mat
}

func OpenSource(path string) (*Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnreadable, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrMediaUnreadable, path)
	}

	return &Source{
		cap: cap,
		info: Info{
			FPS:        cap.Get(gocv.VideoCaptureFPS),
			FrameCount: int(cap.Get(gocv.VideoCaptureFrameCount)),
			Width:      int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(cap.Get(gocv.VideoCaptureFrameHeight)),
		},
		mat: gocv.NewMat(),
	}, nil
}

func (s *Source) Info() Info { return s.info }

// Next decodes the next frame; io.EOF at end of stream.
func (s *Source) Next() (*image.RGBA, error) {
	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

func (s *Source) Close() error {
	_ = s.mat.Close()
	return s.cap.Close()
}

// Sink writes annotated frames into an MJPG intermediate; the external
// transcoder turns it into the web-compatible deliverable.
type Sink struct {
	w *gocv.VideoWriter
}

func NewSink(path string, fps float64, width, height int) (*Sink, error) {
	if fps <= 0 {
		fps = 25 // writer needs a rate even when the container lies
	}
	w, err := gocv.VideoWriterFile(path, "MJPG", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return &Sink{w: w}, nil
}

func (s *Sink) Write(frame *image.RGBA) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer mat.Close()

	gocv.CvtColor(mat, &mat, gocv.ColorRGBToBGR)
	return s.w.Write(mat)
}

func (s *Sink) Close() error { return s.w.Close() }
