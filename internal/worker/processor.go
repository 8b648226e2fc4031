package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"bird-analysis-service/internal/cache"
	"bird-analysis-service/internal/entity"
	"bird-analysis-service/internal/media"
	"bird-analysis-service/internal/pipeline"
	"bird-analysis-service/internal/registry"
	"bird-analysis-service/internal/transcode"
)

// ErrDurationExceeded is returned when the media is longer than policy allows.
var ErrDurationExceeded = errors.New("video too long")

// JobRegistry is the port over the job table.
type JobRegistry interface {
	Apply(digest string, u registry.Update) bool
	Get(digest string) (entity.Job, bool)
}

// OutputCache is the port over the artifact store.
type OutputCache interface {
	Store(digest, videoSrc string, doc *entity.ResultDocument) (*cache.Entry, error)
}

// Transcoder is the external re-encode collaborator. Invoked once per
// job; a failure is reported on the job, not retried.
type Transcoder interface {
	Transcode(ctx context.Context, rawPath string) (string, error)
}

// MediaSource is a decoded frame source with container metadata.
type MediaSource interface {
	Info() media.Info
	Next() (*image.RGBA, error)
	Close() error
}

// FrameSink is a raw annotated-frame sink.
type FrameSink interface {
	Write(frame *image.RGBA) error
	Close() error
}

// Media opens sources and sinks; a port so tests can run the full
// state machine without OpenCV.
type Media interface {
	OpenSource(path string) (MediaSource, error)
	NewSink(path string, fps float64, width, height int) (FrameSink, error)
}

// RecordStore persists finished analyses per owner. Best effort: the
// job finishes whether or not the store is reachable.
type RecordStore interface {
	SaveAnalysis(ctx context.Context, a entity.Analysis) error
}

// Limits are the runner's policy knobs.
type Limits struct {
	MaxDuration   time.Duration
	MaxWidth      int
	MaxHeight     int
	GapTolerance  float64 // seconds between detections within one segment
	TTLMultiplier int     // stride intervals a stale detection stays drawn
}

// Processor runs one analysis job to a terminal state: decode, detect,
// annotate, transcode, derive analytics, cache the artifacts.
type Processor struct {
	reg        JobRegistry
	cache      OutputCache
	media      Media
	detector   pipeline.Detector
	transcoder Transcoder
	records    RecordStore // nil when no persistent store is configured
	tmpDir     string
	limits     Limits
}

func NewProcessor(reg JobRegistry, cache OutputCache, m Media, det pipeline.Detector, tr Transcoder, records RecordStore, tmpDir string, limits Limits) *Processor {
	return &Processor{
		reg:        reg,
		cache:      cache,
		media:      m,
		detector:   det,
		transcoder: tr,
		records:    records,
		tmpDir:     tmpDir,
		limits:     limits,
	}
}

// Process drives the digest's job from queued to done or error. The
// outcome always lands on the job record; nothing unwinds into the
// polling path, and the job never stays running after this returns.
func (p *Processor) Process(ctx context.Context, digest string) error {
	start := time.Now()

	job, ok := p.reg.Get(digest)
	if !ok {
		log.Printf("[worker] digest=%s unknown job, dropping", digest)
		return nil
	}
	if job.Terminal() {
		return nil
	}

	p.transition(digest, entity.StateRunning, 0.02, "opening video")

	doc, runErr := p.runGuarded(ctx, digest, job.Params)
	if runErr != nil {
		msg := failureMessage(runErr)
		state := entity.StateError
		p.reg.Apply(digest, registry.Update{State: &state, Message: &msg, Error: &msg})
		log.Printf("[worker] digest=%s status=error duration_ms=%d error=%s",
			digest, time.Since(start).Milliseconds(), msg)
		return runErr
	}

	state := entity.StateDone
	progress := 1.0
	msg := "done"
	p.reg.Apply(digest, registry.Update{State: &state, Progress: &progress, Message: &msg, Result: doc})
	log.Printf("[worker] digest=%s status=done duration_ms=%d frames=%d",
		digest, time.Since(start).Milliseconds(), doc.VideoInfo.FrameCount)

	p.persistRecord(ctx, job, doc)
	return nil
}

// runGuarded converts a panicking step into an ordinary failure so the
// job still reaches a terminal state.
func (p *Processor) runGuarded(ctx context.Context, digest string, params entity.AnalysisParams) (doc *entity.ResultDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("internal error: %v", r)
		}
	}()
	return p.run(ctx, digest, params)
}

func (p *Processor) run(ctx context.Context, digest string, params entity.AnalysisParams) (*entity.ResultDocument, error) {
	defer os.Remove(params.SourcePath)

	src, err := p.media.OpenSource(params.SourcePath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := src.Info()
	if d := info.Duration(); d != nil && p.limits.MaxDuration > 0 && *d > p.limits.MaxDuration.Seconds() {
		return nil, fmt.Errorf("%w: %.1fs exceeds the %.0fs limit", ErrDurationExceeded, *d, p.limits.MaxDuration.Seconds())
	}
	p.progress(digest, 0.05, "probing video")

	outW, outH, scaled := media.ComputeScale(info.Width, info.Height, p.limits.MaxWidth, p.limits.MaxHeight)

	rawPath := filepath.Join(p.tmpDir, digest+".raw.avi")
	defer os.Remove(rawPath)

	sink, err := p.media.NewSink(rawPath, info.FPS, outW, outH)
	if err != nil {
		return nil, err
	}
	sinkOpen := true
	defer func() {
		if sinkOpen {
			_ = sink.Close()
		}
	}()

	p.progress(digest, 0.1, "analyzing frames")
	res, err := pipeline.Run(ctx, src, p.detector, sink, pipeline.Config{
		Stride:        params.Stride,
		Confidence:    params.Confidence,
		TTLMultiplier: p.limits.TTLMultiplier,
		FPS:           info.FPS,
		FrameCount:    info.FrameCount,
		SrcWidth:      info.Width,
		SrcHeight:     info.Height,
		OutWidth:      outW,
		OutHeight:     outH,
		OnFrame:       p.frameProgress(digest, info.FrameCount),
	})
	if err != nil {
		return nil, err
	}

	sinkOpen = false
	if err := sink.Close(); err != nil {
		return nil, fmt.Errorf("close sink: %w", err)
	}

	p.progress(digest, 0.85, "transcoding")
	finalPath, err := p.transcoder.Transcode(ctx, rawPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(finalPath) // no-op once the cache has claimed it

	p.progress(digest, 0.9, "computing analytics")
	doc := buildResult(digest, params, info, outW, outH, scaled, res, p.limits.GapTolerance)

	p.progress(digest, 0.95, "caching artifacts")
	if _, err := p.cache.Store(digest, finalPath, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// frameProgress maps frame completion onto the 0.1..0.8 progress band.
// When the container does not report a frame count, progress stays put
// and the message counts frames instead.
func (p *Processor) frameProgress(digest string, frameCount int) func(int) {
	return func(idx int) {
		if frameCount > 0 {
			pr := 0.1 + 0.7*float64(idx+1)/float64(frameCount)
			p.progress(digest, pr, fmt.Sprintf("frame %d/%d", idx+1, frameCount))
			return
		}
		if (idx+1)%100 == 0 {
			msg := fmt.Sprintf("processed %d frames", idx+1)
			p.reg.Apply(digest, registry.Update{Message: &msg})
		}
	}
}

func (p *Processor) transition(digest string, state entity.JobState, progress float64, msg string) {
	p.reg.Apply(digest, registry.Update{State: &state, Progress: &progress, Message: &msg})
}

func (p *Processor) progress(digest string, progress float64, msg string) {
	p.reg.Apply(digest, registry.Update{Progress: &progress, Message: &msg})
}

// failureMessage classifies a run failure into the human-readable text
// stored on the job. Unclassified failures keep their message verbatim.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, media.ErrMediaUnreadable):
		return "could not open or decode the video"
	case errors.Is(err, ErrDurationExceeded):
		return err.Error()
	case errors.Is(err, transcode.ErrTranscodeFailed):
		return err.Error()
	default:
		return err.Error()
	}
}

// persistRecord writes the finished analysis to the external record
// store. Failures are logged, never surfaced on the job.
func (p *Processor) persistRecord(ctx context.Context, job entity.Job, doc *entity.ResultDocument) {
	if p.records == nil {
		return
	}

	a := entity.Analysis{
		UserID:     job.Owner,
		VideoID:    doc.VideoID,
		MP4Path:    doc.VideoURL,
		ConfUsed:   job.Params.Confidence,
		StrideUsed: job.Params.Stride,
	}
	if raw, err := marshalResult(doc); err == nil {
		a.ResultJSON = raw
	}
	if err := p.records.SaveAnalysis(ctx, a); err != nil {
		log.Printf("[worker] digest=%s record store error=%v", job.ID, err)
	}
}
