package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"bird-analysis-service/internal/cache"
	"bird-analysis-service/internal/entity"
	"bird-analysis-service/internal/ingest"
	"bird-analysis-service/internal/registry"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrNotOwner    = errors.New("job belongs to another user")
)

// JobRegistry is the port over the in-memory job table.
type JobRegistry interface {
	Submit(digest, owner string, params entity.AnalysisParams) (entity.Job, bool)
	Apply(digest string, u registry.Update) bool
	Get(digest string) (entity.Job, bool)
}

// OutputCache is the port over the content-addressed artifact store.
type OutputCache interface {
	Lookup(digest string) (*cache.Entry, bool)
	Result(digest string) (*entity.ResultDocument, error)
}

// Service is the submit/poll surface of the analysis pipeline.
type Service struct {
	reg   JobRegistry
	cache OutputCache
	queue Queue

	tmpDir         string
	maxUploadBytes int64
	defaultConf    float64
	defaultStride  int
}

func New(reg JobRegistry, cache OutputCache, queue Queue, tmpDir string, maxUploadBytes int64, defaultConf float64, defaultStride int) *Service {
	return &Service{
		reg:            reg,
		cache:          cache,
		queue:          queue,
		tmpDir:         tmpDir,
		maxUploadBytes: maxUploadBytes,
		defaultConf:    defaultConf,
		defaultStride:  defaultStride,
	}
}

// Submit spools the upload, hashes it, and either short-circuits via
// the cache or claims a queued job for the digest. The bool reports a
// cache hit. The call never waits on job completion.
func (s *Service) Submit(ctx context.Context, owner string, file io.Reader, filename string, conf float64, stride int) (entity.Job, bool, error) {
	if conf <= 0 || conf > 1 {
		conf = s.defaultConf
	}
	if stride <= 0 {
		stride = s.defaultStride
	}

	up, err := ingest.SaveUpload(file, s.tmpDir, s.maxUploadBytes)
	if err != nil {
		return entity.Job{}, false, err
	}

	params := entity.AnalysisParams{
		SourcePath:  up.Path,
		Filename:    filename,
		Confidence:  conf,
		Stride:      stride,
		UploadBytes: up.Size,
	}

	if _, ok := s.cache.Lookup(up.Digest); ok {
		_ = os.Remove(up.Path)
		return s.jobFromCache(up.Digest, owner, params)
	}

	job, created := s.reg.Submit(up.Digest, owner, params)
	if !created {
		// Same content already submitted; attach to the live job.
		_ = os.Remove(up.Path)
		log.Printf("[service] digest=%s attach state=%s", up.Digest, job.State)
		return job, job.State == entity.StateDone, nil
	}

	if err := s.queue.Enqueue(ctx, up.Digest); err != nil {
		_ = os.Remove(up.Path)
		msg := fmt.Sprintf("could not enqueue: %v", err)
		state := entity.StateError
		s.reg.Apply(up.Digest, registry.Update{State: &state, Message: &msg, Error: &msg})
		return entity.Job{}, false, err
	}

	log.Printf("[service] digest=%s queued owner=%s size=%d conf=%.2f stride=%d",
		up.Digest, owner, up.Size, conf, stride)
	job, _ = s.reg.Get(up.Digest)
	return job, false, nil
}

// jobFromCache surfaces a cache hit as an immediately-done job.
func (s *Service) jobFromCache(digest, owner string, params entity.AnalysisParams) (entity.Job, bool, error) {
	doc, err := s.cache.Result(digest)
	if err != nil {
		return entity.Job{}, false, fmt.Errorf("cache hit unreadable: %w", err)
	}

	job, _ := s.reg.Submit(digest, owner, params)
	if !job.Terminal() {
		state := entity.StateDone
		progress := 1.0
		msg := "done (cached)"
		s.reg.Apply(digest, registry.Update{
			State:    &state,
			Progress: &progress,
			Message:  &msg,
			Result:   doc,
		})
		job, _ = s.reg.Get(digest)
	}
	log.Printf("[service] digest=%s cache_hit owner=%s", digest, owner)
	return job, true, nil
}

// GetJob returns a snapshot of the job for polling. Ownership is
// enforced here; the registry itself is identity-agnostic.
func (s *Service) GetJob(digest, owner string) (entity.Job, error) {
	job, ok := s.reg.Get(digest)
	if !ok {
		return entity.Job{}, ErrJobNotFound
	}
	if job.Owner != owner {
		return entity.Job{}, ErrNotOwner
	}
	return job, nil
}

// VideoPath returns the cached annotated video for a finished analysis.
func (s *Service) VideoPath(videoID string) (string, bool) {
	entry, ok := s.cache.Lookup(videoID)
	if !ok {
		return "", false
	}
	return entry.VideoPath, true
}
