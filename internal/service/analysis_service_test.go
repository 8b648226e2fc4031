package service_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"bird-analysis-service/internal/cache"
	"bird-analysis-service/internal/entity"
	"bird-analysis-service/internal/registry"
	"bird-analysis-service/internal/service"
)

type fakeCache struct {
	entries map[string]*cache.Entry
	docs    map[string]*entity.ResultDocument
}

func (f *fakeCache) Lookup(digest string) (*cache.Entry, bool) {
	e, ok := f.entries[digest]
	return e, ok
}

func (f *fakeCache) Result(digest string) (*entity.ResultDocument, error) {
	doc, ok := f.docs[digest]
	if !ok {
		return nil, errors.New("no document")
	}
	return doc, nil
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, digest string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, digest)
	return nil
}

func (f *fakeQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	return "", service.ErrEmpty
}

func (f *fakeQueue) Ack(ctx context.Context, digest string) error { return nil }

func digestOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newService(t *testing.T, reg *registry.Registry, fc *fakeCache, fq *fakeQueue) *service.Service {
	t.Helper()
	return service.New(reg, fc, fq, t.TempDir(), 1<<20, 0.25, 5)
}

func TestSubmit_QueuesNewContent(t *testing.T) {
	reg := registry.New()
	fc := &fakeCache{entries: map[string]*cache.Entry{}, docs: map[string]*entity.ResultDocument{}}
	fq := &fakeQueue{}
	svc := newService(t, reg, fc, fq)

	body := []byte("video-bytes")
	job, cached, err := svc.Submit(context.Background(), "alice", bytes.NewReader(body), "clip.mp4", 0, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if cached {
		t.Fatal("expected no cache hit")
	}
	if job.ID != digestOf(body) {
		t.Fatalf("job id should be the content digest, got %q", job.ID)
	}
	if job.State != entity.StateQueued {
		t.Fatalf("expected queued, got %s", job.State)
	}
	if job.Params.Confidence != 0.25 || job.Params.Stride != 5 {
		t.Fatalf("expected defaults applied, got %+v", job.Params)
	}
	if len(fq.enqueued) != 1 || fq.enqueued[0] != job.ID {
		t.Fatalf("expected digest enqueued once, got %v", fq.enqueued)
	}
}

func TestSubmit_CacheHitShortCircuits(t *testing.T) {
	body := []byte("already-analyzed")
	digest := digestOf(body)

	reg := registry.New()
	fc := &fakeCache{
		entries: map[string]*cache.Entry{digest: {VideoPath: "x.mp4", ResultPath: "x.json"}},
		docs:    map[string]*entity.ResultDocument{digest: {VideoID: digest}},
	}
	fq := &fakeQueue{}
	svc := newService(t, reg, fc, fq)

	job, cached, err := svc.Submit(context.Background(), "alice", bytes.NewReader(body), "clip.mp4", 0.5, 3)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !cached {
		t.Fatal("expected cache hit")
	}
	if job.State != entity.StateDone || job.Progress != 1 {
		t.Fatalf("expected finished job, got state=%s progress=%v", job.State, job.Progress)
	}
	if job.Result == nil || job.Result.VideoID != digest {
		t.Fatalf("expected cached result attached, got %+v", job.Result)
	}
	if len(fq.enqueued) != 0 {
		t.Fatal("cache hit must not enqueue work")
	}
}

func TestSubmit_DuplicateAttachesToLiveJob(t *testing.T) {
	body := []byte("in-flight")
	reg := registry.New()
	fc := &fakeCache{entries: map[string]*cache.Entry{}, docs: map[string]*entity.ResultDocument{}}
	fq := &fakeQueue{}
	svc := newService(t, reg, fc, fq)

	first, _, err := svc.Submit(context.Background(), "alice", bytes.NewReader(body), "a.mp4", 0, 0)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	second, cached, err := svc.Submit(context.Background(), "bob", bytes.NewReader(body), "b.mp4", 0, 0)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if cached {
		t.Fatal("a queued job is not a cache hit")
	}
	if second.ID != first.ID {
		t.Fatalf("same content must map to the same job: %q vs %q", second.ID, first.ID)
	}
	if second.Owner != "alice" {
		t.Fatalf("attach keeps the original owner, got %q", second.Owner)
	}
	if len(fq.enqueued) != 1 {
		t.Fatalf("duplicate submit must not enqueue again, got %v", fq.enqueued)
	}
}

func TestSubmit_QueueFullFailsJob(t *testing.T) {
	body := []byte("overload")
	reg := registry.New()
	fc := &fakeCache{entries: map[string]*cache.Entry{}, docs: map[string]*entity.ResultDocument{}}
	fq := &fakeQueue{err: service.ErrQueueFull}
	svc := newService(t, reg, fc, fq)

	_, _, err := svc.Submit(context.Background(), "alice", bytes.NewReader(body), "a.mp4", 0, 0)
	if !errors.Is(err, service.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	job, ok := reg.Get(digestOf(body))
	if !ok {
		t.Fatal("job should be recorded even when the queue rejects it")
	}
	if job.State != entity.StateError || job.Error == nil {
		t.Fatalf("expected error state, got %+v", job)
	}
}

func TestGetJob_Ownership(t *testing.T) {
	reg := registry.New()
	fc := &fakeCache{entries: map[string]*cache.Entry{}, docs: map[string]*entity.ResultDocument{}}
	svc := newService(t, reg, fc, &fakeQueue{})

	reg.Submit("d1", "alice", entity.AnalysisParams{})

	if _, err := svc.GetJob("d1", "alice"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if _, err := svc.GetJob("d1", "bob"); !errors.Is(err, service.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.GetJob("missing", "alice"); !errors.Is(err, service.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
