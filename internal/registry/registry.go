package registry

import (
	"sync"
	"time"

	"bird-analysis-service/internal/entity"
)

// Registry is the in-memory job table, keyed by content digest.
// All mutation goes through the registry lock; reads return copies.
// The registry is identity-agnostic: ownership checks belong to callers.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*entity.Job
	now  func() time.Time
}

func New() *Registry {
	return &Registry{
		jobs: make(map[string]*entity.Job),
		now:  time.Now,
	}
}

// Update is a partial merge into an existing job. Nil fields are left alone.
type Update struct {
	State    *entity.JobState
	Progress *float64
	Message  *string
	Result   *entity.ResultDocument
	Error    *string
}

// Submit claims the digest if it is absent and returns a snapshot of the
// job plus whether this call created it. A second submit for the same
// digest attaches to the existing job, whatever state it is in.
func (r *Registry) Submit(digest, owner string, params entity.AnalysisParams) (entity.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.jobs[digest]; ok {
		return *j, false
	}

	now := r.now().UTC()
	j := &entity.Job{
		ID:        digest,
		Owner:     owner,
		State:     entity.StateQueued,
		Message:   "queued",
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[digest] = j
	return *j, true
}

// Apply merges u into the job and bumps updated_at. It is a no-op for
// unknown digests and for jobs that already reached a terminal state.
// Progress never decreases and is clamped into [0, 1]. Setting a result
// clears any error and vice versa, so a terminal job carries exactly one
// of the two.
func (r *Registry) Apply(digest string, u Update) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[digest]
	if !ok || j.Terminal() {
		return false
	}

	if u.State != nil {
		j.State = *u.State
	}
	if u.Progress != nil {
		p := *u.Progress
		if p > 1 {
			p = 1
		}
		if p > j.Progress {
			j.Progress = p
		}
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Result != nil {
		j.Result = u.Result
		j.Error = nil
	}
	if u.Error != nil {
		j.Error = u.Error
		j.Result = nil
	}
	j.UpdatedAt = r.now().UTC()
	return true
}

// Get returns a snapshot of the job for the digest.
func (r *Registry) Get(digest string) (entity.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[digest]
	if !ok {
		return entity.Job{}, false
	}
	return *j, true
}
