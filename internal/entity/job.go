package entity

import "time"

type JobState string

const (
	StateQueued  JobState = "queued"
	StateRunning JobState = "running"
	StateDone    JobState = "done"
	StateError   JobState = "error"
)

// AnalysisParams is everything the runner needs to process one upload.
type AnalysisParams struct {
	SourcePath  string  `json:"source_path"`
	Filename    string  `json:"filename"`
	Confidence  float64 `json:"confidence"`
	Stride      int     `json:"stride"`
	UploadBytes int64   `json:"upload_bytes"`
}

// Job is one video analysis, keyed by the content digest of the upload.
// The digest doubles as the output cache key, so a resubmission of the
// same bytes short-circuits instead of re-running.
type Job struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	State     JobState        `json:"state"`
	Progress  float64         `json:"progress"`
	Message   string          `json:"message"`
	Params    AnalysisParams  `json:"-"`
	Result    *ResultDocument `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Terminal reports whether the job reached done or error.
func (j Job) Terminal() bool {
	return j.State == StateDone || j.State == StateError
}
