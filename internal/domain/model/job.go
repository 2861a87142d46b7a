package model

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// SourceLocation points at the input object in the blob store.
type SourceLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// OutputInfo is the structured result persisted on a completed job.
type OutputInfo struct {
	VersionID   string   `json:"version_id"`
	ManifestKey string   `json:"manifest_key"`
	Qualities   []string `json:"qualities"`
	FileCount   int      `json:"file_count"`
}

// TranscodeJob is one unit of work: produce the target renditions for one
// asset from one source object. Rows are created externally in 'pending'
// state; only the worker currently holding the claim mutates them.
type TranscodeJob struct {
	ID              string
	AssetID         string
	Source          SourceLocation
	TargetQualities []string
	Status          JobStatus
	Priority        int
	WorkerID        string
	Attempts        int
	Progress        int
	Stage           string
	ErrorMessage    string
	Output          *OutputInfo
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the job can never be claimed again.
func (j *TranscodeJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
