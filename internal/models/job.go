package models

import (
	"errors"
	"time"
)

// Job status values. The pipeline owns every transition except
// user_deleted, which the external account-deletion path sets.
const (
	JobStatusUploaded    = "uploaded"
	JobStatusProcessing  = "processing"
	JobStatusComplete    = "complete"
	JobStatusError       = "error"
	JobStatusUserDeleted = "user_deleted"
)

// Plan tiers. Each tier bounds how many screenshots a job may carry.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Error codes recorded on a job's error field.
const (
	ErrCodeTooManyFiles   = "too_many_files"
	ErrCodePipelineFailed = "pipeline_failed"
)

// ErrJobNotFound is returned by a JobStore when no document exists for the
// requested id. The dispatcher treats it as an already-handled delivery.
var ErrJobNotFound = errors.New("job not found")

// FileReference points at one uploaded screenshot in the uploads bucket.
// Immutable after job creation.
type FileReference struct {
	Path string `firestore:"path" json:"path"`
	Size int64  `firestore:"size,omitempty" json:"size,omitempty"`
	Mime string `firestore:"mime,omitempty" json:"mime,omitempty"`
}

// JobError is the bounded, user-visible failure detail on a job.
type JobError struct {
	Code    string `firestore:"code" json:"code"`
	Message string `firestore:"message" json:"message"`
}

// Job is the master record for one screenshot-analysis request.
// The upload-registration API creates it in status "uploaded"; from then on
// only the pipeline mutates it (status, reportId, error, warn).
type Job struct {
	ID           string          `firestore:"-" json:"jobId"`
	Plan         string          `firestore:"plan" json:"plan"`
	UserID       string          `firestore:"userId,omitempty" json:"userId,omitempty"`
	Files        []FileReference `firestore:"files" json:"files"`
	Instructions string          `firestore:"instructions,omitempty" json:"instructions,omitempty"`
	Status       string          `firestore:"status" json:"status"`
	ReportID     string          `firestore:"reportId,omitempty" json:"reportId,omitempty"`
	Error        *JobError       `firestore:"error,omitempty" json:"error,omitempty"`
	Warn         string          `firestore:"warn,omitempty" json:"warn,omitempty"`
	CreatedAt    time.Time       `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `firestore:"updatedAt" json:"updatedAt"`
}
