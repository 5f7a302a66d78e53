// Package analysis describes asynchronous document-analysis jobs and their
// results, independent of the engine that runs them.
package analysis

import (
	"context"
	"errors"

	"invoice-backend/internal/shared/storage/object"
)

// ErrJobNotFound is returned by GetResult for unknown job ids.
var ErrJobNotFound = errors.New("analysis job not found")

// Feature selects what the engine extracts besides raw text.
type Feature string

const (
	FeatureTables Feature = "TABLES"
	FeatureForms  Feature = "FORMS"
	FeatureLayout Feature = "LAYOUT"
)

// InvoiceFeatures is the feature set requested for invoices.
var InvoiceFeatures = []Feature{FeatureTables, FeatureForms, FeatureLayout}

// JobStatus mirrors the engine-side job state.
type JobStatus string

const (
	JobInProgress     JobStatus = "IN_PROGRESS"
	JobSucceeded      JobStatus = "SUCCEEDED"
	JobFailed         JobStatus = "FAILED"
	JobPartialSuccess JobStatus = "PARTIAL_SUCCESS"
	JobError          JobStatus = "ERROR"
)

// Channel is where the engine publishes the completion notification.
type Channel struct {
	TopicARN string
	RoleARN  string
}

// StartRequest describes one analysis job.
type StartRequest struct {
	Document    object.Location
	Features    []Feature
	Channel     Channel
	JobTag      string
	ClientToken string
}

// Client starts analysis jobs and fetches their results.
type Client interface {
	StartAnalysis(ctx context.Context, req StartRequest) (jobID string, err error)
	GetResult(ctx context.Context, jobID string) (Result, error)
}

// JobRecorder is implemented by clients that hold a job's completion
// notification until the caller reports the job id as persisted. Callers
// report every started job, recorded or not, so the client can let go.
type JobRecorder interface {
	JobRecorded(jobID string)
}
