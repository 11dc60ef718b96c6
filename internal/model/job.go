package model

import "time"

// JobState tracks a job through its lifecycle. A job is in exactly one
// state at any time.
type JobState string

const (
	JobQueued          JobState = "queued"
	JobRunning         JobState = "running"
	JobSucceeded       JobState = "succeeded"
	JobFailedRetryable JobState = "failed-retryable"
	JobFailedTerminal  JobState = "failed-terminal"
)

// Job is one submitted (file, customer) unit of work.
type Job struct {
	ID                 string        `json:"id"`
	CustomerID         string        `json:"customerId"`
	SourcePath         string        `json:"sourcePath"`
	FileName           string        `json:"fileName"`
	SupplierOffersPath string        `json:"supplierOffersPath,omitempty"`
	Attempt            int           `json:"attempt"`
	MaxAttempts        int           `json:"maxAttempts"`
	Backoff            time.Duration `json:"backoff"`
	State              JobState      `json:"state"`
	LastError          string        `json:"lastError,omitempty"`
	SubmittedAt        time.Time     `json:"submittedAt"`
}
