package models

import (
	"time"
)

// Checkpoint is the persisted progress marker for a long-running batch job.
// One per job type, overwritten in place; deleted when the whole job
// completes, so absence means "start fresh".
type Checkpoint struct {
	JobName           string    `json:"job_name"`
	LastProcessedUnit string    `json:"last_processed_unit"` // year or ticker
	TotalUnits        int       `json:"total_units"`
	ProcessedUnits    int       `json:"processed_units"`
	StartedAt         time.Time `json:"started_at"`
	LastUpdated       time.Time `json:"last_updated"`
}

// ContinuationRequest is returned by the batch loader when the invocation's
// time budget is nearly exhausted. The scheduling harness is responsible for
// re-invoking the job with ResumeUnit.
type ContinuationRequest struct {
	JobName    string `json:"job_name"`
	ResumeUnit string `json:"resume_unit"`
}

// ManifestError records one failed unit within an ingestion run.
type ManifestError struct {
	Unit       string    `json:"unit"` // ticker or year
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// ManifestSuccess records one unit that produced data.
type ManifestSuccess struct {
	Unit        string `json:"unit"`
	RecordCount int    `json:"record_count"`
}

// ErrorManifest is the per-(date, data type) operator-facing ledger of which
// units succeeded and which failed. Written at the end of each ingestion run;
// consulted by humans and manual replay tooling, never by the pipeline itself.
type ErrorManifest struct {
	RunID          string            `json:"run_id"`
	Date           string            `json:"date"` // YYYY-MM-DD
	DataType       string            `json:"data_type"`
	Errors         []ManifestError   `json:"errors"`
	PartialSuccess []ManifestSuccess `json:"partial_success"`
	WrittenAt      time.Time         `json:"written_at"`
}

// ProviderError is one entry in the fallback service's in-memory error log.
type ProviderError struct {
	Provider  string    `json:"provider"`
	Unit      string    `json:"unit"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
