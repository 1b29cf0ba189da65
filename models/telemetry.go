package models

import "encoding/json"

// TelemetryDocument is one aggregated telemetry payload queued for upload.
// Obsolete lists the ids of previously uploaded documents this one
// supersedes; the server is asked to delete them after a successful upload.
type TelemetryDocument struct {
	ID       string          `json:"id"`
	Payload  json.RawMessage `json:"payload"`
	Obsolete []string        `json:"obsolete,omitempty"`
}

// SubmissionState is the persisted scalar state of the telemetry submission
// policy plus the obsolete-document queue. All times are milliseconds since
// epoch; zero means "never".
type SubmissionState struct {
	FirstRun               int64          `json:"first_run"`
	LastUploadRequested    int64          `json:"last_upload_requested"`
	LastUploadSucceeded    int64          `json:"last_upload_succeeded"`
	LastUploadFailed       int64          `json:"last_upload_failed"`
	CurrentDayFailureCount int            `json:"current_day_failure_count"`
	LastSuccessfulID       string         `json:"last_successful_id,omitempty"`
	ObsoleteDocs           map[string]int `json:"obsolete_docs,omitempty"` // id -> attempts remaining
}

// SyncStats are the per-run counters fed into telemetry documents, bucketed
// by the failure taxonomy used for stage aborts.
type SyncStats struct {
	Completed     int `json:"completed"`
	AuthFailures  int `json:"auth_failures"`
	IOFailures    int `json:"io_failures"`
	ParseFailures int `json:"parse_failures"`
	OtherFailures int `json:"other_failures"`
	Backoffs      int `json:"backoffs"`
}
