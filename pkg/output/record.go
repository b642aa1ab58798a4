// Package output provides JSONL output for sync and provisioning runs.
//
// Output is structured as typed record envelopes containing actions,
// stage transitions, errors, and final summaries. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: weblift.<type>.v<version>
const (
	// TypeAction identifies sync action records (upload/skip/delete).
	TypeAction = "weblift.action.v1"

	// TypeStage identifies provisioning stage result records.
	TypeStage = "weblift.stage.v1"

	// TypeError identifies error records.
	TypeError = "weblift.error.v1"

	// TypeSummary identifies final sync summary records.
	TypeSummary = "weblift.summary.v1"
)

// Error code constants for ErrorRecord.Code.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeAccessDenied = "ACCESS_DENIED"
	ErrCodeThrottled    = "THROTTLED"
	ErrCodeUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "weblift.action.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this run.
	JobID string `json:"job_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ActionRecord is the data payload for one executed sync action.
type ActionRecord struct {
	// Action is the action type: "upload", "skip", or "delete".
	Action string `json:"action"`

	// Key is the bucket key the action applied to.
	Key string `json:"key"`

	// Size is the object size in bytes, for uploads.
	Size int64 `json:"size,omitempty"`

	// ContentType is the media type set on upload.
	ContentType string `json:"content_type,omitempty"`

	// Attempts is how many tries the action took (1 = first try).
	Attempts int `json:"attempts,omitempty"`
}

// StageRecord is the data payload for one provisioning stage result.
type StageRecord struct {
	// Stage is the stage name (e.g., "bucket-create").
	Stage string `json:"stage"`

	// Status is "already-satisfied", "created", or "failed".
	Status string `json:"status"`

	// ResourceID identifies the created resource, when applicable.
	ResourceID string `json:"resource_id,omitempty"`

	// Pending is set when the resource was created but is still
	// propagating upstream (CDN distributions).
	Pending bool `json:"pending,omitempty"`

	// ErrorKind classifies the failure, when Status is "failed".
	ErrorKind string `json:"error_kind,omitempty"`

	// Detail is a human-readable failure description.
	Detail string `json:"detail,omitempty"`
}

// ErrorRecord is the data payload for error records.
type ErrorRecord struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Key is the object key the error relates to, if any.
	Key string `json:"key,omitempty"`
}

// SummaryRecord is the data payload for the final sync summary.
type SummaryRecord struct {
	// Uploaded is the number of objects uploaded (created or overwritten).
	Uploaded int64 `json:"uploaded"`

	// Skipped is the number of objects already current.
	Skipped int64 `json:"skipped"`

	// Deleted is the number of pruned objects.
	Deleted int64 `json:"deleted"`

	// Failed is the number of actions that exhausted retries or failed
	// with a non-transient error.
	Failed int64 `json:"failed"`

	// BytesUploaded is the cumulative size of uploaded objects.
	BytesUploaded int64 `json:"bytes_uploaded"`

	// FailedKeys lists the keys that failed, with error detail.
	FailedKeys []FailedKey `json:"failed_keys,omitempty"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`

	// DurationHuman is Duration rounded for display.
	DurationHuman string `json:"duration_human"`
}

// FailedKey pairs a failed key with its error detail.
type FailedKey struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}
