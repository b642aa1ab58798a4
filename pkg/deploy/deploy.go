// Package deploy orchestrates site provisioning: bucket creation, website
// hosting, content sync, DNS, and CDN, as one idempotent pipeline.
//
// Stages run in a fixed order and each one reconciles toward the manifest
// rather than assuming a fresh account, so a deploy can be re-run after any
// failure and picks up where the infrastructure actually is. A failed stage
// halts the pipeline; there is no rollback, because every stage is safe to
// repeat.
package deploy

import (
	"fmt"

	"github.com/3leaps/weblift/pkg/output"
)

// Stage names, in pipeline order.
type Stage string

const (
	// StageBucketCreate ensures the site bucket exists.
	StageBucketCreate Stage = "bucket-create"

	// StageWebsiteConfigure enables website hosting and the public-read
	// policy on the bucket.
	StageWebsiteConfigure Stage = "website-configure"

	// StageSyncContent reconciles bucket content with the local tree.
	StageSyncContent Stage = "sync-content"

	// StageDNSConfigure ensures the hosted zone, manifest records, and
	// the site alias.
	StageDNSConfigure Stage = "dns-configure"

	// StageCDNConfigure ensures the distribution and repoints the site
	// alias at it.
	StageCDNConfigure Stage = "cdn-configure"
)

// Status is the outcome of one stage.
type Status string

const (
	// StatusAlreadySatisfied means the stage found nothing to do.
	StatusAlreadySatisfied Status = "already-satisfied"

	// StatusCreated means the stage created or updated infrastructure.
	StatusCreated Status = "created"

	// StatusFailed means the stage could not reconcile; the pipeline halts.
	StatusFailed Status = "failed"

	// StatusSkipped means the manifest turned the stage off.
	StatusSkipped Status = "skipped"
)

// ErrorKind classifies stage failures for machine consumers.
type ErrorKind string

const (
	// ErrKindNameConflict: the bucket name is owned by another account.
	ErrKindNameConflict ErrorKind = "name-conflict"

	// ErrKindPartialSync: some content actions failed; DNS and CDN are
	// not touched while the bucket holds a partial tree.
	ErrKindPartialSync ErrorKind = "partial-sync"

	// ErrKindValidation: the manifest or local source failed checks
	// before any provider call was made.
	ErrKindValidation ErrorKind = "validation"

	// ErrKindProvider: an upstream service call failed.
	ErrKindProvider ErrorKind = "provider"
)

// StageResult records the outcome of one pipeline stage.
type StageResult struct {
	// Stage is the stage name.
	Stage Stage

	// Status is the stage outcome.
	Status Status

	// ResourceID identifies the touched resource: bucket name, zone ID,
	// distribution ID, or website URL.
	ResourceID string

	// Pending is set when the resource was created but is still
	// propagating upstream (CDN distributions deploy asynchronously).
	Pending bool

	// ErrKind classifies the failure when Status is StatusFailed.
	ErrKind ErrorKind

	// Err is the underlying error when Status is StatusFailed.
	Err error
}

// Result is the outcome of a full pipeline run.
type Result struct {
	// Stages holds one result per executed stage, in pipeline order.
	// Stages after a failed one are absent, not failed.
	Stages []StageResult

	// Sync is the content sync summary, when the sync stage ran.
	Sync *output.SummaryRecord
}

// FailedStage returns the failed stage result, or nil if the run succeeded.
func (r *Result) FailedStage() *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Status == StatusFailed {
			return &r.Stages[i]
		}
	}
	return nil
}

// record converts a stage result to its output record.
func (s *StageResult) record() *output.StageRecord {
	rec := &output.StageRecord{
		Stage:      string(s.Stage),
		Status:     string(s.Status),
		ResourceID: s.ResourceID,
		Pending:    s.Pending,
		ErrorKind:  string(s.ErrKind),
	}
	if s.Err != nil {
		rec.Detail = s.Err.Error()
	}
	return rec
}

// ValidationError is returned by Run when preflight checks fail. No
// provider call has been made when this error is returned.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy validation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("deploy validation: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }
