package output

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrWriterClosed is returned for writes after Close.
var ErrWriterClosed = errors.New("output writer is closed")

// Writer outputs JSONL records for sync and provisioning runs.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteAction emits a sync action record.
	WriteAction(ctx context.Context, action *ActionRecord) error

	// WriteStage emits a provisioning stage record.
	WriteStage(ctx context.Context, stage *StageRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, errRec *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	jobID string
	mu    sync.Mutex

	closed bool
}

var _ Writer = (*JSONLWriter)(nil)

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - jobID: Correlation ID for this run
func NewJSONLWriter(w io.Writer, jobID string) *JSONLWriter {
	return &JSONLWriter{w: w, jobID: jobID}
}

// WriteAction emits a sync action record.
func (j *JSONLWriter) WriteAction(ctx context.Context, action *ActionRecord) error {
	return j.write(ctx, TypeAction, action)
}

// WriteStage emits a provisioning stage record.
func (j *JSONLWriter) WriteStage(ctx context.Context, stage *StageRecord) error {
	return j.write(ctx, TypeStage, stage)
}

// WriteError emits an error record.
func (j *JSONLWriter) WriteError(ctx context.Context, errRec *ErrorRecord) error {
	return j.write(ctx, TypeError, errRec)
}

// WriteSummary emits a summary record.
func (j *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return j.write(ctx, TypeSummary, sum)
}

// Close marks the writer closed. The underlying io.Writer is not closed;
// the caller owns it.
func (j *JSONLWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *JSONLWriter) write(ctx context.Context, recType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	rec := Record{
		Type:  recType,
		TS:    time.Now().UTC(),
		JobID: j.jobID,
		Data:  data,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrWriterClosed
	}

	if _, err := j.w.Write(line); err != nil {
		return err
	}
	_, err = j.w.Write([]byte("\n"))
	return err
}

// Discard is a Writer that drops all records. Useful when callers only
// want the returned summary, not per-action output.
type Discard struct{}

var _ Writer = Discard{}

func (Discard) WriteAction(context.Context, *ActionRecord) error   { return nil }
func (Discard) WriteStage(context.Context, *StageRecord) error     { return nil }
func (Discard) WriteError(context.Context, *ErrorRecord) error     { return nil }
func (Discard) WriteSummary(context.Context, *SummaryRecord) error { return nil }
func (Discard) Close() error                                       { return nil }
