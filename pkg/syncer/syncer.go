// Package syncer executes reconciliation plans against a storage
// provider.
//
// The executor runs plan actions on a bounded worker pool. Uploads and
// deletes retry on transient provider errors, every other failure is
// recorded and the run continues, so one bad key never aborts a deploy.
// The final summary reports exactly what happened, including the keys
// that could not be reconciled.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/weblift/pkg/output"
	"github.com/3leaps/weblift/pkg/plan"
	"github.com/3leaps/weblift/pkg/provider"
	"github.com/3leaps/weblift/pkg/scanner"
)

// DefaultConcurrency is the worker pool size when Config leaves it unset.
const DefaultConcurrency = 8

// Config controls executor behavior.
type Config struct {
	// Concurrency is the worker pool size. Defaults to DefaultConcurrency.
	Concurrency int

	// MaxAttempts bounds tries per action, first attempt included.
	// Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// RetryBaseDelay is the backoff before the second attempt.
	// Defaults to DefaultRetryBaseDelay.
	RetryBaseDelay time.Duration

	// RateLimit caps provider mutations (uploads and deletes) in
	// operations per second. Zero means unlimited.
	RateLimit float64
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return c
}

// Executor applies plans to one bucket of a storage provider.
//
// Executor is safe for a single Run at a time; create one per run.
type Executor struct {
	storage provider.Storage
	bucket  string
	writer  output.Writer
	logger  *zap.Logger
	cfg     Config
	limiter *rate.Limiter

	uploaded int64
	skipped  int64
	deleted  int64
	failed   int64
	bytes    int64

	mu         sync.Mutex
	failedKeys []output.FailedKey
}

// New creates an executor for the given bucket.
//
// writer receives one action record per executed action plus error
// records for failures; pass output.Discard to suppress them. A nil
// logger disables logging.
func New(storage provider.Storage, bucket string, writer output.Writer, logger *zap.Logger, cfg Config) *Executor {
	if writer == nil {
		writer = output.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	e := &Executor{
		storage: storage,
		bucket:  bucket,
		writer:  writer,
		logger:  logger,
		cfg:     cfg,
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return e
}

// Run executes the plan and returns the summary.
//
// Cancelling ctx stops dispatching further actions; actions already in
// flight run to completion (including their retry schedule) so the
// bucket is never left with a half-written object that the summary does
// not account for. Undispatched actions are not counted as failures.
//
// Run returns ctx.Err when the run was cut short by cancellation, nil
// otherwise. Per-key failures do not produce a Run error; inspect
// Summary.Failed and Summary.FailedKeys.
func (e *Executor) Run(ctx context.Context, p *plan.Plan) (*output.SummaryRecord, error) {
	start := time.Now()

	// In-flight provider calls and record writes survive cancellation.
	opCtx := context.WithoutCancel(ctx)

	actions := make(chan plan.Action)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range actions {
				e.apply(opCtx, action)
			}
		}()
	}

	// Deletes sit at the tail of every plan, so closing dispatch in plan
	// order guarantees no key is removed before all uploads were handed
	// to the pool.
	var dispatchErr error
dispatch:
	for _, action := range p.Actions {
		// The send select below picks randomly when a worker and ctx.Done
		// are both ready; checking first keeps cancellation deterministic.
		if err := ctx.Err(); err != nil {
			dispatchErr = err
			break dispatch
		}
		if err := e.throttle(ctx, action); err != nil {
			dispatchErr = err
			break dispatch
		}
		select {
		case actions <- action:
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		}
	}
	close(actions)
	wg.Wait()

	sum := e.summary(time.Since(start))
	if err := e.writer.WriteSummary(opCtx, sum); err != nil {
		e.logger.Warn("failed to write summary record", zap.Error(err))
	}
	return sum, dispatchErr
}

// throttle blocks until the rate limiter admits the action. Skips are
// free; they touch nothing remote.
func (e *Executor) throttle(ctx context.Context, action plan.Action) error {
	if e.limiter == nil || action.Type == plan.Skip {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Executor) apply(ctx context.Context, action plan.Action) {
	switch action.Type {
	case plan.Skip:
		atomic.AddInt64(&e.skipped, 1)
		e.writeAction(ctx, &output.ActionRecord{
			Action: string(plan.Skip), Key: action.Key,
		})

	case plan.Upload:
		attempts, err := e.upload(ctx, action)
		if err != nil {
			e.fail(ctx, action.Key, err)
			return
		}
		atomic.AddInt64(&e.uploaded, 1)
		atomic.AddInt64(&e.bytes, action.Local.Size)
		e.writeAction(ctx, &output.ActionRecord{
			Action:      string(plan.Upload),
			Key:         action.Key,
			Size:        action.Local.Size,
			ContentType: action.Local.ContentType,
			Attempts:    attempts,
		})

	case plan.Delete:
		attempts, err := e.withRetry(ctx, action.Key, func() error {
			return e.storage.DeleteObject(ctx, e.bucket, action.Key)
		})
		if err != nil {
			e.fail(ctx, action.Key, err)
			return
		}
		atomic.AddInt64(&e.deleted, 1)
		e.writeAction(ctx, &output.ActionRecord{
			Action: string(plan.Delete), Key: action.Key, Attempts: attempts,
		})
	}
}

// upload puts one local file. The file is reopened on every attempt;
// a consumed reader cannot be retried.
//
// Files above the fingerprint chunk size go through the multipart path
// when the provider supports it. A single-part PUT stores a plain MD5
// as the ETag, which never matches the chunked fingerprint the scanner
// computed, so the file would re-upload on every subsequent sync.
func (e *Executor) upload(ctx context.Context, action plan.Action) (int, error) {
	local := action.Local
	mp, hasMultipart := e.storage.(provider.MultipartUploader)
	return e.withRetry(ctx, action.Key, func() error {
		f, err := os.Open(local.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", local.Path, err)
		}
		defer f.Close()
		if hasMultipart && local.Size > scanner.ChunkSize {
			return mp.PutObjectMultipart(ctx, e.bucket, action.Key, f, local.Size, local.ContentType, scanner.ChunkSize)
		}
		return e.storage.PutObject(ctx, e.bucket, action.Key, f, local.Size, local.ContentType)
	})
}

// withRetry runs op up to MaxAttempts times, backing off between tries.
// Only transient provider errors are retried.
func (e *Executor) withRetry(ctx context.Context, key string, op func() error) (int, error) {
	var err error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return attempt, nil
		}
		if !provider.IsTransient(err) || attempt == e.cfg.MaxAttempts {
			return attempt, err
		}

		delay := backoffDelay(attempt, e.cfg.RetryBaseDelay)
		e.logger.Debug("retrying after transient error",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		time.Sleep(delay)
	}
	return e.cfg.MaxAttempts, err
}

func (e *Executor) fail(ctx context.Context, key string, err error) {
	atomic.AddInt64(&e.failed, 1)

	e.mu.Lock()
	e.failedKeys = append(e.failedKeys, output.FailedKey{Key: key, Error: err.Error()})
	e.mu.Unlock()

	e.logger.Warn("action failed", zap.String("key", key), zap.Error(err))
	if werr := e.writer.WriteError(ctx, &output.ErrorRecord{
		Code:    errCode(err),
		Message: err.Error(),
		Key:     key,
	}); werr != nil {
		e.logger.Warn("failed to write error record", zap.Error(werr))
	}
}

func (e *Executor) writeAction(ctx context.Context, rec *output.ActionRecord) {
	if err := e.writer.WriteAction(ctx, rec); err != nil {
		e.logger.Warn("failed to write action record",
			zap.String("key", rec.Key), zap.Error(err))
	}
}

func (e *Executor) summary(elapsed time.Duration) *output.SummaryRecord {
	e.mu.Lock()
	failedKeys := make([]output.FailedKey, len(e.failedKeys))
	copy(failedKeys, e.failedKeys)
	e.mu.Unlock()

	return &output.SummaryRecord{
		Uploaded:      atomic.LoadInt64(&e.uploaded),
		Skipped:       atomic.LoadInt64(&e.skipped),
		Deleted:       atomic.LoadInt64(&e.deleted),
		Failed:        atomic.LoadInt64(&e.failed),
		BytesUploaded: atomic.LoadInt64(&e.bytes),
		FailedKeys:    failedKeys,
		Duration:      elapsed,
		DurationHuman: elapsed.Round(time.Millisecond).String(),
	}
}

// errCode maps provider errors onto stable output codes.
func errCode(err error) string {
	switch {
	case provider.IsNotFound(err):
		return output.ErrCodeNotFound
	case provider.IsAccessDenied(err):
		return output.ErrCodeAccessDenied
	case provider.IsThrottled(err):
		return output.ErrCodeThrottled
	case provider.IsProviderUnavailable(err):
		return output.ErrCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return output.ErrCodeTimeout
	default:
		return output.ErrCodeInternal
	}
}
