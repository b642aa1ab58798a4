package syncer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/weblift/pkg/inventory"
	"github.com/3leaps/weblift/pkg/output"
	"github.com/3leaps/weblift/pkg/plan"
	"github.com/3leaps/weblift/pkg/provider"
	"github.com/3leaps/weblift/pkg/provider/providertest"
	"github.com/3leaps/weblift/pkg/scanner"
)

func fastConfig() Config {
	return Config{Concurrency: 2, MaxAttempts: 3, RetryBaseDelay: time.Millisecond}
}

func writeLocal(t *testing.T, dir, key, content string) *scanner.LocalObject {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &scanner.LocalObject{
		Key:         key,
		Path:        path,
		Size:        int64(len(content)),
		ContentType: "text/html",
	}
}

func uploadAction(local *scanner.LocalObject) plan.Action {
	return plan.Action{Type: plan.Upload, Key: local.Key, Local: local}
}

func throttled(key string) error {
	return &provider.ProviderError{
		Op: "PutObject", Service: provider.ServiceS3, Key: key,
		Err: provider.ErrThrottled,
	}
}

func denied(key string) error {
	return &provider.ProviderError{
		Op: "PutObject", Service: provider.ServiceS3, Key: key,
		Err: provider.ErrAccessDenied,
	}
}

func TestRunAppliesUploadsSkipsAndDeletes(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")
	store.Seed("site", "stale.html", []byte("old"))

	index := writeLocal(t, dir, "index.html", "<html>home</html>")
	p := &plan.Plan{Actions: []plan.Action{
		uploadAction(index),
		{Type: plan.Skip, Key: "unchanged.html"},
		{Type: plan.Delete, Key: "stale.html"},
	}}

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.Uploaded)
	assert.Equal(t, int64(1), sum.Skipped)
	assert.Equal(t, int64(1), sum.Deleted)
	assert.Equal(t, int64(0), sum.Failed)
	assert.Equal(t, index.Size, sum.BytesUploaded)

	bucket := store.Bucket("site")
	stored, ok := bucket.Objects["index.html"]
	require.True(t, ok)
	assert.Equal(t, "<html>home</html>", string(stored.Data))
	assert.Equal(t, "text/html", stored.ContentType)

	_, ok = bucket.Objects["stale.html"]
	assert.False(t, ok, "pruned object should be gone")
}

func TestRunRetriesTransientErrors(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")
	store.PutErrs["index.html"] = []error{throttled("index.html")}

	var buf bytes.Buffer
	w := output.NewJSONLWriter(&buf, "job")

	local := writeLocal(t, dir, "index.html", "hello")
	p := &plan.Plan{Actions: []plan.Action{uploadAction(local)}}

	e := New(store, "site", w, nil, fastConfig())
	sum, err := e.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.Uploaded)
	assert.Equal(t, int64(0), sum.Failed)
	assert.Equal(t, 2, store.PutCalls["index.html"])

	// The action record carries the attempt count.
	scan := bufio.NewScanner(&buf)
	var sawUpload bool
	for scan.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(scan.Bytes(), &rec))
		if rec.Type != output.TypeAction {
			continue
		}
		var action output.ActionRecord
		require.NoError(t, json.Unmarshal(rec.Data, &action))
		assert.Equal(t, 2, action.Attempts)
		sawUpload = true
	}
	assert.True(t, sawUpload)
}

func TestRunDoesNotRetryNonTransientErrors(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")
	store.PutErrs["index.html"] = []error{denied("index.html")}

	local := writeLocal(t, dir, "index.html", "hello")
	p := &plan.Plan{Actions: []plan.Action{uploadAction(local)}}

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.Failed)
	assert.Equal(t, 1, store.PutCalls["index.html"], "non-transient errors must not retry")
	require.Len(t, sum.FailedKeys, 1)
	assert.Equal(t, "index.html", sum.FailedKeys[0].Key)
	assert.Contains(t, sum.FailedKeys[0].Error, "access denied")
}

func TestRunExhaustsRetries(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")
	store.PutErrs["index.html"] = []error{
		throttled("index.html"),
		throttled("index.html"),
		throttled("index.html"),
	}

	local := writeLocal(t, dir, "index.html", "hello")
	p := &plan.Plan{Actions: []plan.Action{uploadAction(local)}}

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int64(0), sum.Uploaded)
	assert.Equal(t, int64(1), sum.Failed)
	assert.Equal(t, 3, store.PutCalls["index.html"])
}

func TestRunContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")
	store.PutErrs["b.html"] = []error{denied("b.html")}

	keys := []string{"a.html", "b.html", "c.html", "d.html", "e.html"}
	actions := make([]plan.Action, 0, len(keys))
	for _, key := range keys {
		actions = append(actions, uploadAction(writeLocal(t, dir, key, "content of "+key)))
	}

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(context.Background(), &plan.Plan{Actions: actions})
	require.NoError(t, err, "per-key failures must not abort the run")

	assert.Equal(t, int64(4), sum.Uploaded)
	assert.Equal(t, int64(1), sum.Failed)
	require.Len(t, sum.FailedKeys, 1)
	assert.Equal(t, "b.html", sum.FailedKeys[0].Key)
}

func TestRunLargeFileConvergesAfterUpload(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")

	// One full chunk plus a trailing byte forces the chunked fingerprint.
	data := bytes.Repeat([]byte{0xAB}, scanner.ChunkSize)
	data = append(data, 0xCD)
	path := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	etag, err := scanner.ETagFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(etag, "-2"), "two-part file should carry a composite tag")

	local := &scanner.LocalObject{
		Key:         "big.bin",
		Path:        path,
		Size:        int64(len(data)),
		ETag:        etag,
		ContentType: "application/octet-stream",
	}

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(context.Background(), &plan.Plan{Actions: []plan.Action{uploadAction(local)}})
	require.NoError(t, err)
	require.Equal(t, int64(1), sum.Uploaded)

	remotes, err := inventory.NewReader(store, "site").Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, etag, remotes["big.bin"].ETag,
		"stored tag must match the chunked local fingerprint")

	replanned := plan.Build([]scanner.LocalObject{*local}, remotes, false)
	assert.True(t, replanned.AllSkips(), "an unchanged large file must re-plan to skip")
}

func TestRunMissingLocalFileFailsThatKeyOnly(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")

	good := writeLocal(t, dir, "good.html", "ok")
	gone := &scanner.LocalObject{
		Key: "gone.html", Path: filepath.Join(dir, "gone.html"), Size: 2,
	}

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(context.Background(), &plan.Plan{Actions: []plan.Action{
		uploadAction(good),
		uploadAction(gone),
	}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.Uploaded)
	assert.Equal(t, int64(1), sum.Failed)
	require.Len(t, sum.FailedKeys, 1)
	assert.Equal(t, "gone.html", sum.FailedKeys[0].Key)
}

func TestRunCancelledBeforeStartDispatchesNothing(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")

	local := writeLocal(t, dir, "index.html", "hello")
	p := &plan.Plan{Actions: []plan.Action{uploadAction(local)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(store, "site", output.Discard{}, nil, fastConfig())
	sum, err := e.Run(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), sum.Uploaded)
	assert.Equal(t, int64(0), sum.Failed, "undispatched actions are not failures")
}

func TestRunWritesSummaryRecord(t *testing.T) {
	dir := t.TempDir()
	store := providertest.NewStorage()
	store.AddBucket("site", "us-east-1")

	var buf bytes.Buffer
	w := output.NewJSONLWriter(&buf, "job")

	local := writeLocal(t, dir, "index.html", "hello")
	e := New(store, "site", w, nil, fastConfig())
	_, err := e.Run(context.Background(), &plan.Plan{Actions: []plan.Action{uploadAction(local)}})
	require.NoError(t, err)

	scan := bufio.NewScanner(&buf)
	var sawSummary bool
	for scan.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(scan.Bytes(), &rec))
		if rec.Type != output.TypeSummary {
			continue
		}
		var sum output.SummaryRecord
		require.NoError(t, json.Unmarshal(rec.Data, &sum))
		assert.Equal(t, int64(1), sum.Uploaded)
		assert.NotEmpty(t, sum.DurationHuman)
		sawSummary = true
	}
	assert.True(t, sawSummary, "run must emit a summary record")
}

func TestBackoffDelayStaysInWindow(t *testing.T) {
	for attempt := 1; attempt <= 5; attempt++ {
		for i := 0; i < 50; i++ {
			d := backoffDelay(attempt, 10*time.Millisecond)
			assert.Greater(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, maxRetryDelay+1)
		}
	}
}
