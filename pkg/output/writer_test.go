package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLWriterEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123")

	require.NoError(t, w.WriteAction(context.Background(), &ActionRecord{
		Action: "upload", Key: "index.html", Size: 42, ContentType: "text/html", Attempts: 1,
	}))

	var rec Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, TypeAction, rec.Type)
	assert.Equal(t, "job-123", rec.JobID)
	assert.False(t, rec.TS.IsZero())

	var action ActionRecord
	require.NoError(t, json.Unmarshal(rec.Data, &action))
	assert.Equal(t, "upload", action.Action)
	assert.Equal(t, "index.html", action.Key)
	assert.Equal(t, int64(42), action.Size)
}

func TestJSONLWriterOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job")
	ctx := context.Background()

	require.NoError(t, w.WriteStage(ctx, &StageRecord{Stage: "bucket-create", Status: "created"}))
	require.NoError(t, w.WriteError(ctx, &ErrorRecord{Code: ErrCodeThrottled, Message: "slow down"}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{Uploaded: 1}))

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		lines++
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	}
	assert.Equal(t, 3, lines)
}

func TestJSONLWriterConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteAction(ctx, &ActionRecord{Action: "skip", Key: "k"})
		}()
	}
	wg.Wait()

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		lines++
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "interleaved write detected")
	}
	assert.Equal(t, 20, lines)
}

func TestJSONLWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job")
	require.NoError(t, w.Close())

	err := w.WriteAction(context.Background(), &ActionRecord{Action: "skip", Key: "k"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}
