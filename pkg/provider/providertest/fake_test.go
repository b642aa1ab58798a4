package providertest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recreateReader swaps the bucket out from under an in-flight PutObject
// as soon as the body starts being consumed.
type recreateReader struct {
	r       io.Reader
	store   *Storage
	bucket  string
	swapped bool
}

func (rr *recreateReader) Read(p []byte) (int, error) {
	if !rr.swapped {
		rr.swapped = true
		rr.store.AddBucket(rr.bucket, "us-east-1")
	}
	return rr.r.Read(p)
}

func TestPutObjectWritesIntoRecreatedBucket(t *testing.T) {
	store := NewStorage()
	store.AddBucket("site", "us-east-1")

	body := &recreateReader{
		r: bytes.NewReader([]byte("hello")), store: store, bucket: "site",
	}
	require.NoError(t, store.PutObject(context.Background(), "site", "index.html", body, 5, "text/html"))

	obj, ok := store.Bucket("site").Objects["index.html"]
	require.True(t, ok, "object must land in the current bucket, not an orphaned map")
	assert.Equal(t, "hello", string(obj.Data))
}

func TestPutObjectMultipartStoresCompositeETag(t *testing.T) {
	store := NewStorage()
	store.AddBucket("site", "us-east-1")

	data := bytes.Repeat([]byte{1}, 10)
	require.NoError(t, store.PutObjectMultipart(context.Background(), "site", "big.bin",
		bytes.NewReader(data), int64(len(data)), "application/octet-stream", 4))

	h := md5.New()
	for _, part := range [][]byte{data[:4], data[4:8], data[8:]} {
		sum := md5.Sum(part)
		h.Write(sum[:])
	}
	want := fmt.Sprintf("%s-3", hex.EncodeToString(h.Sum(nil)))

	obj, ok := store.Bucket("site").Objects["big.bin"]
	require.True(t, ok)
	assert.Equal(t, want, obj.ETag)
	assert.Equal(t, data, obj.Data)
}
