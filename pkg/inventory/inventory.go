// Package inventory reads the current contents of a bucket for
// reconciliation.
//
// The inventory is a point-in-time snapshot built from paginated listing
// calls; by the time a plan executes, individual entries may already be
// stale. The sync engine accepts this (the worst case is a redundant
// re-upload on the next run).
package inventory

import (
	"context"

	"github.com/3leaps/weblift/pkg/provider"
)

// RemoteObject is one stored object as seen at listing time.
type RemoteObject struct {
	// Key is the object key in the bucket.
	Key string

	// ETag is the provider-supplied entity tag.
	ETag string

	// Size is the stored size in bytes.
	Size int64
}

// Reader lists a bucket into a key-indexed inventory.
type Reader struct {
	storage provider.Storage
	bucket  string
}

// NewReader creates a Reader for the given bucket.
func NewReader(storage provider.Storage, bucket string) *Reader {
	return &Reader{storage: storage, bucket: bucket}
}

// Read lists every object in the bucket and returns them keyed by object
// key. Keys are unique by construction (S3 listing never repeats a key).
//
// Errors from the provider propagate unchanged, so callers can distinguish
// provider.ErrBucketNotFound (first deployment: create instead of sync)
// from provider.ErrAccessDenied (terminal).
func (r *Reader) Read(ctx context.Context) (map[string]RemoteObject, error) {
	remotes := make(map[string]RemoteObject)

	var token string
	for {
		res, err := r.storage.List(ctx, r.bucket, provider.ListOptions{
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range res.Objects {
			remotes[obj.Key] = RemoteObject{
				Key:  obj.Key,
				ETag: obj.ETag,
				Size: obj.Size,
			}
		}

		if !res.IsTruncated || res.ContinuationToken == "" {
			return remotes, nil
		}
		token = res.ContinuationToken
	}
}
