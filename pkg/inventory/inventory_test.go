package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/weblift/pkg/provider"
	"github.com/3leaps/weblift/pkg/provider/providertest"
)

func TestReadCollectsAllPages(t *testing.T) {
	storage := providertest.NewStorage()
	storage.AddBucket("site", "us-east-1")
	// The fake pages two keys at a time, so five objects means three pages.
	storage.Seed("site", "a.html", []byte("a"))
	storage.Seed("site", "b.html", []byte("b"))
	storage.Seed("site", "c/d.css", []byte("c"))
	storage.Seed("site", "e.js", []byte("e"))
	storage.Seed("site", "f.png", []byte("f"))

	remotes, err := NewReader(storage, "site").Read(context.Background())
	require.NoError(t, err)

	require.Len(t, remotes, 5)
	obj, ok := remotes["c/d.css"]
	require.True(t, ok)
	assert.Equal(t, "c/d.css", obj.Key)
	assert.Equal(t, int64(1), obj.Size)
	assert.NotEmpty(t, obj.ETag)
}

func TestReadEmptyBucket(t *testing.T) {
	storage := providertest.NewStorage()
	storage.AddBucket("site", "us-east-1")

	remotes, err := NewReader(storage, "site").Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remotes)
}

func TestReadMissingBucket(t *testing.T) {
	storage := providertest.NewStorage()

	_, err := NewReader(storage, "absent").Read(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsBucketNotFound(err))
}

func TestReadPropagatesListError(t *testing.T) {
	storage := providertest.NewStorage()
	storage.AddBucket("site", "us-east-1")
	storage.ListErr = &provider.ProviderError{
		Op: "List", Service: provider.ServiceS3, Bucket: "site",
		Err: provider.ErrAccessDenied,
	}

	_, err := NewReader(storage, "site").Read(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsAccessDenied(err))
}
