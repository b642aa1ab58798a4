package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{
			name: "with bucket and key",
			err:  &ProviderError{Op: "PutObject", Service: ServiceS3, Bucket: "site", Key: "index.html", Err: ErrAccessDenied},
			want: "s3 PutObject: site/index.html: access denied",
		},
		{
			name: "with bucket only",
			err:  &ProviderError{Op: "List", Service: ServiceS3, Bucket: "site", Err: ErrBucketNotFound},
			want: "s3 List: site: bucket not found",
		},
		{
			name: "bare operation",
			err:  &ProviderError{Op: "FindZone", Service: ServiceRoute53, Err: ErrNotFound},
			want: "route53 FindZone: resource not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSentinelClassification(t *testing.T) {
	wrapped := func(err error) error {
		return &ProviderError{Op: "Op", Service: ServiceS3, Err: err}
	}

	assert.True(t, IsNotFound(wrapped(ErrNotFound)))
	assert.True(t, IsAccessDenied(wrapped(ErrAccessDenied)))
	assert.True(t, IsBucketNotFound(wrapped(ErrBucketNotFound)))
	assert.True(t, IsBucketConflict(wrapped(ErrBucketConflict)))
	assert.True(t, IsThrottled(wrapped(ErrThrottled)))
	assert.True(t, IsProviderUnavailable(wrapped(ErrProviderUnavailable)))

	assert.False(t, IsNotFound(wrapped(ErrAccessDenied)))
	assert.False(t, IsBucketConflict(errors.New("unrelated")))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "throttled", err: ErrThrottled, want: true},
		{name: "unavailable", err: ErrProviderUnavailable, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "wrapped throttled", err: fmt.Errorf("upload: %w", ErrThrottled), want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "access denied", err: ErrAccessDenied, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
