package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrBucketConflict indicates the bucket name is taken by another owner.
	ErrBucketConflict = errors.New("bucket name conflict")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "List", "CreateBucket").
	Op string

	// Service is the provider service (e.g., "s3", "route53").
	Service ServiceType

	// Bucket is the bucket name, if applicable.
	Bucket string

	// Key is the object key or resource name, if applicable.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Service, e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Service, e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound returns true if the error indicates the bucket does not exist.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsBucketConflict returns true if the error indicates a bucket name conflict.
func IsBucketConflict(err error) bool {
	return errors.Is(err, ErrBucketConflict)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsThrottled returns true if the error indicates provider rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsProviderUnavailable returns true if the error indicates the service is down.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsTransient returns true for errors that are worth retrying: provider
// throttling, temporary unavailability, and deadline expiry. Cancellation
// is not transient - the caller asked to stop.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return IsThrottled(err) ||
		IsProviderUnavailable(err) ||
		errors.Is(err, context.DeadlineExceeded)
}
