// Package provider defines abstractions for the cloud services weblift
// provisions against: object storage, DNS, and CDN.
//
// Providers implement a minimal surface area focused on the operations the
// sync engine and the provisioning pipeline need. Authentication uses SDK
// default credential chains - providers should not implement custom auth
// logic. Responses are converted to the typed records in this package at
// the boundary so the rest of the system never touches raw SDK shapes.
package provider

import (
	"context"
	"io"
	"time"
)

// Storage abstracts bucket and object operations.
//
// Implementations should:
//   - Use SDK default credential chains (AWS default config)
//   - Support pagination via continuation tokens
//   - Be safe for concurrent use
type Storage interface {
	// BucketExists reports whether the bucket exists and is owned by the
	// caller. Returns ErrBucketConflict if the name is taken by another
	// account.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// CreateBucket creates the bucket in the given region.
	// Returns ErrBucketConflict if the name is taken by another owner.
	CreateBucket(ctx context.Context, bucket, region string) error

	// ConfigureWebsite enables static website hosting with the given
	// index and error documents. Overwrite semantics: safe to repeat.
	ConfigureWebsite(ctx context.Context, bucket, indexDoc, errorDoc string) error

	// SetBucketPolicy replaces the bucket policy document.
	SetBucketPolicy(ctx context.Context, bucket, policy string) error

	// ListBuckets returns the names of all buckets owned by the caller.
	ListBuckets(ctx context.Context) ([]string, error)

	// List returns a page of objects in the bucket with the given prefix.
	// Use ContinuationToken from ListResult for subsequent pages.
	// Returns ErrBucketNotFound if the bucket does not exist.
	List(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error)

	// PutObject uploads an object with the given content type.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error

	// DeleteObject deletes an object. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, bucket, key string) error

	// Close releases any resources held by the provider.
	Close() error
}

// MultipartUploader is implemented by Storage providers that support
// chunked uploads. The sync executor uses it for files above the
// fingerprint chunk size: a single-part PUT stores a plain content MD5
// as the ETag, which can never equal a chunked fingerprint, so large
// files uploaded single-part would re-upload on every run.
type MultipartUploader interface {
	// PutObjectMultipart uploads an object in partSize chunks. The
	// stored ETag is the multipart composite form for the same part
	// size. On failure the upload is aborted; no partial object remains.
	PutObjectMultipart(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, partSize int64) error
}

// DNS abstracts hosted zone and record operations.
type DNS interface {
	// FindZone returns the zone whose name is a suffix of domain,
	// or ErrNotFound if no zone matches.
	FindZone(ctx context.Context, domain string) (*Zone, error)

	// CreateZone creates a hosted zone for the apex of domain.
	CreateZone(ctx context.Context, domain string) (*Zone, error)

	// UpsertRecord creates or overwrites a record by (name, type).
	UpsertRecord(ctx context.Context, zoneID string, rec Record) error

	// UpsertAlias creates or overwrites an A-alias record pointing at
	// target (an S3 website endpoint or a CDN distribution domain).
	UpsertAlias(ctx context.Context, zoneID, name string, target AliasTarget) error
}

// CDN abstracts content delivery network distributions.
type CDN interface {
	// FindDistribution returns the distribution serving domain as an
	// alias, or ErrNotFound if none exists.
	FindDistribution(ctx context.Context, domain string) (*Distribution, error)

	// CreateDistribution creates a distribution for domain backed by its
	// S3 origin, using the given ACM certificate. Creation is
	// asynchronous upstream: the returned Distribution typically has
	// Status "InProgress" and is not yet servable.
	CreateDistribution(ctx context.Context, domain, certificateARN, rootObject string) (*Distribution, error)
}

// ListOptions configures a Storage.List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists all objects.
	Prefix string

	// ContinuationToken resumes listing from a previous ListResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of objects returned per page.
	// Zero uses provider default (typically 1000).
	MaxKeys int
}

// ListResult contains a page of objects from a List operation.
type ListResult struct {
	// Objects contains the object summaries for this page.
	Objects []ObjectSummary

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ObjectSummary contains basic metadata returned from List operations.
type ObjectSummary struct {
	// Key is the full object key (path) in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag. For single-part uploads this is an MD5 of
	// the content; multipart uploads carry a "-N" suffixed composite hash.
	ETag string

	// LastModified is when the object was last modified.
	LastModified time.Time
}

// Zone is a hosted DNS zone.
type Zone struct {
	// ID is the provider zone identifier.
	ID string

	// Name is the zone name with trailing dot removed (e.g. "example.com").
	Name string
}

// Record is a plain DNS record.
type Record struct {
	Name  string
	Type  string
	Value string
	TTL   int64
}

// AliasTarget identifies the endpoint an alias record points at.
type AliasTarget struct {
	// DNSName is the target hostname (website endpoint or CDN domain).
	DNSName string

	// HostedZoneID is the provider-assigned zone of the target endpoint,
	// not the zone the record lives in.
	HostedZoneID string
}

// Distribution is a CDN distribution.
type Distribution struct {
	// ID is the distribution identifier.
	ID string

	// DomainName is the distribution's own hostname (e.g. dxxxx.cloudfront.net).
	DomainName string

	// Status is the provider deployment status ("Deployed", "InProgress").
	Status string
}

// Deployed reports whether the distribution has finished propagating.
func (d *Distribution) Deployed() bool {
	return d.Status == "Deployed"
}

// ServiceType identifies a provider service.
type ServiceType string

const (
	// ServiceS3 represents AWS S3 or S3-compatible storage.
	ServiceS3 ServiceType = "s3"

	// ServiceRoute53 represents AWS Route 53 DNS.
	ServiceRoute53 ServiceType = "route53"

	// ServiceCloudFront represents AWS CloudFront.
	ServiceCloudFront ServiceType = "cloudfront"

	// ServiceACM represents AWS Certificate Manager.
	ServiceACM ServiceType = "acm"
)

// String returns the string representation of the service type.
func (s ServiceType) String() string {
	return string(s)
}
