package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/weblift/pkg/provider"
)

// Provider implements provider.Storage for AWS S3 and S3-compatible storage.
type Provider struct {
	client  *s3.Client
	region  string
	maxKeys int
}

var (
	_ provider.Storage           = (*Provider)(nil)
	_ provider.MultipartUploader = (*Provider)(nil)
)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:      "New",
			Service: provider.ServiceS3,
			Err:     err,
		}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &Provider{
		client:  client,
		region:  awsCfg.Region,
		maxKeys: maxKeys,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	// Only default the region for real AWS. Compatible stores resolve
	// buckets by endpoint, not region.
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultAWSRegion
	}

	return awsCfg, nil
}

// Region returns the resolved region the provider operates in.
func (p *Provider) Region() string {
	return p.region
}

// BucketExists reports whether the bucket exists and is owned by the caller.
//
// HeadBucket returns 404 for missing buckets and 403 for buckets that exist
// under a different owner; the latter is surfaced as ErrBucketConflict so
// provisioning can distinguish "create it" from "pick another name".
func (p *Provider) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}

	wrapped := p.wrapError("HeadBucket", bucket, "", err)
	switch {
	case provider.IsNotFound(wrapped), provider.IsBucketNotFound(wrapped):
		return false, nil
	case provider.IsAccessDenied(wrapped):
		return false, &provider.ProviderError{
			Op:      "HeadBucket",
			Service: provider.ServiceS3,
			Bucket:  bucket,
			Err:     provider.ErrBucketConflict,
		}
	}
	return false, wrapped
}

// CreateBucket creates the bucket in the given region.
//
// us-east-1 is special-cased: S3 rejects a LocationConstraint naming it.
func (p *Provider) CreateBucket(ctx context.Context, bucket, region string) error {
	if region == "" {
		region = p.region
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != DefaultAWSRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	_, err := p.client.CreateBucket(ctx, input)
	if err == nil {
		return nil
	}

	var ownedByYou *types.BucketAlreadyOwnedByYou
	if errors.As(err, &ownedByYou) {
		// Re-running provisioning against our own bucket is fine.
		return nil
	}

	var alreadyExists *types.BucketAlreadyExists
	if errors.As(err, &alreadyExists) {
		return &provider.ProviderError{
			Op:      "CreateBucket",
			Service: provider.ServiceS3,
			Bucket:  bucket,
			Err:     provider.ErrBucketConflict,
		}
	}

	return p.wrapError("CreateBucket", bucket, "", err)
}

// ConfigureWebsite enables static website hosting on the bucket.
func (p *Provider) ConfigureWebsite(ctx context.Context, bucket, indexDoc, errorDoc string) error {
	_, err := p.client.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: aws.String(bucket),
		WebsiteConfiguration: &types.WebsiteConfiguration{
			IndexDocument: &types.IndexDocument{Suffix: aws.String(indexDoc)},
			ErrorDocument: &types.ErrorDocument{Key: aws.String(errorDoc)},
		},
	})
	if err != nil {
		return p.wrapError("PutBucketWebsite", bucket, "", err)
	}
	return nil
}

// SetBucketPolicy replaces the bucket policy document.
func (p *Provider) SetBucketPolicy(ctx context.Context, bucket, policy string) error {
	_, err := p.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(policy),
	})
	if err != nil {
		return p.wrapError("PutBucketPolicy", bucket, "", err)
	}
	return nil
}

// ListBuckets returns the names of all buckets owned by the caller.
func (p *Provider) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, p.wrapError("ListBuckets", "", "", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// List returns a page of objects in the bucket with the given prefix.
func (p *Provider) List(ctx context.Context, bucket string, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := clampMaxKeys(opts.MaxKeys, p.maxKeys)

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}

	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}

	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("List", bucket, "", err)
	}

	objects := make([]provider.ObjectSummary, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, provider.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}

	result := &provider.ListResult{
		Objects:     objects,
		IsTruncated: aws.ToBool(output.IsTruncated),
	}

	if output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}

	return result, nil
}

// PutObject uploads an object with the given content type.
func (p *Provider) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: &size,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := p.client.PutObject(ctx, input)
	if err != nil {
		return p.wrapError("PutObject", bucket, key, err)
	}
	return nil
}

// PutObjectMultipart uploads an object in partSize chunks.
//
// S3 computes the ETag of a multipart object as the MD5 of the
// concatenated part digests suffixed with the part count, so the part
// size here must match the one used when fingerprinting local files or
// the two tags will never agree.
func (p *Provider) PutObjectMultipart(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, partSize int64) error {
	create := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		create.ContentType = aws.String(contentType)
	}

	out, err := p.client.CreateMultipartUpload(ctx, create)
	if err != nil {
		return p.wrapError("CreateMultipartUpload", bucket, key, err)
	}
	uploadID := aws.ToString(out.UploadId)

	var completed []types.CompletedPart
	buf := make([]byte, partSize)
	for partNum := int32(1); ; partNum++ {
		n, rerr := io.ReadFull(body, buf)
		if n > 0 {
			part, err := p.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(bucket),
				Key:           aws.String(key),
				UploadId:      aws.String(uploadID),
				PartNumber:    aws.Int32(partNum),
				Body:          bytes.NewReader(buf[:n]),
				ContentLength: aws.Int64(int64(n)),
			})
			if err != nil {
				p.abortMultipart(ctx, bucket, key, uploadID)
				return p.wrapError("UploadPart", bucket, key, err)
			}
			completed = append(completed, types.CompletedPart{
				ETag:       part.ETag,
				PartNumber: aws.Int32(partNum),
			})
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			p.abortMultipart(ctx, bucket, key, uploadID)
			return p.wrapError("UploadPart", bucket, key, rerr)
		}
	}

	_, err = p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		p.abortMultipart(ctx, bucket, key, uploadID)
		return p.wrapError("CompleteMultipartUpload", bucket, key, err)
	}
	return nil
}

// abortMultipart releases the parts of a failed upload. Best effort:
// an incomplete upload only costs storage, it never surfaces as an
// object.
func (p *Provider) abortMultipart(ctx context.Context, bucket, key, uploadID string) {
	_, _ = p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
}

// DeleteObject deletes an object. Deleting a missing key is not an error.
func (p *Provider) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return p.wrapError("DeleteObject", bucket, key, err)
	}
	return nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// wrapError converts S3 errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, bucket, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:      op,
		Service: provider.ServiceS3,
		Bucket:  bucket,
		Key:     key,
		Err:     err,
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			wrapped.Err = provider.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = provider.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = provider.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = provider.ErrInvalidCredentials
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = provider.ErrProviderUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchKey") || strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "404"):
		wrapped.Err = provider.ErrNotFound
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	}

	return wrapped
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// clampMaxKeys applies defaults and limits to maxKeys values.
// If requested is <= 0, uses providerDefault. Result is clamped to MaxAllowedKeys.
func clampMaxKeys(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}

// WebsitePolicy returns the public-read policy document that makes a
// website bucket's objects readable by everyone.
func WebsitePolicy(bucket string) string {
	return `{
  "Version": "2012-10-17",
  "Statement": [{
    "Sid": "PublicReadGetObject",
    "Effect": "Allow",
    "Principal": "*",
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::` + bucket + `/*"]
  }]
}`
}
