// Package cloudfront implements the CDN provider for AWS CloudFront.
package cloudfront

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/3leaps/weblift/pkg/provider"
)

// HostedZoneID is the Route 53 hosted zone ID shared by every CloudFront
// distribution. Alias records targeting a distribution must use it.
const HostedZoneID = "Z2FDTNDATAQYW2"

// Cache TTLs for the default behavior, in seconds.
const (
	defaultTTL = 86400
	minTTL     = 3600
)

// Config configures a CloudFront provider.
type Config struct {
	// Profile is the AWS profile name to use from shared config.
	Profile string
}

// Provider implements provider.CDN for AWS CloudFront.
type Provider struct {
	client *cloudfront.Client
}

var _ provider.CDN = (*Provider)(nil)

// New creates a new CloudFront provider.
//
// CloudFront is a global service; no region configuration is needed.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:      "New",
			Service: provider.ServiceCloudFront,
			Err:     err,
		}
	}

	return &Provider{client: cloudfront.NewFromConfig(awsCfg)}, nil
}

// FindDistribution returns the distribution serving domain as an alias.
func (p *Provider) FindDistribution(ctx context.Context, domain string) (*provider.Distribution, error) {
	var marker *string

	for {
		out, err := p.client.ListDistributions(ctx, &cloudfront.ListDistributionsInput{Marker: marker})
		if err != nil {
			return nil, p.wrapError("ListDistributions", domain, err)
		}

		list := out.DistributionList
		if list == nil {
			break
		}

		for _, dist := range list.Items {
			if dist.Aliases == nil {
				continue
			}
			for _, alias := range dist.Aliases.Items {
				if alias == domain {
					return &provider.Distribution{
						ID:         aws.ToString(dist.Id),
						DomainName: aws.ToString(dist.DomainName),
						Status:     aws.ToString(dist.Status),
					}, nil
				}
			}
		}

		if !aws.ToBool(list.IsTruncated) || list.NextMarker == nil {
			break
		}
		marker = list.NextMarker
	}

	return nil, &provider.ProviderError{
		Op:      "FindDistribution",
		Service: provider.ServiceCloudFront,
		Key:     domain,
		Err:     provider.ErrNotFound,
	}
}

// CreateDistribution creates a distribution serving domain from its S3 origin.
//
// The origin follows the S3 convention: id "S3-<domain>", host
// "<domain>.s3.amazonaws.com". Viewers are redirected to HTTPS and TLS is
// terminated with the given ACM certificate (SNI). Creation returns before
// the distribution is deployed; callers poll for the "Deployed" status.
func (p *Provider) CreateDistribution(ctx context.Context, domain, certificateARN, rootObject string) (*provider.Distribution, error) {
	originID := "S3-" + domain

	cfg := &types.DistributionConfig{
		CallerReference:   aws.String(uuid.NewString()),
		Comment:           aws.String("Managed by weblift"),
		Enabled:           aws.Bool(true),
		DefaultRootObject: aws.String(rootObject),
		Aliases: &types.Aliases{
			Quantity: aws.Int32(1),
			Items:    []string{domain},
		},
		Origins: &types.Origins{
			Quantity: aws.Int32(1),
			Items: []types.Origin{{
				Id:         aws.String(originID),
				DomainName: aws.String(domain + ".s3.amazonaws.com"),
				S3OriginConfig: &types.S3OriginConfig{
					OriginAccessIdentity: aws.String(""),
				},
			}},
		},
		DefaultCacheBehavior: &types.DefaultCacheBehavior{
			TargetOriginId:       aws.String(originID),
			ViewerProtocolPolicy: types.ViewerProtocolPolicyRedirectToHttps,
			TrustedSigners: &types.TrustedSigners{
				Enabled:  aws.Bool(false),
				Quantity: aws.Int32(0),
			},
			ForwardedValues: &types.ForwardedValues{
				QueryString: aws.Bool(false),
				Cookies:     &types.CookiePreference{Forward: types.ItemSelectionNone},
				Headers:     &types.Headers{Quantity: aws.Int32(0)},
				QueryStringCacheKeys: &types.QueryStringCacheKeys{
					Quantity: aws.Int32(0),
				},
			},
			DefaultTTL: aws.Int64(defaultTTL),
			MinTTL:     aws.Int64(minTTL),
		},
		ViewerCertificate: &types.ViewerCertificate{
			ACMCertificateArn:      aws.String(certificateARN),
			SSLSupportMethod:       types.SSLSupportMethodSniOnly,
			MinimumProtocolVersion: types.MinimumProtocolVersionTLSv122021,
		},
	}

	out, err := p.client.CreateDistribution(ctx, &cloudfront.CreateDistributionInput{
		DistributionConfig: cfg,
	})
	if err != nil {
		return nil, p.wrapError("CreateDistribution", domain, err)
	}

	return &provider.Distribution{
		ID:         aws.ToString(out.Distribution.Id),
		DomainName: aws.ToString(out.Distribution.DomainName),
		Status:     aws.ToString(out.Distribution.Status),
	}, nil
}

// wrapError converts CloudFront errors to provider errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:      op,
		Service: provider.ServiceCloudFront,
		Key:     key,
		Err:     err,
	}

	var noSuchDist *types.NoSuchDistribution
	if errors.As(err, &noSuchDist) {
		wrapped.Err = provider.ErrNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchDistribution":
			wrapped.Err = provider.ErrNotFound
		case "AccessDenied":
			wrapped.Err = provider.ErrAccessDenied
		case "Throttling", "ThrottlingException", "TooManyRequests":
			wrapped.Err = provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = provider.ErrProviderUnavailable
		}
	}

	return wrapped
}
