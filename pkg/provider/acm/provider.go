// Package acm implements TLS certificate discovery via AWS Certificate Manager.
//
// CloudFront only accepts certificates from us-east-1, so this provider is
// pinned there regardless of where the site bucket lives.
package acm

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/weblift/pkg/provider"
)

// certRegion is the only region CloudFront accepts certificates from.
const certRegion = "us-east-1"

// Config configures an ACM provider.
type Config struct {
	// Profile is the AWS profile name to use from shared config.
	Profile string
}

// Provider looks up issued certificates in ACM.
type Provider struct {
	client *acm.Client
}

// New creates a new ACM provider pinned to us-east-1.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(certRegion),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:      "New",
			Service: provider.ServiceACM,
			Err:     err,
		}
	}

	return &Provider{client: acm.NewFromConfig(awsCfg)}, nil
}

// FindCertificate returns the ARN of an issued certificate covering domain.
//
// A certificate covers the domain when one of its subject alternative names
// matches exactly or is a wildcard for the domain's parent
// ("*.example.com" covers "www.example.com").
// Returns ErrNotFound if no issued certificate matches.
func (p *Provider) FindCertificate(ctx context.Context, domain string) (string, error) {
	var token *string

	for {
		out, err := p.client.ListCertificates(ctx, &acm.ListCertificatesInput{
			CertificateStatuses: []types.CertificateStatus{types.CertificateStatusIssued},
			NextToken:           token,
		})
		if err != nil {
			return "", p.wrapError("ListCertificates", domain, err)
		}

		for _, summary := range out.CertificateSummaryList {
			arn := aws.ToString(summary.CertificateArn)
			ok, err := p.certMatches(ctx, arn, domain)
			if err != nil {
				return "", err
			}
			if ok {
				return arn, nil
			}
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return "", &provider.ProviderError{
		Op:      "FindCertificate",
		Service: provider.ServiceACM,
		Key:     domain,
		Err:     provider.ErrNotFound,
	}
}

// certMatches reports whether any SAN on the certificate covers domain.
func (p *Provider) certMatches(ctx context.Context, arn, domain string) (bool, error) {
	out, err := p.client.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(arn),
	})
	if err != nil {
		return false, p.wrapError("DescribeCertificate", domain, err)
	}

	for _, san := range out.Certificate.SubjectAlternativeNames {
		if SANMatches(san, domain) {
			return true, nil
		}
	}
	return false, nil
}

// SANMatches reports whether a subject alternative name covers domain.
// Wildcards match a single leading label: "*.example.com" covers
// "www.example.com" but not "example.com" or "a.b.example.com".
func SANMatches(san, domain string) bool {
	if san == domain {
		return true
	}
	if !strings.HasPrefix(san, "*.") {
		return false
	}

	suffix := san[1:] // ".example.com"
	if !strings.HasSuffix(domain, suffix) {
		return false
	}
	label := strings.TrimSuffix(domain, suffix)
	return label != "" && !strings.Contains(label, ".")
}

// wrapError converts ACM errors to provider errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:      op,
		Service: provider.ServiceACM,
		Key:     key,
		Err:     err,
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		wrapped.Err = provider.ErrNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException":
			wrapped.Err = provider.ErrNotFound
		case "AccessDeniedException":
			wrapped.Err = provider.ErrAccessDenied
		case "ThrottlingException":
			wrapped.Err = provider.ErrThrottled
		}
	}

	return wrapped
}
