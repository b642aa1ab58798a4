// Package route53 implements the DNS provider for AWS Route 53.
package route53

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/3leaps/weblift/pkg/provider"
)

// changeComment is attached to every record change batch for audit trails.
const changeComment = "Managed by weblift"

// Config configures a Route 53 provider.
type Config struct {
	// Profile is the AWS profile name to use from shared config.
	Profile string
}

// Provider implements provider.DNS for AWS Route 53.
type Provider struct {
	client *route53.Client
}

var _ provider.DNS = (*Provider)(nil)

// New creates a new Route 53 provider.
//
// Route 53 is a global service; no region configuration is needed.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:      "New",
			Service: provider.ServiceRoute53,
			Err:     err,
		}
	}

	return &Provider{client: route53.NewFromConfig(awsCfg)}, nil
}

// FindZone returns the hosted zone whose name is a suffix of domain.
//
// "blog.example.com" matches a zone named "example.com."; the longest
// matching zone wins when nested zones exist.
func (p *Provider) FindZone(ctx context.Context, domain string) (*provider.Zone, error) {
	var (
		best   *provider.Zone
		marker *string
	)

	for {
		out, err := p.client.ListHostedZones(ctx, &route53.ListHostedZonesInput{Marker: marker})
		if err != nil {
			return nil, p.wrapError("ListHostedZones", domain, err)
		}

		for _, zone := range out.HostedZones {
			name := strings.TrimSuffix(aws.ToString(zone.Name), ".")
			if domain == name || strings.HasSuffix(domain, "."+name) {
				if best == nil || len(name) > len(best.Name) {
					best = &provider.Zone{
						ID:   cleanZoneID(aws.ToString(zone.Id)),
						Name: name,
					}
				}
			}
		}

		if !out.IsTruncated || out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	if best == nil {
		return nil, &provider.ProviderError{
			Op:      "FindZone",
			Service: provider.ServiceRoute53,
			Key:     domain,
			Err:     provider.ErrNotFound,
		}
	}
	return best, nil
}

// CreateZone creates a hosted zone for the apex of domain.
//
// The apex is the last two labels of the domain ("www.example.com" gets a
// zone named "example.com."). CallerReference makes the request idempotent
// against accidental replays on the provider side.
func (p *Provider) CreateZone(ctx context.Context, domain string) (*provider.Zone, error) {
	zoneName := ApexOf(domain) + "."

	out, err := p.client.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            aws.String(zoneName),
		CallerReference: aws.String(uuid.NewString()),
	})
	if err != nil {
		return nil, p.wrapError("CreateHostedZone", domain, err)
	}

	return &provider.Zone{
		ID:   cleanZoneID(aws.ToString(out.HostedZone.Id)),
		Name: strings.TrimSuffix(aws.ToString(out.HostedZone.Name), "."),
	}, nil
}

// UpsertRecord creates or overwrites a record by (name, type).
func (p *Provider) UpsertRecord(ctx context.Context, zoneID string, rec provider.Record) error {
	ttl := rec.TTL
	if ttl <= 0 {
		ttl = 300
	}

	set := &types.ResourceRecordSet{
		Name:            aws.String(rec.Name),
		Type:            types.RRType(rec.Type),
		TTL:             aws.Int64(ttl),
		ResourceRecords: []types.ResourceRecord{{Value: aws.String(rec.Value)}},
	}

	if err := p.change(ctx, zoneID, set); err != nil {
		return p.wrapError("UpsertRecord", rec.Name, err)
	}
	return nil
}

// UpsertAlias creates or overwrites an A-alias record pointing at target.
func (p *Provider) UpsertAlias(ctx context.Context, zoneID, name string, target provider.AliasTarget) error {
	set := &types.ResourceRecordSet{
		Name: aws.String(name),
		Type: types.RRTypeA,
		AliasTarget: &types.AliasTarget{
			DNSName:              aws.String(target.DNSName),
			HostedZoneId:         aws.String(target.HostedZoneID),
			EvaluateTargetHealth: false,
		},
	}

	if err := p.change(ctx, zoneID, set); err != nil {
		return p.wrapError("UpsertAlias", name, err)
	}
	return nil
}

// change submits a single UPSERT batch against the zone.
func (p *Provider) change(ctx context.Context, zoneID string, set *types.ResourceRecordSet) error {
	_, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String(changeComment),
			Changes: []types.Change{{
				Action:            types.ChangeActionUpsert,
				ResourceRecordSet: set,
			}},
		},
	})
	return err
}

// wrapError converts Route 53 errors to provider errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:      op,
		Service: provider.ServiceRoute53,
		Key:     key,
		Err:     err,
	}

	var noSuchZone *types.NoSuchHostedZone
	if errors.As(err, &noSuchZone) {
		wrapped.Err = provider.ErrNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchHostedZone":
			wrapped.Err = provider.ErrNotFound
		case "AccessDenied", "AccessDeniedException":
			wrapped.Err = provider.ErrAccessDenied
		case "Throttling", "ThrottlingException", "PriorRequestNotComplete":
			wrapped.Err = provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = provider.ErrProviderUnavailable
		}
	}

	return wrapped
}

// cleanZoneID strips the "/hostedzone/" prefix Route 53 returns on zone IDs.
func cleanZoneID(id string) string {
	return strings.TrimPrefix(id, "/hostedzone/")
}

// ApexOf returns the registrable apex of a domain name: the last two
// labels ("www.example.com" -> "example.com").
func ApexOf(domain string) string {
	parts := strings.Split(strings.TrimSuffix(domain, "."), ".")
	if len(parts) <= 2 {
		return strings.Join(parts, ".")
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
