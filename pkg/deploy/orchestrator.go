package deploy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/weblift/pkg/endpoints"
	"github.com/3leaps/weblift/pkg/inventory"
	"github.com/3leaps/weblift/pkg/match"
	"github.com/3leaps/weblift/pkg/output"
	"github.com/3leaps/weblift/pkg/plan"
	"github.com/3leaps/weblift/pkg/provider"
	"github.com/3leaps/weblift/pkg/provider/cloudfront"
	"github.com/3leaps/weblift/pkg/provider/route53"
	"github.com/3leaps/weblift/pkg/provider/s3"
	"github.com/3leaps/weblift/pkg/scanner"
	"github.com/3leaps/weblift/pkg/site"
	"github.com/3leaps/weblift/pkg/syncer"
)

// CertificateFinder looks up an issued TLS certificate covering a domain.
// Implemented by the ACM provider.
type CertificateFinder interface {
	// FindCertificate returns the ARN of an issued certificate whose
	// names cover domain, or ErrNotFound.
	FindCertificate(ctx context.Context, domain string) (string, error)
}

// Options tunes one pipeline run.
type Options struct {
	// Source overrides the manifest's sync.source directory.
	Source string

	// SkipSync leaves bucket content alone (infrastructure-only deploy).
	SkipSync bool

	// BestEffort keeps the pipeline going past a partial content sync
	// instead of halting before DNS and CDN.
	BestEffort bool

	// Only restricts the run to the listed stages, in pipeline order.
	// Empty means all stages.
	Only []Stage
}

func (o Options) RunsStage(stage Stage) bool {
	if len(o.Only) == 0 {
		return true
	}
	for _, s := range o.Only {
		if s == stage {
			return true
		}
	}
	return false
}

// Orchestrator runs the provisioning pipeline for one site manifest.
type Orchestrator struct {
	manifest *site.Manifest
	storage  provider.Storage
	dns      provider.DNS
	cdn      provider.CDN
	certs    CertificateFinder
	writer   output.Writer
	logger   *zap.Logger
	opts     Options
}

// New creates an orchestrator.
//
// dns, cdn, and certs may be nil when the manifest does not use the
// corresponding stage; Run fails with a ValidationError if a required
// service is missing. writer receives stage and sync records; pass
// output.Discard to suppress them. A nil logger disables logging.
func New(m *site.Manifest, storage provider.Storage, dns provider.DNS, cdn provider.CDN, certs CertificateFinder, writer output.Writer, logger *zap.Logger, opts Options) *Orchestrator {
	if writer == nil {
		writer = output.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		manifest: m,
		storage:  storage,
		dns:      dns,
		cdn:      cdn,
		certs:    certs,
		writer:   writer,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes the pipeline and returns the per-stage results.
//
// Preflight validation happens before any provider call; a
// ValidationError therefore guarantees zero side effects. After
// preflight, stage failures are reported in the Result rather than as a
// Run error, and the pipeline halts at the first failed stage.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	scn, err := o.preflight()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	stages := []struct {
		name Stage
		run  func(context.Context, *Result, *scanner.Scanner) StageResult
	}{
		{StageBucketCreate, o.ensureBucket},
		{StageWebsiteConfigure, o.configureWebsite},
		{StageSyncContent, o.syncContent},
		{StageDNSConfigure, o.configureDNS},
		{StageCDNConfigure, o.configureCDN},
	}

	for _, stage := range stages {
		if !o.opts.RunsStage(stage.name) {
			continue
		}
		sr := stage.run(ctx, res, scn)
		res.Stages = append(res.Stages, sr)
		o.emit(ctx, &sr)
		if sr.Status == StatusFailed {
			break
		}
	}
	return res, nil
}

// preflight validates everything that can be checked without a provider
// call: required services, manifest semantics, and the source tree.
func (o *Orchestrator) preflight() (*scanner.Scanner, error) {
	m := o.manifest
	if err := m.Validate(); err != nil {
		return nil, &ValidationError{Reason: "invalid manifest", Err: err}
	}
	if o.storage == nil {
		return nil, &ValidationError{Reason: "storage provider is required"}
	}
	if m.DNS.Managed() && o.dns == nil && o.opts.RunsStage(StageDNSConfigure) {
		return nil, &ValidationError{Reason: "manifest manages DNS but no DNS provider was given"}
	}
	if m.CDN.Enabled && o.cdn == nil && o.opts.RunsStage(StageCDNConfigure) {
		return nil, &ValidationError{Reason: "manifest enables CDN but no CDN provider was given"}
	}

	if o.opts.SkipSync || !o.opts.RunsStage(StageSyncContent) {
		return nil, nil
	}

	source := o.opts.Source
	if source == "" {
		source = m.Sync.Source
	}
	if source == "" {
		return nil, &ValidationError{Reason: "no sync source: set sync.source in the manifest or pass one explicitly"}
	}

	matcher, err := match.New(match.Config{
		Excludes:      m.Sync.Excludes,
		IncludeHidden: m.Sync.IncludeHidden,
	})
	if err != nil {
		return nil, &ValidationError{Reason: "invalid exclude patterns", Err: err}
	}

	scn, err := scanner.New(source, matcher, o.logger)
	if err != nil {
		return nil, &ValidationError{Reason: "unusable sync source", Err: err}
	}
	return scn, nil
}

func (o *Orchestrator) ensureBucket(ctx context.Context, _ *Result, _ *scanner.Scanner) StageResult {
	m := o.manifest
	bucket := m.Site.Bucket()

	exists, err := o.storage.BucketExists(ctx, bucket)
	if err != nil {
		return o.fail(StageBucketCreate, bucket, err)
	}
	if exists {
		return StageResult{Stage: StageBucketCreate, Status: StatusAlreadySatisfied, ResourceID: bucket}
	}

	if err := o.storage.CreateBucket(ctx, bucket, m.Site.Region); err != nil {
		return o.fail(StageBucketCreate, bucket, err)
	}
	o.logger.Info("created bucket",
		zap.String("bucket", bucket), zap.String("region", m.Site.Region))
	return StageResult{Stage: StageBucketCreate, Status: StatusCreated, ResourceID: bucket}
}

// configureWebsite applies website hosting and the public-read policy.
// Both calls have overwrite semantics, so the stage reports created on
// every run rather than guessing whether anything changed.
func (o *Orchestrator) configureWebsite(ctx context.Context, _ *Result, _ *scanner.Scanner) StageResult {
	m := o.manifest
	bucket := m.Site.Bucket()

	if err := o.storage.ConfigureWebsite(ctx, bucket, m.Site.IndexDocument, m.Site.ErrorDocument); err != nil {
		return o.fail(StageWebsiteConfigure, bucket, err)
	}
	if err := o.storage.SetBucketPolicy(ctx, bucket, s3.WebsitePolicy(bucket)); err != nil {
		return o.fail(StageWebsiteConfigure, bucket, err)
	}

	url := endpoints.WebsiteURL(bucket, m.Site.Region)
	o.logger.Info("configured website hosting",
		zap.String("bucket", bucket), zap.String("url", url))
	return StageResult{Stage: StageWebsiteConfigure, Status: StatusCreated, ResourceID: url}
}

func (o *Orchestrator) syncContent(ctx context.Context, res *Result, scn *scanner.Scanner) StageResult {
	m := o.manifest
	bucket := m.Site.Bucket()

	if o.opts.SkipSync {
		return StageResult{Stage: StageSyncContent, Status: StatusSkipped, ResourceID: bucket}
	}

	locals, err := scn.Objects(ctx)
	if err != nil {
		return o.fail(StageSyncContent, bucket, err)
	}
	remotes, err := inventory.NewReader(o.storage, bucket).Read(ctx)
	if err != nil {
		return o.fail(StageSyncContent, bucket, err)
	}

	pl := plan.Build(locals, remotes, m.Sync.Prune)
	exec := syncer.New(o.storage, bucket, o.writer, o.logger, syncer.Config{
		Concurrency: m.Sync.Concurrency,
		RateLimit:   m.Sync.RateLimit,
	})
	sum, err := exec.Run(ctx, pl)
	res.Sync = sum
	if err != nil {
		return o.fail(StageSyncContent, bucket, err)
	}
	if sum.Failed > 0 {
		if o.opts.BestEffort {
			o.logger.Warn("continuing past partial sync",
				zap.Int64("failed", sum.Failed))
			return StageResult{Stage: StageSyncContent, Status: StatusCreated, ResourceID: bucket}
		}
		sr := o.fail(StageSyncContent, bucket,
			fmt.Errorf("%d of %d actions failed", sum.Failed, len(pl.Actions)))
		sr.ErrKind = ErrKindPartialSync
		return sr
	}

	if pl.AllSkips() {
		return StageResult{Stage: StageSyncContent, Status: StatusAlreadySatisfied, ResourceID: bucket}
	}
	return StageResult{Stage: StageSyncContent, Status: StatusCreated, ResourceID: bucket}
}

func (o *Orchestrator) configureDNS(ctx context.Context, _ *Result, _ *scanner.Scanner) StageResult {
	m := o.manifest
	domain := m.Site.Domain

	if !m.DNS.Managed() {
		return StageResult{Stage: StageDNSConfigure, Status: StatusSkipped}
	}

	zone, created, err := o.ensureZone(ctx)
	if err != nil {
		return o.fail(StageDNSConfigure, domain, err)
	}

	for _, rec := range m.DNS.Records {
		err := o.dns.UpsertRecord(ctx, zone.ID, provider.Record{
			Name: rec.Name, Type: rec.Type, Value: rec.Value, TTL: rec.TTL,
		})
		if err != nil {
			return o.fail(StageDNSConfigure, zone.ID, err)
		}
	}

	// The site alias points at the website endpoint; the CDN stage
	// repoints it when a distribution fronts the site.
	endpoint, ok := endpoints.Get(m.Site.Region)
	if !ok {
		return o.fail(StageDNSConfigure, zone.ID,
			fmt.Errorf("no website endpoint for region %s", m.Site.Region))
	}
	err = o.dns.UpsertAlias(ctx, zone.ID, domain, provider.AliasTarget{
		DNSName:      endpoint.Host,
		HostedZoneID: endpoint.HostedZoneID,
	})
	if err != nil {
		return o.fail(StageDNSConfigure, zone.ID, err)
	}

	status := StatusAlreadySatisfied
	if created {
		status = StatusCreated
	}
	o.logger.Info("configured DNS",
		zap.String("zone", zone.Name), zap.String("domain", domain))
	return StageResult{Stage: StageDNSConfigure, Status: status, ResourceID: zone.ID}
}

// ensureZone finds the hosted zone for the site, creating it when absent.
func (o *Orchestrator) ensureZone(ctx context.Context) (*provider.Zone, bool, error) {
	zoneName := o.manifest.DNS.Zone
	if zoneName == "" {
		zoneName = route53.ApexOf(o.manifest.Site.Domain)
	}

	zone, err := o.dns.FindZone(ctx, zoneName)
	if err == nil {
		return zone, false, nil
	}
	if !provider.IsNotFound(err) {
		return nil, false, err
	}

	zone, err = o.dns.CreateZone(ctx, zoneName)
	if err != nil {
		return nil, false, err
	}
	o.logger.Info("created hosted zone", zap.String("zone", zone.Name))
	return zone, true, nil
}

func (o *Orchestrator) configureCDN(ctx context.Context, _ *Result, _ *scanner.Scanner) StageResult {
	m := o.manifest
	domain := m.Site.Domain

	if !m.CDN.Enabled {
		return StageResult{Stage: StageCDNConfigure, Status: StatusSkipped}
	}

	dist, err := o.cdn.FindDistribution(ctx, domain)
	created := false
	switch {
	case err == nil:
		// Existing distribution; nothing to create.
	case provider.IsNotFound(err):
		arn, cerr := o.certificateARN(ctx, domain)
		if cerr != nil {
			return o.fail(StageCDNConfigure, domain, cerr)
		}
		dist, cerr = o.cdn.CreateDistribution(ctx, domain, arn, m.Site.IndexDocument)
		if cerr != nil {
			return o.fail(StageCDNConfigure, domain, cerr)
		}
		created = true
		o.logger.Info("created distribution",
			zap.String("id", dist.ID), zap.String("domain", domain))
	default:
		return o.fail(StageCDNConfigure, domain, err)
	}

	// Repoint the site alias at the distribution so traffic goes through
	// the CDN instead of the bare website endpoint.
	if m.DNS.Managed() && o.dns != nil {
		zone, _, zerr := o.ensureZone(ctx)
		if zerr != nil {
			return o.fail(StageCDNConfigure, dist.ID, zerr)
		}
		zerr = o.dns.UpsertAlias(ctx, zone.ID, domain, provider.AliasTarget{
			DNSName:      dist.DomainName,
			HostedZoneID: cloudfront.HostedZoneID,
		})
		if zerr != nil {
			return o.fail(StageCDNConfigure, dist.ID, zerr)
		}
	}

	status := StatusAlreadySatisfied
	if created {
		status = StatusCreated
	}
	return StageResult{
		Stage:      StageCDNConfigure,
		Status:     status,
		ResourceID: dist.ID,
		Pending:    !dist.Deployed(),
	}
}

// certificateARN resolves the TLS certificate for the distribution:
// the manifest's pinned ARN, or an issued certificate covering the domain.
func (o *Orchestrator) certificateARN(ctx context.Context, domain string) (string, error) {
	if arn := o.manifest.CDN.CertificateARN; arn != "" {
		return arn, nil
	}
	if o.certs == nil {
		return "", fmt.Errorf("no certificate_arn in manifest and no certificate lookup available")
	}
	arn, err := o.certs.FindCertificate(ctx, domain)
	if err != nil {
		if provider.IsNotFound(err) {
			return "", fmt.Errorf("no issued certificate covers %s: %w", domain, err)
		}
		return "", err
	}
	return arn, nil
}

func (o *Orchestrator) fail(stage Stage, resource string, err error) StageResult {
	kind := ErrKindProvider
	if provider.IsBucketConflict(err) {
		kind = ErrKindNameConflict
	}
	o.logger.Error("stage failed",
		zap.String("stage", string(stage)), zap.Error(err))
	return StageResult{
		Stage:      stage,
		Status:     StatusFailed,
		ResourceID: resource,
		ErrKind:    kind,
		Err:        err,
	}
}

func (o *Orchestrator) emit(ctx context.Context, sr *StageResult) {
	if err := o.writer.WriteStage(ctx, sr.record()); err != nil {
		o.logger.Warn("failed to write stage record", zap.Error(err))
	}
}
