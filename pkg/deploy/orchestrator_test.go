package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/weblift/pkg/output"
	"github.com/3leaps/weblift/pkg/provider"
	"github.com/3leaps/weblift/pkg/provider/cloudfront"
	"github.com/3leaps/weblift/pkg/provider/providertest"
	"github.com/3leaps/weblift/pkg/site"
)

type fakeCerts struct {
	arn string
	err error

	calls int
}

func (f *fakeCerts) FindCertificate(ctx context.Context, domain string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.arn, nil
}

func testManifest(t *testing.T, source string) *site.Manifest {
	t.Helper()
	m := &site.Manifest{
		Version: "1.0",
		Site:    site.SiteConfig{Domain: "www.example.com"},
		Sync:    site.SyncConfig{Source: source},
	}
	m.ApplyDefaults()
	return m
}

func testSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "error.html"), []byte("<html>404</html>"), 0o644))
	return dir
}

func stageByName(t *testing.T, res *Result, stage Stage) StageResult {
	t.Helper()
	for _, sr := range res.Stages {
		if sr.Stage == stage {
			return sr
		}
	}
	t.Fatalf("stage %s not in result", stage)
	return StageResult{}
}

func TestRunFreshDeployProvisionsEverything(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	m := testManifest(t, testSource(t))

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())
	require.Len(t, res.Stages, 5)

	assert.Equal(t, StatusCreated, stageByName(t, res, StageBucketCreate).Status)
	assert.Equal(t, StatusCreated, stageByName(t, res, StageWebsiteConfigure).Status)
	assert.Equal(t, StatusCreated, stageByName(t, res, StageSyncContent).Status)
	assert.Equal(t, StatusCreated, stageByName(t, res, StageDNSConfigure).Status)
	assert.Equal(t, StatusSkipped, stageByName(t, res, StageCDNConfigure).Status)

	bucket := store.Bucket("www.example.com")
	require.NotNil(t, bucket)
	assert.Equal(t, "index.html", bucket.IndexDoc)
	assert.Equal(t, "error.html", bucket.ErrorDoc)
	assert.Contains(t, bucket.Policy, "www.example.com")
	assert.Len(t, bucket.Objects, 2)

	require.NotNil(t, res.Sync)
	assert.Equal(t, int64(2), res.Sync.Uploaded)

	// The zone was created for the apex and the site alias points at the
	// region's website endpoint.
	zone, err := dns.FindZone(context.Background(), "example.com")
	require.NoError(t, err)
	target := dns.Zone(zone.ID).Aliases["www.example.com"]
	assert.Equal(t, "s3-website-us-east-1.amazonaws.com", target.DNSName)
	assert.NotEmpty(t, target.HostedZoneID)
}

func TestRunIsIdempotent(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	m := testManifest(t, testSource(t))

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{})
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())

	assert.Equal(t, StatusAlreadySatisfied, stageByName(t, res, StageBucketCreate).Status)
	assert.Equal(t, StatusAlreadySatisfied, stageByName(t, res, StageSyncContent).Status)
	assert.Equal(t, StatusAlreadySatisfied, stageByName(t, res, StageDNSConfigure).Status)
	assert.Equal(t, int64(2), res.Sync.Skipped)
	assert.Equal(t, int64(0), res.Sync.Uploaded)
}

func TestRunBucketNameConflictHaltsPipeline(t *testing.T) {
	store := providertest.NewStorage()
	store.ForeignBuckets["www.example.com"] = true
	m := testManifest(t, testSource(t))

	o := New(m, store, providertest.NewDNS(), nil, nil, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Stages, 1, "pipeline halts at the failed stage")
	failed := res.FailedStage()
	require.NotNil(t, failed)
	assert.Equal(t, StageBucketCreate, failed.Stage)
	assert.Equal(t, ErrKindNameConflict, failed.ErrKind)
}

func TestRunInvalidManifestHasZeroSideEffects(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	m := testManifest(t, testSource(t))
	m.Site.Region = "mars-north-1"

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{})
	_, err := o.Run(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	buckets, _ := store.ListBuckets(context.Background())
	assert.Empty(t, buckets)
	assert.Empty(t, dns.UpsertCalls)
}

func TestRunMissingSourceFailsBeforeProviderCalls(t *testing.T) {
	store := providertest.NewStorage()
	m := testManifest(t, filepath.Join(t.TempDir(), "does-not-exist"))

	o := New(m, store, providertest.NewDNS(), nil, nil, output.Discard{}, nil, Options{})
	_, err := o.Run(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	buckets, _ := store.ListBuckets(context.Background())
	assert.Empty(t, buckets)
}

func TestRunPartialSyncHaltsBeforeDNS(t *testing.T) {
	store := providertest.NewStorage()
	store.PutErrs["index.html"] = []error{&provider.ProviderError{
		Op: "PutObject", Service: provider.ServiceS3, Key: "index.html",
		Err: provider.ErrAccessDenied,
	}}
	dns := providertest.NewDNS()
	m := testManifest(t, testSource(t))

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)

	failed := res.FailedStage()
	require.NotNil(t, failed)
	assert.Equal(t, StageSyncContent, failed.Stage)
	assert.Equal(t, ErrKindPartialSync, failed.ErrKind)

	// DNS must not advertise a bucket holding a partial tree.
	assert.Empty(t, dns.UpsertCalls)
	for _, sr := range res.Stages {
		assert.NotEqual(t, StageDNSConfigure, sr.Stage)
	}
}

func TestRunBestEffortContinuesPastPartialSync(t *testing.T) {
	store := providertest.NewStorage()
	store.PutErrs["index.html"] = []error{&provider.ProviderError{
		Op: "PutObject", Service: provider.ServiceS3, Key: "index.html",
		Err: provider.ErrAccessDenied,
	}}
	dns := providertest.NewDNS()
	m := testManifest(t, testSource(t))

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{BestEffort: true})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())

	assert.Equal(t, StatusCreated, stageByName(t, res, StageSyncContent).Status)
	assert.Equal(t, int64(1), res.Sync.Failed)
	assert.NotEmpty(t, dns.UpsertCalls, "best-effort runs still configure DNS")
}

func TestRunCDNCreatesDistributionAndRepointsAlias(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	cdn := providertest.NewCDN()
	certs := &fakeCerts{arn: "arn:aws:acm:us-east-1:123456789012:certificate/abc"}

	m := testManifest(t, testSource(t))
	m.CDN.Enabled = true

	o := New(m, store, dns, cdn, certs, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())

	sr := stageByName(t, res, StageCDNConfigure)
	assert.Equal(t, StatusCreated, sr.Status)
	assert.True(t, sr.Pending, "new distributions deploy asynchronously")
	assert.Equal(t, 1, certs.calls)
	assert.Equal(t, []string{"www.example.com"}, cdn.Created)

	zone, err := dns.FindZone(context.Background(), "example.com")
	require.NoError(t, err)
	target := dns.Zone(zone.ID).Aliases["www.example.com"]
	assert.Equal(t, cloudfront.HostedZoneID, target.HostedZoneID)
}

func TestRunCDNExistingDistributionAlreadySatisfied(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	cdn := providertest.NewCDN()
	cdn.AddDistribution("www.example.com", "DEXISTING", "Deployed")
	certs := &fakeCerts{arn: "unused"}

	m := testManifest(t, testSource(t))
	m.CDN.Enabled = true

	o := New(m, store, dns, cdn, certs, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)

	sr := stageByName(t, res, StageCDNConfigure)
	assert.Equal(t, StatusAlreadySatisfied, sr.Status)
	assert.Equal(t, "DEXISTING", sr.ResourceID)
	assert.False(t, sr.Pending)
	assert.Equal(t, 0, certs.calls, "existing distribution needs no certificate lookup")
	assert.Empty(t, cdn.Created)
}

func TestRunCDNPinnedCertificateSkipsLookup(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	cdn := providertest.NewCDN()
	certs := &fakeCerts{err: errors.New("must not be called")}

	m := testManifest(t, testSource(t))
	m.CDN.Enabled = true
	m.CDN.CertificateARN = "arn:aws:acm:us-east-1:123456789012:certificate/pinned"

	o := New(m, store, dns, cdn, certs, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())
	assert.Equal(t, 0, certs.calls)
}

func TestRunCDNNoCertificateFails(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	cdn := providertest.NewCDN()
	certs := &fakeCerts{err: &provider.ProviderError{
		Op: "ListCertificates", Service: provider.ServiceACM,
		Err: provider.ErrNotFound,
	}}

	m := testManifest(t, testSource(t))
	m.CDN.Enabled = true

	o := New(m, store, dns, cdn, certs, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)

	failed := res.FailedStage()
	require.NotNil(t, failed)
	assert.Equal(t, StageCDNConfigure, failed.Stage)
	assert.Empty(t, cdn.Created)
}

func TestRunUnmanagedDNSIsSkipped(t *testing.T) {
	store := providertest.NewStorage()
	m := testManifest(t, testSource(t))
	off := false
	m.DNS.Manage = &off

	o := New(m, store, nil, nil, nil, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())
	assert.Equal(t, StatusSkipped, stageByName(t, res, StageDNSConfigure).Status)
}

func TestRunSkipSyncLeavesContentAlone(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	m := testManifest(t, "")

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{SkipSync: true})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.FailedStage())

	assert.Equal(t, StatusSkipped, stageByName(t, res, StageSyncContent).Status)
	assert.Empty(t, store.Bucket("www.example.com").Objects)
	assert.Nil(t, res.Sync)
}

func TestRunOnlyDNSStage(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()

	m := testManifest(t, "")
	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{
		Only: []Stage{StageDNSConfigure},
	})
	res, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Stages, 1)
	assert.Equal(t, StageDNSConfigure, res.Stages[0].Stage)
	assert.Equal(t, StatusCreated, res.Stages[0].Status)

	buckets, _ := store.ListBuckets(context.Background())
	assert.Empty(t, buckets, "dns-only runs must not touch storage")
}

func TestRunExplicitZoneUsed(t *testing.T) {
	store := providertest.NewStorage()
	dns := providertest.NewDNS()
	dns.AddZone("ZCUSTOM", "sites.example.net")

	m := testManifest(t, testSource(t))
	m.Site.Domain = "www.example.com"
	m.DNS.Zone = "sites.example.net"

	o := New(m, store, dns, nil, nil, output.Discard{}, nil, Options{})
	res, err := o.Run(context.Background())
	require.NoError(t, err)

	sr := stageByName(t, res, StageDNSConfigure)
	assert.Equal(t, StatusAlreadySatisfied, sr.Status)
	assert.Equal(t, "ZCUSTOM", sr.ResourceID)
	require.Contains(t, dns.Zone("ZCUSTOM").Aliases, "www.example.com")
}
