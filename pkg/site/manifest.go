// Package site provides loading and validation of weblift site manifests.
//
// A site manifest is a YAML or JSON file that declares everything one
// static website deployment needs: the bucket/domain, website documents,
// DNS records, CDN settings, and sync behavior.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	site:
//	  domain: www.example.com
//	  region: us-west-2
//	dns:
//	  records:
//	    - name: status.example.com
//	      type: CNAME
//	      value: status.hosted-elsewhere.net
//	cdn:
//	  enabled: true
//	sync:
//	  source: ./public
//	  excludes:
//	    - "**/*.draft.html"
//	  prune: true
package site

// Default values applied to optional manifest fields.
const (
	// DefaultIndexDocument is served for directory requests.
	DefaultIndexDocument = "index.html"

	// DefaultErrorDocument is served for missing keys.
	DefaultErrorDocument = "error.html"

	// DefaultRegion is used when site.region is omitted.
	DefaultRegion = "us-east-1"

	// DefaultRecordTTL is applied to DNS records without an explicit TTL.
	DefaultRecordTTL = 300
)

// Manifest represents a validated site manifest.
//
// A manifest declares one deployable website. Required fields are Version
// and Site; DNS, CDN, and Sync are optional with sensible defaults.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	// Example: "https://schemas.3leaps.dev/weblift/v1.0.0/site-manifest.schema.json"
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Site configures the bucket and website hosting.
	Site SiteConfig `json:"site" yaml:"site"`

	// DNS configures hosted zone and record management (optional).
	DNS DNSConfig `json:"dns,omitempty" yaml:"dns,omitempty"`

	// CDN configures the distribution in front of the site (optional).
	CDN CDNConfig `json:"cdn,omitempty" yaml:"cdn,omitempty"`

	// Sync configures content synchronization behavior (optional).
	Sync SyncConfig `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// SiteConfig configures the bucket and website hosting.
type SiteConfig struct {
	// Domain is the fully qualified site domain. The bucket is named
	// after the domain so the website endpoint resolves correctly.
	Domain string `json:"domain" yaml:"domain"`

	// Region is the provider region for the bucket. Default: us-east-1.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// IndexDocument is served for directory requests. Default: index.html.
	IndexDocument string `json:"index_document,omitempty" yaml:"index_document,omitempty"`

	// ErrorDocument is served for missing keys. Default: error.html.
	ErrorDocument string `json:"error_document,omitempty" yaml:"error_document,omitempty"`
}

// Bucket returns the bucket name for the site. Buckets are named after
// the domain; website-style DNS aliases depend on that.
func (s SiteConfig) Bucket() string {
	return s.Domain
}

// DNSConfig configures hosted zone and record management.
type DNSConfig struct {
	// Manage controls whether deploys touch DNS at all. Defaults to true;
	// an explicit false skips the DNS stage entirely.
	Manage *bool `json:"manage,omitempty" yaml:"manage,omitempty"`

	// Zone is the hosted zone name. When empty, the apex of the site
	// domain is used (the last two labels).
	Zone string `json:"zone,omitempty" yaml:"zone,omitempty"`

	// Records lists additional records to upsert alongside the site alias.
	Records []RecordConfig `json:"records,omitempty" yaml:"records,omitempty"`
}

// Managed reports whether the DNS stage should run.
func (d DNSConfig) Managed() bool {
	return d.Manage == nil || *d.Manage
}

// RecordConfig is one DNS record to upsert.
type RecordConfig struct {
	// Name is the fully qualified record name.
	Name string `json:"name" yaml:"name"`

	// Type is the record type: A, AAAA, CNAME, TXT, or MX.
	Type string `json:"type" yaml:"type"`

	// Value is the record data.
	Value string `json:"value" yaml:"value"`

	// TTL in seconds. Default: 300.
	TTL int64 `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// CDNConfig configures the distribution in front of the site.
type CDNConfig struct {
	// Enabled turns on the CDN stage. Default: false.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// CertificateARN pins the TLS certificate. When empty, an issued
	// certificate covering the domain is looked up at deploy time.
	CertificateARN string `json:"certificate_arn,omitempty" yaml:"certificate_arn,omitempty"`
}

// SyncConfig configures content synchronization behavior.
type SyncConfig struct {
	// Source is the local directory holding the site content.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Excludes is a list of glob patterns for files to leave out.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`

	// IncludeHidden uploads dotfiles too. Default: false.
	IncludeHidden bool `json:"include_hidden,omitempty" yaml:"include_hidden,omitempty"`

	// Concurrency is the upload worker count. Range: 1-32. Default: 8.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// RateLimit is the maximum provider mutations per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// Prune deletes remote objects with no local counterpart. Default: false.
	Prune bool `json:"prune,omitempty" yaml:"prune,omitempty"`
}

// ApplyDefaults fills optional fields with their documented defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Site.Region == "" {
		m.Site.Region = DefaultRegion
	}
	if m.Site.IndexDocument == "" {
		m.Site.IndexDocument = DefaultIndexDocument
	}
	if m.Site.ErrorDocument == "" {
		m.Site.ErrorDocument = DefaultErrorDocument
	}
	for i := range m.DNS.Records {
		if m.DNS.Records[i].TTL == 0 {
			m.DNS.Records[i].TTL = DefaultRecordTTL
		}
	}
	if m.Sync.Concurrency == 0 {
		m.Sync.Concurrency = 8
	}
}
