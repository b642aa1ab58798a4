// Package endpoints maps AWS regions to their S3 static-website hosting
// endpoints.
//
// Website endpoints are not derivable from the region name alone (the host
// format differs between older and newer regions) and alias records need the
// endpoint's fixed Route 53 hosted zone ID, so the table is maintained here.
// Source: AWS general reference, S3 website endpoints.
package endpoints

import "sort"

// Endpoint describes the S3 website hosting endpoint for one region.
type Endpoint struct {
	// RegionName is the human-readable region name (e.g. "US West (Oregon)").
	RegionName string

	// Host is the website endpoint hostname for buckets in the region.
	Host string

	// HostedZoneID is the fixed Route 53 zone ID for alias records that
	// target this endpoint. Empty for partitions without Route 53 aliases.
	HostedZoneID string
}

var regionToEndpoint = map[string]Endpoint{
	"us-east-2":      {"US East (Ohio)", "s3-website.us-east-2.amazonaws.com", "Z2O1EMRO9K5GLX"},
	"us-east-1":      {"US East (N. Virginia)", "s3-website-us-east-1.amazonaws.com", "Z3AQBSTGFYJSTF"},
	"us-west-1":      {"US West (N. California)", "s3-website-us-west-1.amazonaws.com", "Z2F56UZL2M1ACD"},
	"us-west-2":      {"US West (Oregon)", "s3-website-us-west-2.amazonaws.com", "Z3BJ6K6RIION7M"},
	"ca-central-1":   {"Canada (Central)", "s3-website.ca-central-1.amazonaws.com", "Z1QDHH18159H29"},
	"ap-south-1":     {"Asia Pacific (Mumbai)", "s3-website.ap-south-1.amazonaws.com", "Z11RGJOFQNVJUP"},
	"ap-northeast-2": {"Asia Pacific (Seoul)", "s3-website.ap-northeast-2.amazonaws.com", "Z3W03O7B5YMIYP"},
	"ap-northeast-3": {"Asia Pacific (Osaka-Local)", "s3-website.ap-northeast-3.amazonaws.com", "Z2YQB5RD63NC85"},
	"ap-southeast-1": {"Asia Pacific (Singapore)", "s3-website-ap-southeast-1.amazonaws.com", "Z3O0J2DXBE1FTB"},
	"ap-southeast-2": {"Asia Pacific (Sydney)", "s3-website-ap-southeast-2.amazonaws.com", "Z1WCIGYICN2BYD"},
	"ap-northeast-1": {"Asia Pacific (Tokyo)", "s3-website-ap-northeast-1.amazonaws.com", "Z2M4EHUR26P7ZW"},
	"cn-northwest-1": {"China (Ningxia)", "s3-website.cn-northwest-1.amazonaws.com.cn", ""},
	"eu-central-1":   {"EU (Frankfurt)", "s3-website.eu-central-1.amazonaws.com", "Z21DNDUVLTQW6Q"},
	"eu-west-1":      {"EU (Ireland)", "s3-website-eu-west-1.amazonaws.com", "Z1BKCTXD74EZPE"},
	"eu-west-2":      {"EU (London)", "s3-website.eu-west-2.amazonaws.com", "Z3GKZC51ZF0DB4"},
	"eu-west-3":      {"EU (Paris)", "s3-website.eu-west-3.amazonaws.com", "Z3R1K369G5AVDG"},
	"sa-east-1":      {"South America (Sao Paulo)", "s3-website-sa-east-1.amazonaws.com", "Z7KQH4QJS55SO"},
}

// Known reports whether the region has a website hosting endpoint.
func Known(region string) bool {
	_, ok := regionToEndpoint[region]
	return ok
}

// Get returns the website endpoint for the region.
// The second return value is false for unknown regions.
func Get(region string) (Endpoint, bool) {
	ep, ok := regionToEndpoint[region]
	return ep, ok
}

// WebsiteURL returns the public website URL for a bucket in the region,
// or "" if the region is unknown.
func WebsiteURL(bucket, region string) string {
	ep, ok := regionToEndpoint[region]
	if !ok {
		return ""
	}
	return "http://" + bucket + "." + ep.Host
}

// Regions returns the known region names in sorted order.
func Regions() []string {
	regions := make([]string, 0, len(regionToEndpoint))
	for r := range regionToEndpoint {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}
