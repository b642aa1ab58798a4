package endpoints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnown(t *testing.T) {
	assert.True(t, Known("us-east-1"))
	assert.True(t, Known("eu-west-2"))
	assert.False(t, Known("mars-north-1"))
	assert.False(t, Known(""))
}

func TestGet(t *testing.T) {
	ep, ok := Get("us-west-2")
	require.True(t, ok)
	assert.Equal(t, "s3-website-us-west-2.amazonaws.com", ep.Host)
	assert.Equal(t, "Z3BJ6K6RIION7M", ep.HostedZoneID)

	_, ok = Get("nope")
	assert.False(t, ok)
}

func TestWebsiteURL(t *testing.T) {
	assert.Equal(t,
		"http://my-site.s3-website.eu-central-1.amazonaws.com",
		WebsiteURL("my-site", "eu-central-1"))
	assert.Equal(t, "", WebsiteURL("my-site", "unknown-region"))
}

func TestRegionsSortedAndComplete(t *testing.T) {
	regions := Regions()
	require.NotEmpty(t, regions)

	for i := 1; i < len(regions); i++ {
		assert.Less(t, regions[i-1], regions[i])
	}

	for _, r := range regions {
		ep, ok := Get(r)
		require.True(t, ok)
		assert.NotEmpty(t, ep.Host)
	}
}
