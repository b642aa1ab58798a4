package route53

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApexOf(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		want   string
	}{
		{name: "bare apex", domain: "example.com", want: "example.com"},
		{name: "www subdomain", domain: "www.example.com", want: "example.com"},
		{name: "deep subdomain", domain: "a.b.example.com", want: "example.com"},
		{name: "trailing dot", domain: "www.example.com.", want: "example.com"},
		{name: "single label", domain: "localhost", want: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApexOf(tt.domain))
		})
	}
}

func TestCleanZoneID(t *testing.T) {
	assert.Equal(t, "Z123ABC", cleanZoneID("/hostedzone/Z123ABC"))
	assert.Equal(t, "Z123ABC", cleanZoneID("Z123ABC"))
}
