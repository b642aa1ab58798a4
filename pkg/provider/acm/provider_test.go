package acm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSANMatches(t *testing.T) {
	tests := []struct {
		name   string
		san    string
		domain string
		want   bool
	}{
		{name: "exact match", san: "www.example.com", domain: "www.example.com", want: true},
		{name: "wildcard covers subdomain", san: "*.example.com", domain: "www.example.com", want: true},
		{name: "wildcard does not cover apex", san: "*.example.com", domain: "example.com", want: false},
		{name: "wildcard single label only", san: "*.example.com", domain: "a.b.example.com", want: false},
		{name: "different domain", san: "example.org", domain: "example.com", want: false},
		{name: "suffix but not label boundary", san: "*.example.com", domain: "badexample.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SANMatches(tt.san, tt.domain))
		})
	}
}
