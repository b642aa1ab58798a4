package s3

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty config is valid", cfg: Config{}},
		{name: "region only", cfg: Config{Region: "us-west-2"}},
		{
			name: "both credentials",
			cfg:  Config{AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		},
		{
			name:    "access key without secret",
			cfg:     Config{AccessKeyID: "AKIA"},
			wantErr: true,
		},
		{
			name:    "secret without access key",
			cfg:     Config{SecretAccessKey: "secret"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCleanETag(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "quoted", input: `"d41d8cd98f00b204e9800998ecf8427e"`, want: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "unquoted", input: "d41d8cd98f00b204e9800998ecf8427e", want: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "multipart", input: `"abc123-4"`, want: "abc123-4"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanETag(tt.input))
		})
	}
}

func TestClampMaxKeys(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		fallback  int
		want      int
	}{
		{name: "zero uses default", requested: 0, fallback: 500, want: 500},
		{name: "negative uses default", requested: -1, fallback: 500, want: 500},
		{name: "within range", requested: 100, fallback: 500, want: 100},
		{name: "clamped to max", requested: 5000, fallback: 500, want: MaxAllowedKeys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampMaxKeys(tt.requested, tt.fallback))
		})
	}
}

func TestWebsitePolicy(t *testing.T) {
	policy := WebsitePolicy("my-site")

	// Must be a valid JSON policy document.
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(policy), &doc))
	assert.Equal(t, "2012-10-17", doc["Version"])

	assert.True(t, strings.Contains(policy, `"arn:aws:s3:::my-site/*"`))
	assert.True(t, strings.Contains(policy, `"s3:GetObject"`))
}
