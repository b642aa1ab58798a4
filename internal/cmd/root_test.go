package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2026-08-01",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setDefaults()

	assert.Equal(t, "info", viper.GetString("logging.level"))
	assert.False(t, viper.GetBool("logging.json"))
	assert.Equal(t, 8, viper.GetInt("sync.concurrency"))
	assert.Equal(t, "stdout", viper.GetString("output.destination"))
}

func TestExitErrorCarriesCode(t *testing.T) {
	err := exitError(3, "Something failed", assert.AnError)
	assert.Contains(t, err.Error(), "Something failed")

	var coded *codedError
	assert.ErrorAs(t, err, &coded)
	assert.Equal(t, 3, coded.code)
}
