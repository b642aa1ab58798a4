package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/3leaps/weblift/pkg/output"
	"github.com/3leaps/weblift/pkg/provider/acm"
	"github.com/3leaps/weblift/pkg/provider/cloudfront"
	"github.com/3leaps/weblift/pkg/provider/route53"
	"github.com/3leaps/weblift/pkg/provider/s3"
)

// newStorageProvider creates the S3 provider for the given bucket region.
// The global --region flag overrides the manifest region.
func newStorageProvider(ctx context.Context, region string) (*s3.Provider, error) {
	if override := viper.GetString("region"); override != "" {
		region = override
	}
	return s3.New(ctx, s3.Config{
		Region:  region,
		Profile: viper.GetString("profile"),
	})
}

func newDNSProvider(ctx context.Context) (*route53.Provider, error) {
	return route53.New(ctx, route53.Config{Profile: viper.GetString("profile")})
}

func newCDNProvider(ctx context.Context) (*cloudfront.Provider, error) {
	return cloudfront.New(ctx, cloudfront.Config{Profile: viper.GetString("profile")})
}

func newCertProvider(ctx context.Context) (*acm.Provider, error) {
	return acm.New(ctx, acm.Config{Profile: viper.GetString("profile")})
}

// newWriter creates the JSONL output writer for a run.
// Destination "" or "stdout" writes to standard output; anything else is a
// file path (an optional "file:" prefix is stripped).
func newWriter(dest, jobID string) (output.Writer, func(), error) {
	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, jobID)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, jobID)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
