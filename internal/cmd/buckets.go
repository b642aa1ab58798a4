package cmd

import (
	"fmt"
	"sort"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/weblift/internal/observability"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List buckets owned by the caller",
	Long: `List all buckets the configured credentials own, one per line.

Example:
  weblift buckets
  weblift buckets --profile staging`,
	RunE: runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
}

func runBuckets(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	storage, err := newStorageProvider(ctx, "")
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer storage.Close()

	names, err := storage.ListBuckets(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to list buckets", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list buckets", err)
	}

	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
