package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/weblift/internal/observability"
	"github.com/3leaps/weblift/pkg/provider"
)

var objectsCmd = &cobra.Command{
	Use:   "objects <bucket>",
	Short: "List objects in a bucket",
	Long: `List objects in a bucket with size and content fingerprint,
tab-separated, one per line.

Example:
  weblift objects www.example.com
  weblift objects www.example.com --prefix img/`,
	Args: cobra.ExactArgs(1),
	RunE: runObjects,
}

var (
	objectsPrefix string
	objectsLimit  int
)

func init() {
	rootCmd.AddCommand(objectsCmd)

	objectsCmd.Flags().StringVar(&objectsPrefix, "prefix", "", "Only list keys with this prefix")
	objectsCmd.Flags().IntVar(&objectsLimit, "limit", 0, "Stop after this many objects (0 = all)")
}

func runObjects(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	bucket := args[0]

	storage, err := newStorageProvider(ctx, "")
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer storage.Close()

	var token string
	var printed int
	for {
		res, err := storage.List(ctx, bucket, provider.ListOptions{
			Prefix:            objectsPrefix,
			ContinuationToken: token,
		})
		if err != nil {
			if provider.IsBucketNotFound(err) {
				return exitError(foundry.ExitInvalidArgument, "Bucket not found", err)
			}
			observability.CLILogger.Error("Failed to list objects",
				zap.String("bucket", bucket), zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list objects", err)
		}

		for _, obj := range res.Objects {
			fmt.Printf("%s\t%d\t%s\n", obj.Key, obj.Size, obj.ETag)
			printed++
			if objectsLimit > 0 && printed >= objectsLimit {
				return nil
			}
		}

		if !res.IsTruncated {
			return nil
		}
		token = res.ContinuationToken
	}
}
