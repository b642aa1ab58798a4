package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/weblift/internal/observability"
	"github.com/3leaps/weblift/pkg/inventory"
	"github.com/3leaps/weblift/pkg/match"
	"github.com/3leaps/weblift/pkg/plan"
	"github.com/3leaps/weblift/pkg/scanner"
	"github.com/3leaps/weblift/pkg/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync <source> <bucket>",
	Short: "Synchronize a local directory into a bucket",
	Long: `Synchronize a local directory into a bucket by content fingerprint.

Files whose fingerprint already matches the remote copy are skipped, so
repeat syncs only transfer what changed. With --prune, remote objects that
have no local counterpart are deleted after all uploads are dispatched.

Example:
  weblift sync ./public www.example.com
  weblift sync ./public www.example.com --prune --exclude "**/*.draft.html"
  weblift sync ./public www.example.com --dry-run`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

var (
	syncPrune         bool
	syncBestEffort    bool
	syncDryRun        bool
	syncIncludeHidden bool
	syncConcurrency   int
	syncRateLimit     float64
	syncExcludes      []string
	syncOutput        string
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncPrune, "prune", false, "Delete remote objects with no local counterpart")
	syncCmd.Flags().BoolVar(&syncBestEffort, "best-effort", false, "Exit zero even when some keys fail")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Show the plan without executing it")
	syncCmd.Flags().BoolVar(&syncIncludeHidden, "include-hidden", false, "Upload dotfiles too")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", syncer.DefaultConcurrency, "Upload worker count")
	syncCmd.Flags().Float64Var(&syncRateLimit, "rate-limit", 0, "Max provider mutations per second (0 = unlimited)")
	syncCmd.Flags().StringArrayVar(&syncExcludes, "exclude", nil, "Glob pattern to exclude (repeatable)")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "", "JSONL output destination (default stdout)")

}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	source, bucket := args[0], args[1]

	if syncConcurrency < 1 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --concurrency value", fmt.Errorf("concurrency must be >= 1"))
	}

	matcher, err := match.New(match.Config{
		Excludes:      syncExcludes,
		IncludeHidden: syncIncludeHidden,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid exclude patterns", err)
	}

	scn, err := scanner.New(source, matcher, observability.CLILogger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Unusable source directory", err)
	}

	locals, err := scn.Objects(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Sync cancelled", err)
		}
		return exitError(foundry.ExitFileReadError, "Failed to scan source directory", err)
	}
	observability.CLILogger.Debug("Scanned source",
		zap.String("source", scn.Root()),
		zap.Int("files", len(locals)),
		zap.Int("warnings", scn.Warnings()))

	storage, err := newStorageProvider(ctx, "")
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer storage.Close()

	remotes, err := inventory.NewReader(storage, bucket).Read(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to read bucket inventory",
			zap.String("bucket", bucket), zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to read bucket inventory", err)
	}

	pl := plan.Build(locals, remotes, syncPrune)
	if syncDryRun {
		return showSyncPlan(pl)
	}

	jobID := uuid.New().String()
	writer, cleanup, err := newWriter(syncOutput, jobID)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	exec := syncer.New(storage, bucket, writer, observability.CLILogger, syncer.Config{
		Concurrency: syncConcurrency,
		RateLimit:   syncRateLimit,
	})

	observability.CLILogger.Info("Starting sync",
		zap.String("job_id", jobID),
		zap.String("bucket", bucket),
		zap.Int("concurrency", syncConcurrency))

	sum, err := exec.Run(ctx, pl)
	if err != nil {
		observability.CLILogger.Warn("Sync cancelled",
			zap.String("job_id", jobID),
			zap.Int64("uploaded", sum.Uploaded))
		return exitError(foundry.ExitSignalInt, "Sync cancelled", err)
	}

	observability.CLILogger.Info("Sync completed",
		zap.String("job_id", jobID),
		zap.Int64("uploaded", sum.Uploaded),
		zap.Int64("skipped", sum.Skipped),
		zap.Int64("deleted", sum.Deleted),
		zap.Int64("failed", sum.Failed),
		zap.Int64("bytes", sum.BytesUploaded),
		zap.Duration("duration", sum.Duration))

	if sum.Failed > 0 && !syncBestEffort {
		return exitError(foundry.ExitExternalServiceUnavailable, "Sync completed with errors",
			fmt.Errorf("failed=%d", sum.Failed))
	}
	return nil
}

// showSyncPlan displays what would be transferred without executing.
func showSyncPlan(pl *plan.Plan) error {
	fmt.Println("=== Sync Plan (dry-run) ===")
	fmt.Println()
	for _, a := range pl.Actions {
		fmt.Printf("%-7s %s\n", a.Type, a.Key)
	}
	uploads, skips, deletes := pl.Counts()
	fmt.Println()
	fmt.Printf("uploads=%d skips=%d deletes=%d\n", uploads, skips, deletes)
	fmt.Println()
	fmt.Println("Plan validated. Remove --dry-run to execute.")
	return nil
}
