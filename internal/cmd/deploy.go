package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/weblift/internal/observability"
	"github.com/3leaps/weblift/pkg/deploy"
	"github.com/3leaps/weblift/pkg/provider"
	"github.com/3leaps/weblift/pkg/site"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision a site and sync its content",
	Long: `Run the full deployment pipeline for a site manifest: ensure the
bucket, configure website hosting, sync content, and reconcile DNS and CDN.

Every stage is idempotent; re-running a deploy after a failure picks up
where the infrastructure actually is.

Example:
  weblift deploy --site site.yaml
  weblift deploy --site site.yaml --source ./public
  weblift deploy --site site.yaml --skip-sync`,
	RunE: runDeploy,
}

var (
	deploySitePath   string
	deploySource     string
	deploySkipSync   bool
	deployBestEffort bool
	deployOutput     string
)

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVarP(&deploySitePath, "site", "s", "", "Path to site manifest (required)")
	deployCmd.Flags().StringVar(&deploySource, "source", "", "Override the manifest's sync source directory")
	deployCmd.Flags().BoolVar(&deploySkipSync, "skip-sync", false, "Provision infrastructure without touching content")
	deployCmd.Flags().BoolVar(&deployBestEffort, "best-effort", false, "Continue past a partial content sync")
	deployCmd.Flags().StringVarP(&deployOutput, "output", "o", "", "JSONL output destination (default stdout)")

	_ = deployCmd.MarkFlagRequired("site")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd.Context(), deploySitePath, deployOutput, deploy.Options{
		Source:     deploySource,
		SkipSync:   deploySkipSync,
		BestEffort: deployBestEffort,
	})
}

// runPipeline loads the manifest and executes the provisioning pipeline.
// Shared by deploy, dns, and cdn.
func runPipeline(ctx context.Context, sitePath, outputDest string, opts deploy.Options) error {
	m, err := site.Load(sitePath)
	if err != nil {
		observability.CLILogger.Error("Failed to load site manifest",
			zap.String("path", sitePath), zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid site manifest", err)
	}
	return runPipelineManifest(ctx, m, outputDest, opts)
}

// runPipelineManifest builds the providers the manifest needs and runs
// the pipeline.
func runPipelineManifest(ctx context.Context, m *site.Manifest, outputDest string, opts deploy.Options) error {
	storage, err := newStorageProvider(ctx, m.Site.Region)
	if err != nil {
		observability.CLILogger.Error("Failed to create storage provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer storage.Close()

	o, cleanup, err := buildOrchestrator(ctx, m, storage, outputDest, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := o.Run(ctx)
	if err != nil {
		var verr *deploy.ValidationError
		if errors.As(err, &verr) {
			return exitError(foundry.ExitInvalidArgument, "Deploy validation failed", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Deploy failed", err)
	}

	printStages(res)

	if failed := res.FailedStage(); failed != nil {
		return exitError(foundry.ExitExternalServiceUnavailable,
			fmt.Sprintf("Stage %s failed", failed.Stage), failed.Err)
	}
	return nil
}

func buildOrchestrator(ctx context.Context, m *site.Manifest, storage provider.Storage, outputDest string, opts deploy.Options) (*deploy.Orchestrator, func(), error) {
	jobID := uuid.New().String()
	writer, writerCleanup, err := newWriter(outputDest, jobID)
	if err != nil {
		return nil, nil, exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}

	// Interface-typed locals stay nil unless a real provider is built;
	// the orchestrator treats nil as "service not available".
	var dns provider.DNS
	if m.DNS.Managed() && (opts.RunsStage(deploy.StageDNSConfigure) || opts.RunsStage(deploy.StageCDNConfigure)) {
		p, err := newDNSProvider(ctx)
		if err != nil {
			writerCleanup()
			return nil, nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to DNS provider", err)
		}
		dns = p
	}

	var cdn provider.CDN
	var certs deploy.CertificateFinder
	if m.CDN.Enabled && opts.RunsStage(deploy.StageCDNConfigure) {
		p, err := newCDNProvider(ctx)
		if err != nil {
			writerCleanup()
			return nil, nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to CDN provider", err)
		}
		cdn = p
		if m.CDN.CertificateARN == "" {
			c, err := newCertProvider(ctx)
			if err != nil {
				writerCleanup()
				return nil, nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to certificate provider", err)
			}
			certs = c
		}
	}

	o := deploy.New(m, storage, dns, cdn, certs, writer, observability.CLILogger, opts)
	return o, writerCleanup, nil
}

// printStages writes a human-readable stage summary to stdout, after the
// JSONL records.
func printStages(res *deploy.Result) {
	for _, sr := range res.Stages {
		line := fmt.Sprintf("%-18s %s", sr.Stage, sr.Status)
		if sr.ResourceID != "" {
			line += "  " + sr.ResourceID
		}
		if sr.Pending {
			line += "  (propagating)"
		}
		if sr.Err != nil {
			line += "  " + sr.Err.Error()
		}
		fmt.Println(line)
	}
	if res.Sync != nil {
		fmt.Printf("sync: uploaded=%d skipped=%d deleted=%d failed=%d bytes=%d\n",
			res.Sync.Uploaded, res.Sync.Skipped, res.Sync.Deleted,
			res.Sync.Failed, res.Sync.BytesUploaded)
	}
}
