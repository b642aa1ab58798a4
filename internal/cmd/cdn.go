package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/weblift/pkg/deploy"
)

var cdnCmd = &cobra.Command{
	Use:   "cdn",
	Short: "Reconcile the CDN distribution for a site",
	Long: `Run only the CDN stage of the pipeline: ensure a distribution
serves the site domain and repoint the site alias at it.

Distribution creation is asynchronous upstream; a newly created
distribution is reported as propagating and typically takes a while to
become servable.

Example:
  weblift cdn --site site.yaml`,
	RunE: runCDN,
}

var (
	cdnSitePath string
	cdnOutput   string
)

func init() {
	rootCmd.AddCommand(cdnCmd)

	cdnCmd.Flags().StringVarP(&cdnSitePath, "site", "s", "", "Path to site manifest (required)")
	cdnCmd.Flags().StringVarP(&cdnOutput, "output", "o", "", "JSONL output destination (default stdout)")

	_ = cdnCmd.MarkFlagRequired("site")
}

func runCDN(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd.Context(), cdnSitePath, cdnOutput, deploy.Options{
		Only: []deploy.Stage{deploy.StageCDNConfigure},
	})
}
