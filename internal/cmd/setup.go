package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/weblift/pkg/deploy"
	"github.com/3leaps/weblift/pkg/site"
)

var setupCmd = &cobra.Command{
	Use:   "setup <bucket>",
	Short: "Create a bucket and configure it for website hosting",
	Long: `Create a bucket (named after the site domain) and configure it for
static website hosting with a public-read policy. Content, DNS, and CDN
are left alone; use sync and deploy for those.

Example:
  weblift setup www.example.com --region us-west-2
  weblift setup www.example.com --index home.html --error 404.html`,
	Args: cobra.ExactArgs(1),
	RunE: runSetup,
}

var (
	setupRegion   string
	setupIndexDoc string
	setupErrorDoc string
	setupOutput   string
)

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringVar(&setupRegion, "region", site.DefaultRegion, "Bucket region")
	setupCmd.Flags().StringVar(&setupIndexDoc, "index", site.DefaultIndexDocument, "Index document key")
	setupCmd.Flags().StringVar(&setupErrorDoc, "error", site.DefaultErrorDocument, "Error document key")
	setupCmd.Flags().StringVarP(&setupOutput, "output", "o", "", "JSONL output destination (default stdout)")
}

func runSetup(cmd *cobra.Command, args []string) error {
	m := &site.Manifest{
		Version: "1.0",
		Site: site.SiteConfig{
			Domain:        args[0],
			Region:        setupRegion,
			IndexDocument: setupIndexDoc,
			ErrorDocument: setupErrorDoc,
		},
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid bucket or region", err)
	}

	return runPipelineManifest(cmd.Context(), m, setupOutput, deploy.Options{
		SkipSync: true,
		Only:     []deploy.Stage{deploy.StageBucketCreate, deploy.StageWebsiteConfigure},
	})
}
