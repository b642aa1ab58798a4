package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/weblift/pkg/deploy"
)

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Reconcile DNS for a site",
	Long: `Run only the DNS stage of the pipeline: ensure the hosted zone,
upsert the manifest's records, and point the site alias at the website
endpoint.

Example:
  weblift dns --site site.yaml`,
	RunE: runDNS,
}

var (
	dnsSitePath string
	dnsOutput   string
)

func init() {
	rootCmd.AddCommand(dnsCmd)

	dnsCmd.Flags().StringVarP(&dnsSitePath, "site", "s", "", "Path to site manifest (required)")
	dnsCmd.Flags().StringVarP(&dnsOutput, "output", "o", "", "JSONL output destination (default stdout)")

	_ = dnsCmd.MarkFlagRequired("site")
}

func runDNS(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd.Context(), dnsSitePath, dnsOutput, deploy.Options{
		Only: []deploy.Stage{deploy.StageDNSConfigure},
	})
}
