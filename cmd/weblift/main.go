// Command weblift deploys static websites to cloud storage.
package main

import (
	"os"

	"github.com/3leaps/weblift/internal/cmd"
)

// Build-time variables, injected via ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute())
}
