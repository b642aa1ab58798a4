// Package cmd implements the weblift command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3leaps/weblift/internal/observability"
)

// versionInfo holds build-time version metadata, injected via ldflags.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "weblift",
	Short: "Deploy static websites to cloud storage",
	Long: `weblift deploys static websites: it provisions the bucket, website
hosting, DNS, and CDN for a site, and synchronizes local content into the
bucket by content fingerprint so repeat deploys only transfer what changed.

Sites are described by a YAML or JSON manifest. All provisioning is
idempotent: re-running a deploy reconciles toward the manifest instead of
failing on resources that already exist.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initCLI()
	},
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().String("profile", "", "AWS credential profile")
	rootCmd.PersistentFlags().String("region", "", "AWS region override")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as structured JSON")

	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.json", rootCmd.PersistentFlags().Lookup("log-json"))
}

// initViper wires environment variables: WEBLIFT_PROFILE, WEBLIFT_REGION,
// WEBLIFT_LOGGING_LEVEL, and so on.
func initViper() {
	viper.SetEnvPrefix("WEBLIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()
}

// setDefaults registers configuration defaults.
func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.json", false)
	viper.SetDefault("sync.concurrency", 8)
	viper.SetDefault("output.destination", "stdout")
}

func initCLI() error {
	level := viper.GetString("logging.level")
	jsonFormat := viper.GetBool("logging.json")
	if err := observability.InitCLILogger(level, jsonFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	return nil
}

// Execute runs the CLI and returns the process exit code.
//
// SIGINT and SIGTERM cancel the command context; long-running commands
// stop dispatching work and report what completed.
func Execute() int {
	defer observability.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var coded *codedError
		if errors.As(err, &coded) {
			return coded.code
		}
		return 1
	}
	return 0
}

// codedError carries a process exit code alongside the error.
type codedError struct {
	code int
	msg  string
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *codedError) Unwrap() error { return e.err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, msg: message, err: err}
}
