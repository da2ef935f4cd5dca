// clearskyalarm watches an all-sky camera's capture directory, counts the
// stars in every new frame and sends an SMS when the sky is clear.
//
// Usage:
//
//	clearskyalarm run -c clearskyalarmconfig.json
//	clearskyalarm check -c clearskyalarmconfig.json image-001.jpg image-002.jpg
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"clearskyalarm/pkg/clearsky"
)

var (
	version    = "dev"
	configPath string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clearskyalarm",
		Short: "Count stars in all-sky captures and alert when the sky is clear",
		Long: `clearskyalarm matches a star template against every new all-sky capture,
counts the distinct stars found, and sends a rate-limited SMS once the count
crosses the configured threshold.`,
		Version:       fmt.Sprintf("%s (%s)", version, clearsky.Backend),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "clearskyalarmconfig.json", "Configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (overrides the config file)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the production logger with ISO8601 timestamps.
func newLogger(debug bool) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return logConfig.Build()
}
