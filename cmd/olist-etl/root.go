// olist-etl extracts the Olist analytics queries, keeps the artifact store in
// sync and validates the artifacts against reference aggregates.
//
// Usage:
//
//	olist-etl extract [--new] [--only name,...] [--parquet]
//	olist-etl sync upload|download [--new] [--only name,...]
//	olist-etl validate [--dir path] [--format ascii|markdown]
//	olist-etl run [--validate]
//	olist-etl exd-key <name>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// cfg is resolved before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "olist-etl",
	Short: "Incremental artifact sync and data-quality validation for the Olist pipeline",
	Long: "olist-etl runs the catalog queries against the Olist database, stages the\n" +
		"results as CSV artifacts, synchronizes them with an S3-compatible bucket and\n" +
		"checks them against reference aggregates computed from the source.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exdKeyCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		loaded.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		loaded.Log.Format = rootFlags.logFormat
	}
	level, err := logging.ParseLevel(loaded.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, loaded.Log.Format, cmd.ErrOrStderr())
	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
