// Package cli implements the mailtap command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/internal/config"
	"github.com/telhawk-systems/mailtap/pkg/output"
)

// Set at build time with -ldflags "-X ...cli.version=..."
var version = "0.1.0"

var (
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailtap",
	Short: "Wait for email delivered to SES receipt rules",
	Long: `mailtap watches recipients defined by SES receipt rule sets.

For each watched recipient it creates a private SQS queue subscribed to the
recipient's SNS topic, waits for the next delivery notification and prints the
stored email from S3. The queue and subscription are removed on exit.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or $HOME/.mailtap/config.yaml)")
	rootCmd.PersistentFlags().String("region", "", "AWS region (overrides aws.region)")
	rootCmd.PersistentFlags().String("endpoint", "", "AWS endpoint override, e.g. http://localhost:4566")
	rootCmd.PersistentFlags().StringSlice("rule-set", nil, "receipt rule set to load (repeatable)")
	rootCmd.PersistentFlags().String("output", output.FormatTable, "output format: table, json, yaml")
}

// initConfig loads configuration and applies flag overrides.
func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("region") {
		loaded.AWS.Region, _ = flags.GetString("region")
	}
	if flags.Changed("endpoint") {
		loaded.AWS.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("rule-set") {
		loaded.RuleSets, _ = flags.GetStringSlice("rule-set")
	}

	cfg = loaded
	logger = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("mailtap"))
	logging.SetDefault(logger)
	return nil
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}
