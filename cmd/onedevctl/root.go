package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/logging"
)

const (
	formatPretty = "pretty"
	formatJSON   = "json"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "onedevctl",
		Short:         "onedevctl generates GitLab pipelines and analyzes their logs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "path to an onedev.yaml configuration file")
	persistent.BoolP("verbose", "v", false, "log at the configured level instead of warnings only")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the configuration and installs the logger. The returned
// cleanup closes the log file, if any.
func loadConfig(cmd *cobra.Command) (*config.Config, func() error, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		if err := os.Setenv(config.EnvPrefix+"_CONFIG", path); err != nil {
			return nil, nil, fmt.Errorf("select config file: %w", err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}
	if !verbose {
		cfg.Log.Level = "warn"
	}
	cleanup, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("set up logging: %w", err)
	}
	return cfg, cleanup, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the onedevctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "onedevctl %s\n", version)
		},
	}
}
