package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clinic-dispatcher/internal/common/config"
)

var rootCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Latency-budgeted message dispatcher for clinic chat channels",
	Long: `dispatcher answers patient messages through a fast template lane, a direct
tool lane (FAQ, prices, availability, booking) or an orchestrator fallback.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (defaults to configs/config.yaml)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
