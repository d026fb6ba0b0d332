// Package arcana implements the arcana CLI: commands to backfill
// trades, run the ingestion daemon, and build or calibrate bars from
// stored trades.
package arcana

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arcana/internal/config"
)

var barsConfigPath string

var rootCmd = &cobra.Command{
	Use:   "arcana",
	Short: "arcana ingests exchange trades and builds OHLCV bars from them",
	Long: "arcana ingests exchange trades into storage and constructs OHLCV bars " +
		"from them using time, threshold, and information-driven sampling regimes.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&barsConfigPath, "bars-config", "", "path to a YAML file with a 'bars:' list")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(barsCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(barsConfigPath)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "arcana:", err)
	os.Exit(1)
}

// Execute runs the root command, parsing os.Args.
func Execute() error {
	return rootCmd.Execute()
}
