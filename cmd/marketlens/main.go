package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	format  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "marketlens",
		Short: "Technical indicators, trend verdicts and horizon projections for daily OHLC series",
		Long: `marketlens serves indicator, trend and prediction queries over stored daily prices.

Examples:
  marketlens serve
  marketlens indicators NABIL -t 6M
  marketlens trend NABIL
  marketlens export NABIL -t 1Y -f parquet -o nabil.parquet`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $MARKETLENS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")

	rootCmd.AddCommand(
		newServeCmd(),
		newIndicatorsCmd(),
		newTrendCmd(),
		newPredictCmd(),
		newMoversCmd(),
		newExportCmd(),
		newSweepCmd(),
		newSyncCmd(),
		newTimeframesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
