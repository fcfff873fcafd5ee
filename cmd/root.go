package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "poloniex-ema-bot",
	Short: "EMA crossover trading bot for Poloniex",
	Long: `EMA crossover trading bot for Poloniex.

Every update interval the bot reconstructs the open position of each configured
currency pair from recent trade history, compares it against the order book and
two exponential moving averages of the chart, and decides whether to buy, sell
or hold. Orders are placed live, against a simulated account (paper) or only
logged (dry-run).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional, the environment always wins
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
