package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mselser95/poloniex-ema-bot/internal/app"
	"github.com/mselser95/poloniex-ema-bot/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show exchange balances",
	Long: `Prints the account balances of the configured exchange client. In paper mode,
or without API keys, these are the simulated starting balances.`,
	RunE: runBalances,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balancesCmd)
	balancesCmd.Flags().BoolP("all", "a", false, "Include currencies with a zero balance")
}

func runBalances(cmd *cobra.Command, args []string) error {
	showAll, _ := cmd.Flags().GetBool("all")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.StorageMode = "console"
	cfg.CircuitBreakerEnabled = false

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		_ = application.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ExchangeTimeout)
	defer cancel()

	balances, err := application.Balances(ctx)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	return printBalances(os.Stdout, balances, showAll)
}

func printBalances(out io.Writer, balances map[string]float64, showAll bool) error {
	currencies := make([]string, 0, len(balances))
	for currency, amount := range balances {
		if amount == 0 && !showAll {
			continue
		}
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	if len(currencies) == 0 {
		_, err := fmt.Fprintln(out, "No balances")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CURRENCY\tBALANCE\t")
	for _, currency := range currencies {
		fmt.Fprintf(w, "%s\t%s\t\n", currency, decimal.NewFromFloat(balances[currency]).StringFixed(8))
	}
	return w.Flush()
}
