package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/mselser95/poloniex-ema-bot/internal/app"
	"github.com/mselser95/poloniex-ema-bot/internal/execution"
	"github.com/mselser95/poloniex-ema-bot/internal/trader"
	"github.com/mselser95/poloniex-ema-bot/pkg/config"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one dry-run decision cycle and print the result",
	Long: `Runs a single decision cycle for each selected pair without placing orders.
Storage is forced to console and the execution mode to dry-run, so the command
is safe to run next to a live bot.

Examples:
  poloniex-ema-bot evaluate --pair BTC_ETH
  poloniex-ema-bot evaluate --format json`,
	RunE: runEvaluate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringSliceP("pair", "p", nil, "Only evaluate these pairs")
	evaluateCmd.Flags().StringP("format", "f", "table", "Output format: table or json")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format: %s (must be table or json)", format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.ExecutionMode = string(execution.ModeDryRun)
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

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.UpdateInterval+cfg.ExchangeTimeout)
	defer cancel()

	reports, failures := application.Evaluate(ctx)

	if format == "json" {
		err = printReportsJSON(os.Stdout, reports, failures)
	} else {
		err = printReportsTable(os.Stdout, reports, failures)
	}
	if err != nil {
		return err
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d pairs failed", len(failures), len(failures)+len(reports))
	}
	return nil
}

func printReportsTable(out io.Writer, reports []trader.Report, failures map[string]error) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tSTATE\tACTION\tBID\tASK\tEMA1\tEMA2\tPROFIT\tOUTCOME\tREASON")
	for _, r := range reports {
		d := r.Decision
		fmt.Fprintf(w, "%s\t%s\t%s\t%.8f\t%.8f\t%.8f\t%.8f\t%.2f%%\t%s\t%s\n",
			d.Pair, d.State, d.Action, d.HighestBid, d.LowestAsk, d.EMA1, d.EMA2,
			d.ProfitPercent*100, d.Outcome, d.Reason)
	}
	for _, pair := range failedPairs(failures) {
		fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t-\t%s\t%v\n", pair, "aborted", failures[pair])
	}
	return w.Flush()
}

type evaluateOutput struct {
	Decisions []*types.DecisionRecord `json:"decisions"`
	Failures  map[string]string       `json:"failures,omitempty"`
}

func printReportsJSON(out io.Writer, reports []trader.Report, failures map[string]error) error {
	output := evaluateOutput{Decisions: make([]*types.DecisionRecord, 0, len(reports))}
	for _, r := range reports {
		output.Decisions = append(output.Decisions, r.Decision)
	}
	if len(failures) > 0 {
		output.Failures = make(map[string]string, len(failures))
		for pair, err := range failures {
			output.Failures[pair] = err.Error()
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func failedPairs(failures map[string]error) []string {
	pairs := make([]string, 0, len(failures))
	for pair := range failures {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}
