package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/poloniex-ema-bot/internal/app"
	"github.com/mselser95/poloniex-ema-bot/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading bot",
	Long: `Starts the bot, which will:
1. Evaluate every configured pair once per update interval
2. Place the orders the strategy asks for (live, paper or dry-run)
3. Record every decision to the configured storage
4. Serve /health, /ready, /metrics and /api on HTTP_PORT

Use --pair to trade only some of the configured pairs.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceP("pair", "p", nil, "Only trade these pairs (repeatable, e.g. --pair BTC_ETH)")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

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

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

// loadConfig reads configuration from the environment and applies the --pair filter.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pairs, _ := cmd.Flags().GetStringSlice("pair")
	if len(pairs) > 0 {
		err = cfg.RestrictPairs(pairs)
		if err != nil {
			return nil, fmt.Errorf("restrict pairs: %w", err)
		}
	}

	return cfg, nil
}
