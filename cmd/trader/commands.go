package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/backtest"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/binance"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/database"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/logger"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/marketdata"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/strategy"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/trader"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	configPath string
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
}

func (a *app) load() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) restClient() *binance.RestClient {
	return binance.NewRestClient(&a.cfg.Binance, a.log)
}

// provider wraps the Binance source in the series cache when a TTL is configured.
func (a *app) provider(client binance.RestClientInterface) marketdata.Provider {
	var p marketdata.Provider = marketdata.NewBinanceProvider(client, a.cfg.Binance.QuoteAsset, a.cfg.Binance.Interval, a.clock, a.log)
	if a.cfg.Binance.CacheTTL > 0 {
		p = marketdata.NewCache(p, time.Duration(a.cfg.Binance.CacheTTL)*time.Second, a.clock, a.log)
	}
	return p
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{clock: clock.Real{}}

	rootCmd := &cobra.Command{
		Use:   "crypto-trader-sim",
		Short: "Simulated crypto trading on live Binance prices",
		Long: `crypto-trader-sim scores coins with technical indicators and trades a simulated
portfolio. It replays history with backtest, and runs auto-trade cycles against a
persisted portfolio with autotrade or run. No real orders are ever placed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	rootCmd.AddCommand(newBacktestCmd(a))
	rootCmd.AddCommand(newAutoTradeCmd(a))
	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newStrategiesCmd())

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "./configs", "Directory holding config.yml")

	return rootCmd
}

// newBacktestCmd creates the backtest command
func newBacktestCmd(a *app) *cobra.Command {
	var (
		strategyName string
		capital      float64
		coins        []string
		days         int
		asJSON       bool
		tradesCSV    string
		equityCSV    string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a strategy over historical candles",
		Long: `Replay a strategy over the last days of hourly candles with a fresh simulated portfolio.
Example: crypto-trader-sim backtest --strategy aggressive --coins BTC,ETH --days 14`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("strategy") {
				strategyName = a.cfg.Trading.Strategy
			}
			if !cmd.Flags().Changed("capital") {
				capital = a.cfg.Trading.InitialCapital
			}
			if !cmd.Flags().Changed("coins") {
				coins = a.cfg.Trading.Coins
			}
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Backtest.DurationDays
			}

			opts, err := backtest.OptionsFromConfig(a.cfg.Backtest)
			if err != nil {
				return err
			}
			runner := backtest.NewRunner(a.provider(a.restClient()), strategy.NewScorer(a.log), opts, a.log)
			report, err := runner.Run(cmd.Context(), backtest.Params{
				Strategy:       strategyName,
				InitialCapital: capital,
				Coins:          coins,
				DurationDays:   days,
			})
			if err != nil {
				return err
			}

			if tradesCSV != "" {
				if err := writeFile(tradesCSV, func(w io.Writer) error {
					return backtest.WriteTradesCSV(w, report.Portfolio.Trades)
				}); err != nil {
					return err
				}
			}
			if equityCSV != "" {
				if err := writeFile(equityCSV, func(w io.Writer) error {
					return backtest.WriteEquityCSV(w, report.EquityCurve)
				}); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderBacktest(report))
			return err
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "", "Strategy preset (conservative, balanced, aggressive)")
	cmd.Flags().Float64Var(&capital, "capital", 0, "Initial capital")
	cmd.Flags().StringSliceVar(&coins, "coins", nil, "Coins to trade, e.g. BTC,ETH")
	cmd.Flags().IntVar(&days, "days", 0, "Simulated duration in days")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	cmd.Flags().StringVar(&tradesCSV, "trades-csv", "", "Write the trade log to this CSV file")
	cmd.Flags().StringVar(&equityCSV, "equity-csv", "", "Write the equity curve to this CSV file")

	return cmd
}

// newAutoTradeCmd creates the autotrade command
func newAutoTradeCmd(a *app) *cobra.Command {
	var (
		strategyName string
		capital      float64
		coins        []string
		table        bool
	)

	cmd := &cobra.Command{
		Use:   "autotrade",
		Short: "Run one auto-trade cycle against the persisted portfolio",
		Long: `Load the persisted portfolio, apply stop-loss and take-profit exits, score every coin
and trade on the signals, then save the portfolio. The cycle report is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("strategy") {
				strategyName = a.cfg.Trading.Strategy
			}
			if !cmd.Flags().Changed("capital") {
				capital = a.cfg.Trading.InitialCapital
			}
			if !cmd.Flags().Changed("coins") {
				coins = a.cfg.Trading.Coins
			}

			store, err := database.NewStore(&a.cfg, a.clock, a.log)
			if err != nil {
				return fmt.Errorf("failed to open portfolio store: %w", err)
			}
			engine := trader.NewEngine(a.log, &a.cfg, a.provider(a.restClient()), store, a.clock)
			report, err := engine.RunCycle(cmd.Context(), coins, strategyName, capital)
			if err != nil {
				return err
			}

			if table {
				_, err = fmt.Fprint(cmd.OutOrStdout(), renderCycle(report))
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "", "Strategy preset (conservative, balanced, aggressive)")
	cmd.Flags().Float64Var(&capital, "capital", 0, "Initial capital when no portfolio exists yet")
	cmd.Flags().StringSliceVar(&coins, "coins", nil, "Coins to score, e.g. BTC,ETH")
	cmd.Flags().BoolVar(&table, "table", false, "Render the report as tables instead of JSON")

	return cmd
}

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		strategyName string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [COIN...]",
		Short: "Score coins without trading",
		Long: `Score the latest candles of each coin with a strategy and print the signals.
Example: crypto-trader-sim analyze BTC SOL --strategy conservative`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("strategy") {
				strategyName = a.cfg.Trading.Strategy
			}
			coins := args
			if len(coins) == 0 {
				coins = a.cfg.Trading.Coins
			}
			cfg, err := strategy.Lookup(strategyName)
			if err != nil {
				return err
			}

			signals, errs := analyze(cmd.Context(), a.provider(a.restClient()), strategy.NewScorer(a.log), cfg, coins, a.cfg.Trading.LookbackDays, a.cfg.Trading.Window)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Strategy string               `json:"strategy"`
					Signals  []models.TradeSignal `json:"signals"`
					Errors   []string             `json:"errors"`
				}{cfg.Name, signals, errs})
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderSignals(cfg.Name, signals, errs))
			return err
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "", "Strategy preset (conservative, balanced, aggressive)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the signals as JSON")

	return cmd
}

// analyze scores each coin on its trailing window. A coin that cannot be fetched or
// scored is reported and skipped.
func analyze(ctx context.Context, provider marketdata.Provider, scorer *strategy.Scorer, cfg strategy.Config, coins []string, days, window int) ([]models.TradeSignal, []string) {
	signals := []models.TradeSignal{}
	errs := []string{}
	for _, coin := range coins {
		candles, err := provider.FetchHistoricalSeries(ctx, coin, days)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", coin, err))
			continue
		}
		sig, err := scorer.ScoreCoin(coin, models.Tail(candles, window), cfg)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", coin, err))
			continue
		}
		signals = append(signals, sig)
	}
	return signals, errs
}

// newRunCmd creates the run command
func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run auto-trade cycles on a ticker and serve their status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := a.log

			restClient := a.restClient()
			if _, err := restClient.GetServerTime(ctx); err != nil {
				return fmt.Errorf("failed to connect to Binance API: %w", err)
			}
			log.Info("Successfully connected to Binance API.")

			store, err := database.NewStore(&a.cfg, a.clock, log)
			if err != nil {
				return fmt.Errorf("failed to open portfolio store: %w", err)
			}

			engine := trader.NewEngine(log, &a.cfg, a.provider(restClient), store, a.clock)
			apiServer := trader.NewAPIServer(engine, log)
			apiServer.Start()

			engine.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				log.Error("API server shutdown failed", zap.Error(err))
			}
			log.Info("Trader has been shut down.")
			return nil
		},
	}
}

// newStrategiesCmd creates the strategies command
func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the strategy presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := make([]strategy.Config, 0, len(strategy.Names()))
			for _, name := range strategy.Names() {
				cfg, err := strategy.Lookup(name)
				if err != nil {
					return err
				}
				presets = append(presets, cfg)
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), renderStrategies(presets))
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
