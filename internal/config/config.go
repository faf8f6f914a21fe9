package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Trading  Trading  `mapstructure:"trading"`
	Backtest Backtest `mapstructure:"backtest"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Binance holds the configuration for the read-only Binance market data API.
type Binance struct {
	BaseURL        string  `mapstructure:"base_url"`
	QuoteAsset     string  `mapstructure:"quote_asset"`
	Interval       string  `mapstructure:"interval"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	CacheTTL       int     `mapstructure:"cache_ttl"` // seconds, 0 disables the series cache
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for portfolio persistence.
type Database struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "file"
	DSN    string `mapstructure:"dsn"`
	Path   string `mapstructure:"path"`
	Name   string `mapstructure:"name"`
}

// Reserve describes how much capital a BUY must leave untouched.
type Reserve struct {
	Policy  string  `mapstructure:"policy"` // "fixed" or "fraction"
	Amount  float64 `mapstructure:"amount"`
	Percent float64 `mapstructure:"percent"`
}

// Trading holds the configuration for the live auto-trade loop.
type Trading struct {
	Coins          []string `mapstructure:"coins"`
	Strategy       string   `mapstructure:"strategy"`
	InitialCapital float64  `mapstructure:"initial_capital"`
	TickInterval   int      `mapstructure:"tick_interval"`
	LookbackDays   int      `mapstructure:"lookback_days"`
	Window         int      `mapstructure:"window"`
	MinTrade       float64  `mapstructure:"min_trade"`
	Reserve        Reserve  `mapstructure:"reserve"`
	ApiPort        int      `mapstructure:"api_port"`
}

// Backtest holds the configuration for historical simulations.
type Backtest struct {
	DurationDays  int     `mapstructure:"duration_days"`
	Warmup        int     `mapstructure:"warmup"`
	EvalsPerDay   int     `mapstructure:"evals_per_day"`
	Window        int     `mapstructure:"window"`
	CandlesPerDay int     `mapstructure:"candles_per_day"`
	SignalHistory int     `mapstructure:"signal_history"`
	MinTrade      float64 `mapstructure:"min_trade"`
	Reserve       Reserve `mapstructure:"reserve"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	// Values from .env become regular environment variables.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("binance.quote_asset", "EUR")
	v.SetDefault("binance.interval", "1h")
	v.SetDefault("binance.rate_limit", 5)       // requests per second
	v.SetDefault("binance.rate_limit_burst", 1) // burst size
	v.SetDefault("binance.cache_ttl", 300)

	v.SetDefault("trading.coins", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("trading.strategy", "balanced")
	v.SetDefault("trading.initial_capital", 1000.0)
	v.SetDefault("trading.tick_interval", 3600)
	v.SetDefault("trading.lookback_days", 4)
	v.SetDefault("trading.window", 60)
	v.SetDefault("trading.min_trade", 5.0)
	v.SetDefault("trading.reserve.policy", "fixed")
	v.SetDefault("trading.reserve.amount", 10.0)
	v.SetDefault("trading.api_port", 8081)

	v.SetDefault("backtest.duration_days", 30)
	v.SetDefault("backtest.warmup", 30)
	v.SetDefault("backtest.evals_per_day", 6)
	v.SetDefault("backtest.window", 60)
	v.SetDefault("backtest.candles_per_day", 24)
	v.SetDefault("backtest.signal_history", 50)
	v.SetDefault("backtest.min_trade", 1.0)
	v.SetDefault("backtest.reserve.policy", "fraction")
	v.SetDefault("backtest.reserve.percent", 5.0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/portfolio.db")
	v.SetDefault("database.path", "data/portfolio.json")
	v.SetDefault("database.name", "default")
}
