package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string // "json" or "console"
	HTTPPort  string

	// Poloniex API
	PoloniexAPIURL    string
	PoloniexAPIKey    string
	PoloniexAPISecret string
	ExchangeTimeout   time.Duration

	// Execution
	ExecutionMode    string // "paper", "live" or "dry-run"
	Strategy         string
	OrderGracePeriod time.Duration
	FillTimeout      time.Duration
	FillLookback     time.Duration
	PaperBalances    string // e.g. BTC=1,ETH=10
	PaperFee         float64

	// Scheduling
	UpdateInterval time.Duration
	UpdateJitter   time.Duration

	// Market data
	ChartPeriod   time.Duration
	ChartWindow   time.Duration
	ChartCacheTTL time.Duration
	CacheMaxCost  int64
	CacheCounters int64

	// Pairs
	Pairs     []Pair
	PairsFile string

	// Storage
	StorageMode  string // "console", "postgres" or "mysql"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	MySQLDSN     string

	// Circuit breaker
	CircuitBreakerEnabled         bool
	CircuitBreakerCurrency        string
	CircuitBreakerCheckInterval   time.Duration
	CircuitBreakerTradeMultiplier float64
	CircuitBreakerMinAbsolute     float64
	CircuitBreakerHysteresisRatio float64
}

// Pair holds the per-pair trading parameters.
type Pair struct {
	Name                 string        `json:"pair"`
	AltFraction          float64       `json:"alt_fraction"`
	MainFraction         float64       `json:"main_fraction"`
	MinBuyProfit         float64       `json:"min_buy_profit"`
	MinSellProfit        float64       `json:"min_sell_profit"`
	NewOrderThreshold    float64       `json:"new_order_threshold"`
	NewCurrencyThreshold float64       `json:"new_currency_threshold"`
	MinMainReserve       float64       `json:"min_main_reserve"`
	MinAltReserve        float64       `json:"min_alt_reserve"`
	HistoryWindow        time.Duration `json:"-"`
	InitialBuyRate       float64       `json:"initial_buy_rate"`
	InitialSellRate      float64       `json:"initial_sell_rate"`
}

// pairOverride is one entry of PAIRS_FILE. Absent fields keep the environment defaults.
type pairOverride struct {
	Name                 string   `json:"pair"`
	AltFraction          *float64 `json:"alt_fraction"`
	MainFraction         *float64 `json:"main_fraction"`
	MinBuyProfit         *float64 `json:"min_buy_profit"`
	MinSellProfit        *float64 `json:"min_sell_profit"`
	NewOrderThreshold    *float64 `json:"new_order_threshold"`
	NewCurrencyThreshold *float64 `json:"new_currency_threshold"`
	MinMainReserve       *float64 `json:"min_main_reserve"`
	MinAltReserve        *float64 `json:"min_alt_reserve"`
	HistoryWindow        string   `json:"history_window"`
	InitialBuyRate       *float64 `json:"initial_buy_rate"`
	InitialSellRate      *float64 `json:"initial_sell_rate"`
}

var pairPattern = regexp.MustCompile(`^[A-Z0-9]+_[A-Z0-9]+$`)

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),

		// Poloniex API defaults
		PoloniexAPIURL:    getEnvOrDefault("POLONIEX_API_URL", "https://poloniex.com"),
		PoloniexAPIKey:    os.Getenv("POLONIEX_API_KEY"),
		PoloniexAPISecret: os.Getenv("POLONIEX_API_SECRET"),
		ExchangeTimeout:   getDurationOrDefault("EXCHANGE_TIMEOUT", 30*time.Second),

		// Execution defaults
		ExecutionMode:    getEnvOrDefault("EXECUTION_MODE", "paper"),
		Strategy:         getEnvOrDefault("STRATEGY", "ema-crossover"),
		OrderGracePeriod: getDurationOrDefault("ORDER_GRACE_PERIOD", 5*time.Second),
		FillTimeout:      getDurationOrDefault("FILL_TIMEOUT", 30*time.Second),
		FillLookback:     getDurationOrDefault("FILL_LOOKBACK", 60*time.Minute),
		PaperBalances:    getEnvOrDefault("PAPER_BALANCES", "BTC=1,ETH=10"),
		PaperFee:         getFloat64OrDefault("PAPER_FEE", 0.0025),

		// Scheduling defaults
		UpdateInterval: getDurationOrDefault("UPDATE_INTERVAL", 5*time.Minute),
		UpdateJitter:   getDurationOrDefault("UPDATE_JITTER", 30*time.Second),

		// Market data defaults
		ChartPeriod:   getDurationOrDefault("CHART_PERIOD", 5*time.Minute),
		ChartWindow:   getDurationOrDefault("CHART_WINDOW", 4*time.Hour),
		ChartCacheTTL: getDurationOrDefault("CHART_CACHE_TTL", time.Minute),
		CacheMaxCost:  int64(getIntOrDefault("CACHE_MAX_COST", 1<<20)),
		CacheCounters: int64(getIntOrDefault("CACHE_NUM_COUNTERS", 10000)),

		PairsFile: os.Getenv("PAIRS_FILE"),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "emabot"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "emabot"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "emabot"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		MySQLDSN:     getEnvOrDefault("MYSQL_DSN", "emabot:emabot@tcp(localhost:3306)/emabot"),

		// Circuit breaker defaults
		CircuitBreakerEnabled:         getBoolOrDefault("CIRCUIT_BREAKER_ENABLED", true),
		CircuitBreakerCurrency:        getEnvOrDefault("CIRCUIT_BREAKER_CURRENCY", "BTC"),
		CircuitBreakerCheckInterval:   getDurationOrDefault("CIRCUIT_BREAKER_CHECK_INTERVAL", time.Minute),
		CircuitBreakerTradeMultiplier: getFloat64OrDefault("CIRCUIT_BREAKER_TRADE_MULTIPLIER", 3.0),
		CircuitBreakerMinAbsolute:     getFloat64OrDefault("CIRCUIT_BREAKER_MIN_ABSOLUTE", 0.001),
		CircuitBreakerHysteresisRatio: getFloat64OrDefault("CIRCUIT_BREAKER_HYSTERESIS_RATIO", 1.5),
	}

	defaults := Pair{
		AltFraction:          getFloat64OrDefault("ALT_FRACTION", 0.1),
		MainFraction:         getFloat64OrDefault("MAIN_FRACTION", 0.1),
		MinBuyProfit:         getFloat64OrDefault("MIN_BUY_PROFIT", 0.02),
		MinSellProfit:        getFloat64OrDefault("MIN_SELL_PROFIT", 0.02),
		NewOrderThreshold:    getFloat64OrDefault("NEW_ORDER_THRESHOLD", 0.1),
		NewCurrencyThreshold: getFloat64OrDefault("NEW_CURRENCY_THRESHOLD", 0),
		MinMainReserve:       getFloat64OrDefault("MIN_MAIN_RESERVE", 0),
		MinAltReserve:        getFloat64OrDefault("MIN_ALT_RESERVE", 0),
		HistoryWindow:        getDurationOrDefault("HISTORY_WINDOW", 365*24*time.Hour),
		InitialBuyRate:       getFloat64OrDefault("INITIAL_BUY_RATE", 0),
		InitialSellRate:      getFloat64OrDefault("INITIAL_SELL_RATE", 0),
	}

	pairs, err := loadPairs(getEnvOrDefault("TRADE_PAIRS", "BTC_ETH,BTC_LTC,BTC_XMR"), cfg.PairsFile, defaults)
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}
	cfg.Pairs = pairs

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.PoloniexAPIURL == "" {
		return fmt.Errorf("POLONIEX_API_URL cannot be empty")
	}

	switch c.ExecutionMode {
	case "paper", "dry-run":
	case "live":
		if c.PoloniexAPIKey == "" || c.PoloniexAPISecret == "" {
			return fmt.Errorf("POLONIEX_API_KEY and POLONIEX_API_SECRET are required in live mode")
		}
	default:
		return fmt.Errorf("EXECUTION_MODE must be 'paper', 'live' or 'dry-run', got %q", c.ExecutionMode)
	}

	switch c.StorageMode {
	case "console", "postgres", "mysql":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'console', 'postgres' or 'mysql', got %q", c.StorageMode)
	}

	if c.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL must be positive, got %s", c.UpdateInterval)
	}

	if c.UpdateJitter < 0 {
		return fmt.Errorf("UPDATE_JITTER cannot be negative, got %s", c.UpdateJitter)
	}

	if c.ChartPeriod <= 0 || c.ChartWindow < c.ChartPeriod {
		return fmt.Errorf("CHART_WINDOW (%s) must cover at least one CHART_PERIOD (%s)", c.ChartWindow, c.ChartPeriod)
	}

	if c.PaperFee < 0 || c.PaperFee >= 1 {
		return fmt.Errorf("PAPER_FEE must be in [0, 1), got %f", c.PaperFee)
	}

	if _, err := ParsePaperBalances(c.PaperBalances); err != nil {
		return err
	}

	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerTradeMultiplier <= 0 {
			return fmt.Errorf("CIRCUIT_BREAKER_TRADE_MULTIPLIER must be positive, got %f", c.CircuitBreakerTradeMultiplier)
		}
		if c.CircuitBreakerHysteresisRatio < 1 {
			return fmt.Errorf("CIRCUIT_BREAKER_HYSTERESIS_RATIO must be >= 1, got %f", c.CircuitBreakerHysteresisRatio)
		}
	}

	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}

	seen := make(map[string]bool, len(c.Pairs))
	for _, p := range c.Pairs {
		if seen[p.Name] {
			return fmt.Errorf("pair %s configured twice", p.Name)
		}
		seen[p.Name] = true

		if err := p.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks that the pair's parameters are valid.
func (p Pair) Validate() error {
	if !pairPattern.MatchString(p.Name) {
		return fmt.Errorf("pair %q must look like MAIN_ALT", p.Name)
	}

	if p.AltFraction <= 0 || p.AltFraction > 1 {
		return fmt.Errorf("%s: alt fraction must be in (0, 1], got %f", p.Name, p.AltFraction)
	}

	if p.MainFraction <= 0 || p.MainFraction > 1 {
		return fmt.Errorf("%s: main fraction must be in (0, 1], got %f", p.Name, p.MainFraction)
	}

	for name, v := range map[string]float64{
		"min buy profit":         p.MinBuyProfit,
		"min sell profit":        p.MinSellProfit,
		"new order threshold":    p.NewOrderThreshold,
		"new currency threshold": p.NewCurrencyThreshold,
		"min main reserve":       p.MinMainReserve,
		"min alt reserve":        p.MinAltReserve,
		"initial buy rate":       p.InitialBuyRate,
		"initial sell rate":      p.InitialSellRate,
	} {
		if v < 0 {
			return fmt.Errorf("%s: %s cannot be negative, got %f", p.Name, name, v)
		}
	}

	if p.HistoryWindow <= 0 {
		return fmt.Errorf("%s: history window must be positive, got %s", p.Name, p.HistoryWindow)
	}

	return nil
}

// Pair returns the configuration of the named pair.
func (c *Config) Pair(name string) (Pair, bool) {
	for _, p := range c.Pairs {
		if p.Name == name {
			return p, true
		}
	}
	return Pair{}, false
}

// RestrictPairs keeps only the named pairs. Every name must already be configured.
func (c *Config) RestrictPairs(names []string) error {
	if len(names) == 0 {
		return nil
	}

	kept := make([]Pair, 0, len(names))
	for _, name := range names {
		p, ok := c.Pair(strings.ToUpper(strings.TrimSpace(name)))
		if !ok {
			return fmt.Errorf("pair %s is not configured", name)
		}
		kept = append(kept, p)
	}
	c.Pairs = kept

	return nil
}

// ParsePaperBalances parses a list such as "BTC=1,ETH=10" into starting balances.
func ParsePaperBalances(s string) (map[string]float64, error) {
	balances := make(map[string]float64)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		currency, amount, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("PAPER_BALANCES entry %q must be CURRENCY=AMOUNT", entry)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("PAPER_BALANCES entry %q has an invalid amount", entry)
		}
		balances[strings.ToUpper(strings.TrimSpace(currency))] = v
	}

	return balances, nil
}

// loadPairs builds the pair list from TRADE_PAIRS and applies PAIRS_FILE overrides. Pairs that
// only appear in the file are added.
func loadPairs(names, file string, defaults Pair) ([]Pair, error) {
	var pairs []Pair
	index := make(map[string]int)
	for _, name := range strings.Split(names, ",") {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := index[name]; ok {
			continue
		}
		p := defaults
		p.Name = name
		index[name] = len(pairs)
		pairs = append(pairs, p)
	}

	if file == "" {
		return pairs, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read pairs file: %w", err)
	}

	var overrides []pairOverride
	err = json.Unmarshal(data, &overrides)
	if err != nil {
		return nil, fmt.Errorf("decode pairs file %s: %w", file, err)
	}

	for _, o := range overrides {
		name := strings.ToUpper(strings.TrimSpace(o.Name))
		i, ok := index[name]
		if !ok {
			p := defaults
			p.Name = name
			i = len(pairs)
			index[name] = i
			pairs = append(pairs, p)
		}
		if err := o.apply(&pairs[i]); err != nil {
			return nil, err
		}
	}

	return pairs, nil
}

func (o pairOverride) apply(p *Pair) error {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.AltFraction, o.AltFraction)
	set(&p.MainFraction, o.MainFraction)
	set(&p.MinBuyProfit, o.MinBuyProfit)
	set(&p.MinSellProfit, o.MinSellProfit)
	set(&p.NewOrderThreshold, o.NewOrderThreshold)
	set(&p.NewCurrencyThreshold, o.NewCurrencyThreshold)
	set(&p.MinMainReserve, o.MinMainReserve)
	set(&p.MinAltReserve, o.MinAltReserve)
	set(&p.InitialBuyRate, o.InitialBuyRate)
	set(&p.InitialSellRate, o.InitialSellRate)

	if o.HistoryWindow != "" {
		d, err := time.ParseDuration(o.HistoryWindow)
		if err != nil {
			return fmt.Errorf("%s: history window %q: %w", p.Name, o.HistoryWindow, err)
		}
		p.HistoryWindow = d
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}
