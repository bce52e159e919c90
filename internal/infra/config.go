package infra

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
// Secrets may live in the file for development, but environment variables
// always override them.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode          string   `yaml:"mode"` // "paper" or "live"
		Symbols       []string `yaml:"symbols"`
		BudgetPerDeal string   `yaml:"budget_per_deal"` // quote currency, decimal string
		ProfitPct     string   `yaml:"profit_pct"`      // desired profit, e.g. "1.0"
	} `yaml:"trading"`

	Exchange struct {
		Name       string `yaml:"name"`
		RestURL    string `yaml:"rest_url"`
		WSURL      string `yaml:"ws_url"`
		AccessKey  string `yaml:"access_key"`
		SecretKey  string `yaml:"secret_key"`
		Passphrase string `yaml:"passphrase"`

		// Requests per second against order/account/market endpoint groups.
		RateLimit struct {
			OrderPerSec   float64 `yaml:"order_per_sec"`
			AccountPerSec float64 `yaml:"account_per_sec"`
			MarketPerSec  float64 `yaml:"market_per_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"exchange"`

	Monitors struct {
		BuyOrder struct {
			Enabled          bool    `yaml:"enabled"`
			MaxAgeMin        int     `yaml:"max_age_min"`
			MaxDeviationPct  string  `yaml:"max_deviation_pct"`
			CheckIntervalSec int     `yaml:"check_interval_sec"`
			GracePeriodSec   int     `yaml:"grace_period_sec"`
			MaxRecreations   int     `yaml:"max_recreations"`
			CooldownSec      int     `yaml:"cooldown_sec"`
			PriceFactor      float64 `yaml:"price_factor"` // replacement price = market * factor
		} `yaml:"buy_order"`

		Sync struct {
			Enabled     bool `yaml:"enabled"`
			IntervalSec int  `yaml:"interval_sec"`
		} `yaml:"sync"`

		Timeout struct {
			Enabled        bool `yaml:"enabled"`
			MaxLifetimeMin int  `yaml:"max_lifetime_min"`
			IntervalSec    int  `yaml:"interval_sec"`
		} `yaml:"timeout"`
	} `yaml:"monitors"`

	Storage struct {
		Driver string `yaml:"driver"` // "memory" or "sqlite"
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, then applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv lets environment variables take precedence over the
// config file for secrets.
func overrideWithEnv(cfg *Config) {
	if cfg.Exchange.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secret found in config file.")
		fmt.Println("   Recommendation: use AUTOTRADE_EXCHANGE_KEY / AUTOTRADE_EXCHANGE_SECRET / AUTOTRADE_EXCHANGE_PASSPHRASE instead.")
	}

	if key := os.Getenv("AUTOTRADE_EXCHANGE_KEY"); key != "" {
		cfg.Exchange.AccessKey = key
	}
	if secret := os.Getenv("AUTOTRADE_EXCHANGE_SECRET"); secret != "" {
		cfg.Exchange.SecretKey = secret
	}
	if pass := os.Getenv("AUTOTRADE_EXCHANGE_PASSPHRASE"); pass != "" {
		cfg.Exchange.Passphrase = pass
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = "paper"
	}
	if cfg.Exchange.RateLimit.OrderPerSec == 0 {
		cfg.Exchange.RateLimit.OrderPerSec = 10
	}
	if cfg.Exchange.RateLimit.AccountPerSec == 0 {
		cfg.Exchange.RateLimit.AccountPerSec = 10
	}
	if cfg.Exchange.RateLimit.MarketPerSec == 0 {
		cfg.Exchange.RateLimit.MarketPerSec = 20
	}

	m := &cfg.Monitors
	if m.BuyOrder.MaxAgeMin == 0 {
		m.BuyOrder.MaxAgeMin = 15
	}
	if m.BuyOrder.MaxDeviationPct == "" {
		m.BuyOrder.MaxDeviationPct = "2.0"
	}
	if m.BuyOrder.CheckIntervalSec == 0 {
		m.BuyOrder.CheckIntervalSec = 60
	}
	if m.BuyOrder.GracePeriodSec == 0 {
		m.BuyOrder.GracePeriodSec = 120
	}
	if m.BuyOrder.MaxRecreations == 0 {
		m.BuyOrder.MaxRecreations = 3
	}
	if m.BuyOrder.CooldownSec == 0 {
		m.BuyOrder.CooldownSec = 300
	}
	if m.BuyOrder.PriceFactor == 0 {
		m.BuyOrder.PriceFactor = 0.999
	}
	if m.Sync.IntervalSec == 0 {
		m.Sync.IntervalSec = 30
	}
	if m.Timeout.MaxLifetimeMin == 0 {
		m.Timeout.MaxLifetimeMin = 120
	}
	if m.Timeout.IntervalSec == 0 {
		m.Timeout.IntervalSec = 300
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks configuration validity before anything starts.
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case "paper", "live":
	default:
		return fmt.Errorf("unknown trading mode %q", c.Trading.Mode)
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	if _, err := decimal.NewFromString(c.Trading.BudgetPerDeal); err != nil {
		return fmt.Errorf("budget_per_deal %q is not a decimal: %w", c.Trading.BudgetPerDeal, err)
	}
	if _, err := decimal.NewFromString(c.Trading.ProfitPct); err != nil {
		return fmt.Errorf("profit_pct %q is not a decimal: %w", c.Trading.ProfitPct, err)
	}
	if _, err := decimal.NewFromString(c.Monitors.BuyOrder.MaxDeviationPct); err != nil {
		return fmt.Errorf("max_deviation_pct %q is not a decimal: %w", c.Monitors.BuyOrder.MaxDeviationPct, err)
	}
	if c.Trading.Mode == "live" && c.Exchange.RestURL == "" {
		return fmt.Errorf("live mode requires exchange.rest_url")
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// BudgetPerDeal returns the per-deal budget as a decimal.
// Validate guarantees the parse succeeds.
func (c *Config) BudgetPerDeal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Trading.BudgetPerDeal)
	return d
}

// ProfitPct returns the desired profit percentage as a decimal.
func (c *Config) ProfitPct() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Trading.ProfitPct)
	return d
}

// MaxDeviationPct returns the buy-monitor deviation threshold as a decimal.
func (c *Config) MaxDeviationPct() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Monitors.BuyOrder.MaxDeviationPct)
	return d
}

// BuyMonitorGracePeriod returns the grace period before the first status check.
func (c *Config) BuyMonitorGracePeriod() time.Duration {
	return time.Duration(c.Monitors.BuyOrder.GracePeriodSec) * time.Second
}
