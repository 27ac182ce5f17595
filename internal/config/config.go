package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a tradesim-lab run.
type Config struct {
	Storage     Storage           `yaml:"storage"`
	Logging     Logging           `yaml:"logging"`
	Metrics     Metrics           `yaml:"metrics"`
	Execution   ExecutionConfig   `yaml:"execution"`
	WalkForward WalkForwardConfig `yaml:"walk_forward"`
	MonteCarlo  MonteCarloConfig  `yaml:"monte_carlo"`
	Gate        GateConfig        `yaml:"gate"`
}

// Storage selects the persistence backend and its DSNs.
type Storage struct {
	// Backend is "memory" or "db". With "db", trades/fills/KPIs/scores go to
	// Postgres and bars to ClickHouse.
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ExecutionConfig defines the exit rules applied to every simulated entry.
type ExecutionConfig struct {
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TrailingPct   float64 `yaml:"trailing_pct"`
	TimeStopBars  int     `yaml:"time_stop_bars"`
	Quantity      float64 `yaml:"quantity"`
}

// WalkForwardConfig defines the rolling fold calendar.
type WalkForwardConfig struct {
	TrainLength     int `yaml:"train_length"`
	TestLength      int `yaml:"test_length"`
	StepLength      int `yaml:"step_length"`
	GapBars         int `yaml:"gap_bars"`
	MinTrainSamples int `yaml:"min_train_samples"`
	MinTestSamples  int `yaml:"min_test_samples"`
	Workers         int `yaml:"workers"`
}

// MonteCarloConfig defines the block-bootstrap scoring parameters.
type MonteCarloConfig struct {
	BlockSize   int     `yaml:"block_size"`
	Paths       int     `yaml:"paths"`
	HorizonBars int     `yaml:"horizon_bars"`
	Seed        int64   `yaml:"seed"`
	LambdaCVaR  float64 `yaml:"lambda_cvar"`
	MuLossProb  float64 `yaml:"mu_loss_prob"`
	Workers     int     `yaml:"workers"`
}

// GateConfig defines the instrument selection gate.
type GateConfig struct {
	TopK           int  `yaml:"top_k"`
	RotationBudget int  `yaml:"rotation_budget"`
	Static         bool `yaml:"static"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a configuration with working defaults for a memory-backed run.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend: "memory",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    ":9090",
		},
		Execution: ExecutionConfig{
			TakeProfitPct: 0.02,
			StopLossPct:   0.01,
			TrailingPct:   0.015,
			TimeStopBars:  60,
			Quantity:      1.0,
		},
		WalkForward: WalkForwardConfig{
			TrainLength:     60,
			TestLength:      20,
			StepLength:      20,
			MinTrainSamples: 30,
			MinTestSamples:  10,
			Workers:         4,
		},
		MonteCarlo: MonteCarloConfig{
			BlockSize:   20,
			Paths:       500,
			HorizonBars: 60,
			Seed:        42,
			LambdaCVaR:  1.0,
			MuLossProb:  0.5,
			Workers:     4,
		},
		Gate: GateConfig{
			TopK:           5,
			RotationBudget: 2,
		},
	}
}

// Load reads the YAML configuration file at the given path into a Config
// seeded with defaults, applies environment variable overrides, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks cross-field constraints that YAML parsing cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "db":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend db requires postgres_dsn")
		}
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage backend db requires clickhouse_dsn")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Execution.TakeProfitPct <= 0 {
		return fmt.Errorf("execution take_profit_pct must be positive")
	}
	if c.Execution.StopLossPct <= 0 {
		return fmt.Errorf("execution stop_loss_pct must be positive")
	}
	if c.Execution.TrailingPct < 0 {
		return fmt.Errorf("execution trailing_pct must not be negative")
	}
	if c.Execution.TimeStopBars < 0 {
		return fmt.Errorf("execution time_stop_bars must not be negative")
	}
	if c.Execution.Quantity <= 0 {
		return fmt.Errorf("execution quantity must be positive")
	}

	if c.WalkForward.TrainLength <= 0 || c.WalkForward.TestLength <= 0 || c.WalkForward.StepLength <= 0 {
		return fmt.Errorf("walk_forward train/test/step lengths must be positive")
	}
	if c.WalkForward.GapBars < 0 {
		return fmt.Errorf("walk_forward gap_bars must not be negative")
	}

	if c.MonteCarlo.BlockSize <= 0 {
		return fmt.Errorf("monte_carlo block_size must be positive")
	}
	if c.MonteCarlo.Paths <= 0 {
		return fmt.Errorf("monte_carlo paths must be positive")
	}
	if c.MonteCarlo.HorizonBars <= 0 {
		return fmt.Errorf("monte_carlo horizon_bars must be positive")
	}

	if c.Gate.TopK <= 0 {
		return fmt.Errorf("gate top_k must be positive")
	}
	if c.Gate.RotationBudget < 0 {
		return fmt.Errorf("gate rotation_budget must not be negative")
	}

	return nil
}
