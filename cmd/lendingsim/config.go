package main

import (
	"errors"
	"flag"
	"time"

	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
)

const (
	engineMemory   = "memory"
	enginePostgres = "postgres"
)

var ErrInvalidSimulationConfig = errors.New("invalid simulation config")

// Config holds the simulation parameters. Environment values are the defaults for the flags.
type Config struct {
	Engine         string        `env:"LENDINGSIM_ENGINE"          envDefault:"memory"`
	Items          int           `env:"LENDINGSIM_ITEMS"           envDefault:"20"`
	CopiesPerItem  int           `env:"LENDINGSIM_COPIES_PER_ITEM" envDefault:"2"`
	Readers        int           `env:"LENDINGSIM_READERS"         envDefault:"50"`
	ConnectedRatio float64       `env:"LENDINGSIM_CONNECTED_RATIO" envDefault:"0.7"`
	ReturnRatio    float64       `env:"LENDINGSIM_RETURN_RATIO"    envDefault:"0.4"`
	ThinkTime      time.Duration `env:"LENDINGSIM_THINK_TIME"      envDefault:"5ms"`
	Duration       time.Duration `env:"LENDINGSIM_DURATION"        envDefault:"10s"`
	Observability  bool          `env:"LENDINGSIM_OBSERVABILITY"   envDefault:"false"`

	Service  config.ServiceConfig
	Postgres config.PostgresConfig
	Log      config.LogConfig
}

// loadConfig reads the environment first and lets command line flags override it.
func loadConfig(args []string) (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("lendingsim", flag.ContinueOnError)
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "store engine: memory or postgres")
	fs.IntVar(&cfg.Items, "items", cfg.Items, "number of items to seed")
	fs.IntVar(&cfg.CopiesPerItem, "copies", cfg.CopiesPerItem, "copies per seeded item")
	fs.IntVar(&cfg.Readers, "readers", cfg.Readers, "number of concurrent readers")
	fs.Float64Var(&cfg.ConnectedRatio, "connected", cfg.ConnectedRatio, "share of readers with a live channel (0..1)")
	fs.Float64Var(&cfg.ReturnRatio, "return-ratio", cfg.ReturnRatio, "probability that a reader returns instead of borrowing (0..1)")
	fs.DurationVar(&cfg.ThinkTime, "think", cfg.ThinkTime, "maximum pause between two actions of a reader")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "how long the readers act")
	fs.BoolVar(&cfg.Observability, "observability", cfg.Observability, "wire OpenTelemetry metrics and tracing")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.Engine != engineMemory && c.Engine != enginePostgres {
		errs = append(errs, errors.New("engine must be memory or postgres"))
	}

	if c.Items <= 0 || c.CopiesPerItem <= 0 || c.Readers <= 0 {
		errs = append(errs, errors.New("items, copies and readers must be positive"))
	}

	if c.ConnectedRatio < 0 || c.ConnectedRatio > 1 || c.ReturnRatio < 0 || c.ReturnRatio > 1 {
		errs = append(errs, errors.New("ratios must be between 0 and 1"))
	}

	if c.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidSimulationConfig}, errs...)...)
	}

	return nil
}
