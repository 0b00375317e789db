package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer  = errors.New("config target must be a non-nil pointer")
	ErrParseConfig = errors.New("failed to parse configuration from environment")

	dotEnvLoaded sync.Once
)

// Load fills v from the environment. The .env file in the working directory is read once per
// process; variables that are already set win over values from the file.
func Load[T any](v *T) error {
	dotEnvLoaded.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})

	if v == nil {
		return ErrNilPointer
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParseConfig, err)
	}

	return nil
}

// MustLoad is Load for process start-up code, it panics on error.
func MustLoad[T any]() T {
	var cfg T
	if err := Load(&cfg); err != nil {
		panic(err)
	}

	return cfg
}
