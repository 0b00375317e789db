package config

import (
	"time"
)

// ServiceConfig holds the tuning knobs of the lending service.
type ServiceConfig struct {
	DeliveryTimeout      time.Duration `env:"LENDING_DELIVERY_TIMEOUT"       envDefault:"2s"`
	RetryMaxAttempts     int           `env:"LENDING_RETRY_MAX_ATTEMPTS"     envDefault:"4"`
	RetryBaseDelay       time.Duration `env:"LENDING_RETRY_BASE_DELAY"       envDefault:"10ms"`
	RetryJitterFactor    float64       `env:"LENDING_RETRY_JITTER_FACTOR"    envDefault:"0.3"`
	ConnectionBufferSize int           `env:"LENDING_CONNECTION_BUFFER_SIZE" envDefault:"16"`
	DefaultLoanPeriod    time.Duration `env:"LENDING_DEFAULT_LOAN_PERIOD"    envDefault:"336h"`
}
