package circuitbreaker

import (
	"time"

	"clinic-dispatcher/internal/common/config"
)

type Config struct {
	FailureThreshold uint
	RecoveryTimeout  time.Duration
}

func LoadConfig(cfg config.CircuitBreakerConfig) *Config {
	c := &Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
	if cfg.FailureThreshold > 0 {
		c.FailureThreshold = uint(cfg.FailureThreshold)
	}
	if cfg.RecoveryTimeoutSec > 0 {
		c.RecoveryTimeout = cfg.RecoveryTimeout()
	}
	return c
}
