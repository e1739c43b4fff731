package intentclassifier

import (
	"time"

	"clinic-dispatcher/internal/common/config"
)

type Config struct {
	DefaultLanguage string
	Location        *time.Location
}

func LoadConfig(cfg config.DispatcherConfig) *Config {
	c := &Config{
		DefaultLanguage: cfg.DefaultLanguage,
		Location:        cfg.Location(),
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	return c
}
