package router

import (
	"time"

	"clinic-dispatcher/internal/common/config"
)

type Config struct {
	DirectLaneEnabled   bool
	DirectLaneThreshold float64
	FastPathEnabled     bool
	FastPathThreshold   float64
	ClassifierBudget    time.Duration
	SessionBudget       time.Duration
	SLA                 time.Duration
	FallbackTimeout     time.Duration
	DefaultTenantID     string
	DefaultLanguage     string
}

func LoadConfig(cfg *config.Config) *Config {
	d := cfg.Dispatcher
	c := &Config{
		DirectLaneEnabled:   d.DirectLaneEnabled,
		DirectLaneThreshold: d.DirectLaneThreshold,
		FastPathEnabled:     d.FastPathEnabled,
		FastPathThreshold:   d.FastPathThreshold,
		ClassifierBudget:    d.ClassifierBudget(),
		SessionBudget:       d.SessionBudget(),
		SLA:                 d.SLA(),
		FallbackTimeout:     config.GetDuration(cfg.Fallback.TimeoutMs),
		DefaultTenantID:     d.DefaultTenantID,
		DefaultLanguage:     d.DefaultLanguage,
	}
	applyDefaults(c)
	return c
}

func applyDefaults(c *Config) {
	if c.DirectLaneThreshold <= 0 {
		c.DirectLaneThreshold = 0.8
	}
	if c.FastPathThreshold <= 0 {
		c.FastPathThreshold = 0.9
	}
	if c.ClassifierBudget <= 0 {
		c.ClassifierBudget = 5 * time.Millisecond
	}
	if c.SessionBudget <= 0 {
		c.SessionBudget = 50 * time.Millisecond
	}
	if c.SLA <= 0 {
		c.SLA = 1500 * time.Millisecond
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = 10 * time.Second
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
}
