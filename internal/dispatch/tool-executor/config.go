package toolexecutor

import (
	"time"

	"clinic-dispatcher/internal/common/config"
)

type Config struct {
	TurnBudget          time.Duration
	MemoryBudget        time.Duration
	MemoryEnabled       bool
	SlotDurationMinutes int
	MaxFAQResults       int
	MaxSlots            int
	MaxServices         int
	DescriptionLimit    int
	ReleaseTimeout      time.Duration
	EventTimeout        time.Duration
	Location            *time.Location
}

func LoadConfig(cfg config.DispatcherConfig) *Config {
	c := &Config{
		TurnBudget:          cfg.TurnBudget(),
		MemoryBudget:        cfg.MemoryBudget(),
		MemoryEnabled:       cfg.MemoryEnabled,
		SlotDurationMinutes: cfg.SlotDurationMinutes,
		MaxFAQResults:       3,
		MaxSlots:            5,
		MaxServices:         5,
		DescriptionLimit:    80,
		ReleaseTimeout:      2 * time.Second,
		EventTimeout:        5 * time.Second,
		Location:            cfg.Location(),
	}
	if c.TurnBudget <= 0 {
		c.TurnBudget = 800 * time.Millisecond
	}
	if c.MemoryBudget <= 0 {
		c.MemoryBudget = 50 * time.Millisecond
	}
	if c.SlotDurationMinutes <= 0 {
		c.SlotDurationMinutes = 30
	}
	return c
}
