// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml, the config.<APP_ENVIRONMENT> overlay
// and environment overrides such as DISPATCHER_TURN_BUDGET_MS.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it. Booleans
// whose default is true can only be expressed here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "clinic-dispatcher")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout_ms", 5000)
	v.SetDefault("server.write_timeout_ms", 15000)
	v.SetDefault("server.shutdown_timeout_ms", 10000)

	v.SetDefault("dispatcher.turn_budget_ms", 800)
	v.SetDefault("dispatcher.memory_budget_ms", 50)
	v.SetDefault("dispatcher.session_budget_ms", 50)
	v.SetDefault("dispatcher.memory_enabled", true)
	v.SetDefault("dispatcher.direct_lane_enabled", true)
	v.SetDefault("dispatcher.direct_lane_threshold", 0.8)
	v.SetDefault("dispatcher.fast_path_enabled", true)
	v.SetDefault("dispatcher.fast_path_threshold", 0.9)
	v.SetDefault("dispatcher.classifier_budget_us", 5000)
	v.SetDefault("dispatcher.sla_ms", 1500)
	v.SetDefault("dispatcher.default_tenant_id", "")
	v.SetDefault("dispatcher.default_language", "en")
	v.SetDefault("dispatcher.timezone", "UTC")
	v.SetDefault("dispatcher.slot_duration_minutes", 30)

	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.recovery_timeout_sec", 60)

	v.SetDefault("fallback.mode", "remote")
	v.SetDefault("fallback.base_url", "")
	v.SetDefault("fallback.api_key", "")
	v.SetDefault("fallback.timeout_ms", 10000)

	v.SetDefault("catalog.cache_ttl_sec", 300)
	v.SetDefault("catalog.faq_seed_path", "")
	v.SetDefault("catalog.services_index", "services")

	v.SetDefault("events.sns.enabled", false)
	v.SetDefault("events.sns.topic_arn", "")
	v.SetDefault("events.sns.region", "us-east-1")

	v.SetDefault("database.elasticsearch.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Fallback.BaseURL == "" {
		if val := os.Getenv("ORCHESTRATOR_URL"); val != "" {
			cfg.Fallback.BaseURL = val
		}
	}
	if cfg.Fallback.APIKey == "" {
		if val := os.Getenv("ORCHESTRATOR_API_KEY"); val != "" {
			cfg.Fallback.APIKey = val
		}
	}
}

// applyDefaults fills zero values left by a config file that sets a key to 0 or "".
func applyDefaults(cfg *Config) {
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Dispatcher.TurnBudgetMs == 0 {
		cfg.Dispatcher.TurnBudgetMs = 800
	}
	if cfg.Dispatcher.MemoryBudgetMs == 0 {
		cfg.Dispatcher.MemoryBudgetMs = 50
	}
	if cfg.Dispatcher.SessionBudgetMs == 0 {
		cfg.Dispatcher.SessionBudgetMs = 50
	}
	if cfg.Dispatcher.DirectLaneThreshold == 0 {
		cfg.Dispatcher.DirectLaneThreshold = 0.8
	}
	if cfg.Dispatcher.FastPathThreshold == 0 {
		cfg.Dispatcher.FastPathThreshold = 0.9
	}
	if cfg.Dispatcher.ClassifierBudgetUs == 0 {
		cfg.Dispatcher.ClassifierBudgetUs = 5000
	}
	if cfg.Dispatcher.SLAMs == 0 {
		cfg.Dispatcher.SLAMs = 1500
	}
	if cfg.Dispatcher.DefaultLanguage == "" {
		cfg.Dispatcher.DefaultLanguage = "en"
	}
	if cfg.Dispatcher.Timezone == "" {
		cfg.Dispatcher.Timezone = "UTC"
	}
	if cfg.Dispatcher.SlotDurationMinutes == 0 {
		cfg.Dispatcher.SlotDurationMinutes = 30
	}

	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.CircuitBreaker.RecoveryTimeoutSec == 0 {
		cfg.CircuitBreaker.RecoveryTimeoutSec = 60
	}

	if cfg.Fallback.Mode == "" {
		cfg.Fallback.Mode = "remote"
	}
	if cfg.Fallback.TimeoutMs == 0 {
		cfg.Fallback.TimeoutMs = 10000
	}

	if cfg.Catalog.CacheTTLSec == 0 {
		cfg.Catalog.CacheTTLSec = 300
	}
	if cfg.Catalog.RefreshTimeoutMs == 0 {
		cfg.Catalog.RefreshTimeoutMs = 2000
	}
	if cfg.Catalog.ServicesIndex == "" {
		cfg.Catalog.ServicesIndex = "services"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	d := cfg.Dispatcher
	if d.DirectLaneThreshold <= 0 || d.DirectLaneThreshold > 1 {
		return fmt.Errorf("dispatcher.direct_lane_threshold must be in (0,1], got %v", d.DirectLaneThreshold)
	}
	if d.FastPathThreshold <= 0 || d.FastPathThreshold > 1 {
		return fmt.Errorf("dispatcher.fast_path_threshold must be in (0,1], got %v", d.FastPathThreshold)
	}
	if d.TurnBudgetMs <= 0 {
		return fmt.Errorf("dispatcher.turn_budget_ms must be positive")
	}
	if d.MemoryBudgetMs <= 0 || d.MemoryBudgetMs >= d.TurnBudgetMs {
		return fmt.Errorf("dispatcher.memory_budget_ms must be positive and below turn_budget_ms")
	}
	if d.SessionBudgetMs <= 0 || d.SessionBudgetMs >= d.TurnBudgetMs {
		return fmt.Errorf("dispatcher.session_budget_ms must be positive and below turn_budget_ms")
	}
	if _, err := time.LoadLocation(d.Timezone); err != nil {
		return fmt.Errorf("dispatcher.timezone: %w", err)
	}

	if cfg.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be at least 1")
	}
	if cfg.CircuitBreaker.RecoveryTimeoutSec < 1 {
		return fmt.Errorf("circuit_breaker.recovery_timeout_sec must be at least 1")
	}

	switch cfg.Fallback.Mode {
	case "remote":
		if cfg.Fallback.BaseURL == "" {
			return fmt.Errorf("fallback.base_url is required when fallback.mode is remote")
		}
	case "inprocess":
	default:
		return fmt.Errorf("fallback.mode must be remote or inprocess, got %q", cfg.Fallback.Mode)
	}

	if cfg.Events.SNS.Enabled && cfg.Events.SNS.TopicARN == "" {
		return fmt.Errorf("events.sns.topic_arn is required when events.sns.enabled is true")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func (d DispatcherConfig) TurnBudget() time.Duration    { return GetDuration(d.TurnBudgetMs) }
func (d DispatcherConfig) MemoryBudget() time.Duration  { return GetDuration(d.MemoryBudgetMs) }
func (d DispatcherConfig) SessionBudget() time.Duration { return GetDuration(d.SessionBudgetMs) }
func (d DispatcherConfig) SLA() time.Duration           { return GetDuration(d.SLAMs) }

func (d DispatcherConfig) ClassifierBudget() time.Duration {
	return time.Duration(d.ClassifierBudgetUs) * time.Microsecond
}

// Location resolves the configured timezone, defaulting to UTC.
func (d DispatcherConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c CircuitBreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSec) * time.Second
}
