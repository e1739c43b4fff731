// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Dispatcher     DispatcherConfig     `mapstructure:"dispatcher"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Fallback       FallbackConfig       `mapstructure:"fallback"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Events         EventsConfig         `mapstructure:"events"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout_ms"`
	WriteTimeout    int    `mapstructure:"write_timeout_ms"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_ms"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetAddresses returns the configured addresses, falling back to URL.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Dispatcher ---

// DispatcherConfig drives lane selection and the per-turn budgets.
type DispatcherConfig struct {
	TurnBudgetMs        int     `mapstructure:"turn_budget_ms"`
	MemoryBudgetMs      int     `mapstructure:"memory_budget_ms"`
	SessionBudgetMs     int     `mapstructure:"session_budget_ms"`
	MemoryEnabled       bool    `mapstructure:"memory_enabled"`
	DirectLaneEnabled   bool    `mapstructure:"direct_lane_enabled"`
	DirectLaneThreshold float64 `mapstructure:"direct_lane_threshold"`
	FastPathEnabled     bool    `mapstructure:"fast_path_enabled"`
	FastPathThreshold   float64 `mapstructure:"fast_path_threshold"`
	ClassifierBudgetUs  int     `mapstructure:"classifier_budget_us"`
	SLAMs               int     `mapstructure:"sla_ms"`
	DefaultTenantID     string  `mapstructure:"default_tenant_id"`
	DefaultLanguage     string  `mapstructure:"default_language"`
	Timezone            string  `mapstructure:"timezone"`
	SlotDurationMinutes int     `mapstructure:"slot_duration_minutes"`
}

type CircuitBreakerConfig struct {
	FailureThreshold   int `mapstructure:"failure_threshold"`
	RecoveryTimeoutSec int `mapstructure:"recovery_timeout_sec"`
}

// FallbackConfig selects the orchestrator strategy: "remote" or "inprocess".
type FallbackConfig struct {
	Mode      string `mapstructure:"mode"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type CatalogConfig struct {
	CacheTTLSec      int    `mapstructure:"cache_ttl_sec"`
	RefreshTimeoutMs int    `mapstructure:"refresh_timeout_ms"`
	FAQSeedPath      string `mapstructure:"faq_seed_path"`
	ServicesIndex    string `mapstructure:"services_index"`
}

type EventsConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
		Region   string `mapstructure:"region"`
	} `mapstructure:"sns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
