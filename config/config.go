package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds everything the server needs. It is loaded once in main()
// and passed explicitly into handlers and the pipeline so nothing reads
// ambient globals at request time.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	AI       AIConfig       `mapstructure:"ai"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// GetDSN returns the PostgreSQL connection string.
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// AIConfig carries the provider credentials and per-endpoint call ceilings.
// APIKey is required; a missing key is a fatal configuration error, not a
// retryable one.
type AIConfig struct {
	APIKey string `mapstructure:"api_key"`

	// Candidate model lists per capability tier, most capable first.
	// Overridable via env (comma-separated).
	FastModels   []string `mapstructure:"fast_models"`
	ExpertModels []string `mapstructure:"expert_models"`
	MasterModels []string `mapstructure:"master_models"`

	// Wall-clock ceilings per endpoint family.
	ChatTimeout   time.Duration `mapstructure:"chat_timeout"`
	VisionTimeout time.Duration `mapstructure:"vision_timeout"`
	ReportTimeout time.Duration `mapstructure:"report_timeout"`

	// Inter-candidate delay policy applied between fallback attempts.
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	RetryMultiplier float64       `mapstructure:"retry_multiplier"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay"`

	// Structured results below this confidence are rejected.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate reports fatal configuration errors. These are surfaced before
// any request is served; the pipeline never runs without an API key.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AI.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	return nil
}
