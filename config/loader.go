package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml plus environment
// variables (env wins). A .env file is honored for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Flat env names used in deployment, kept for parity with the
	// hosted environment variable set.
	if key := v.GetString("OPENAI_API_KEY"); key != "" {
		cfg.AI.APIKey = sanitizeEnv(key)
	}
	if host := v.GetString("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := v.GetInt("DB_PORT"); port != 0 {
		cfg.Database.Port = port
	}
	if name := v.GetString("DB_NAME"); name != "" {
		cfg.Database.Database = name
	}
	if user := v.GetString("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := v.GetString("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if port := v.GetString("PORT"); port != "" {
		cfg.App.Port = port
	}
	if models := v.GetString("AI_FAST_MODELS"); models != "" {
		cfg.AI.FastModels = splitModels(models)
	}
	if models := v.GetString("AI_EXPERT_MODELS"); models != "" {
		cfg.AI.ExpertModels = splitModels(models)
	}
	if models := v.GetString("AI_MASTER_MODELS"); models != "" {
		cfg.AI.MasterModels = splitModels(models)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tcm-backend")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.environment", "development")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.max_idle", 5)

	v.SetDefault("ai.fast_models", []string{"gpt-4o-mini", "gpt-3.5-turbo"})
	v.SetDefault("ai.expert_models", []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"})
	v.SetDefault("ai.master_models", []string{"gpt-4-turbo", "gpt-4o", "gpt-4o-mini"})

	v.SetDefault("ai.chat_timeout", 60*time.Second)
	v.SetDefault("ai.vision_timeout", 90*time.Second)
	v.SetDefault("ai.report_timeout", 120*time.Second)

	v.SetDefault("ai.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("ai.retry_multiplier", 2.0)
	v.SetDefault("ai.retry_max_delay", 5*time.Second)
	v.SetDefault("ai.min_confidence", 60.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func splitModels(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sanitizeEnv trims whitespace and surrounding quotes that sneak into
// hosted env values when copied from dashboards.
func sanitizeEnv(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
