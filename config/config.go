package config

import (
	"log"
	"os"

	"github.com/spf13/viper"
)

// LLMConfig holds the upstream provider settings. APIKeyEnv names the
// environment variable that carries the key; the key itself never lives in
// config.yaml.
type LLMConfig struct {
	APIKeyEnv      string `mapstructure:"api_key_env"`
	APIKey         string `mapstructure:"-"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// QuotaConfig holds the per-period generation limits for metered tiers.
type QuotaConfig struct {
	AnonymousPerDay int `mapstructure:"anonymous_per_day"`
	FreePerMonth    int `mapstructure:"free_per_month"`
}

// RateLimitConfig holds the abuse-guard limits, distinct from billing quota.
type RateLimitConfig struct {
	AnonymousPerHour     int `mapstructure:"anonymous_per_hour"`
	AuthenticatedPerHour int `mapstructure:"authenticated_per_hour"`
	WindowMinutes        int `mapstructure:"window_minutes"`
	SweepMinutes         int `mapstructure:"sweep_minutes"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		DSN string `mapstructure:"dsn"` // "memory" or file path for SQLite
	} `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Trial     struct {
		Days int `mapstructure:"days"`
	} `mapstructure:"trial"`
	Cache struct {
		TTLHours     int `mapstructure:"ttl_hours"`
		SweepMinutes int `mapstructure:"sweep_minutes"`
	} `mapstructure:"cache"`
	Admin struct {
		Token string `mapstructure:"token"`
	} `mapstructure:"admin"`
}

// AppConfig is the global configuration instance.
var AppConfig Config

// LoadConfig loads configuration from config.yaml and environment variables.
func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../config") // For running from locations like tests

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.dsn", "memory")
	viper.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout_seconds", 45)
	viper.SetDefault("quota.anonymous_per_day", 5)
	viper.SetDefault("quota.free_per_month", 10)
	viper.SetDefault("rate_limit.anonymous_per_hour", 10)
	viper.SetDefault("rate_limit.authenticated_per_hour", 100)
	viper.SetDefault("rate_limit.window_minutes", 60)
	viper.SetDefault("rate_limit.sweep_minutes", 10)
	viper.SetDefault("trial.days", 14)
	viper.SetDefault("cache.ttl_hours", 24)
	viper.SetDefault("cache.sweep_minutes", 30)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("WARN: [Config] Configuration file (config.yaml) not found. Using environment variables and defaults.")
		} else {
			log.Fatalf("FATAL: [Config] Error reading configuration file: %v", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("FATAL: [Config] Failed to unmarshal configuration into AppConfig struct: %v", err)
	}

	// Environment variable overrides
	if port := os.Getenv("SERVER_PORT"); port != "" {
		AppConfig.Server.Port = port
		log.Printf("INFO: [Config] Server port overridden by environment variable SERVER_PORT: %s", port)
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		AppConfig.Admin.Token = token
	}

	// Resolve the provider API key through the named environment variable.
	if AppConfig.LLM.APIKeyEnv != "" {
		if key := os.Getenv(AppConfig.LLM.APIKeyEnv); key != "" {
			AppConfig.LLM.APIKey = key
			log.Printf("INFO: [Config] Loaded LLM API key from environment variable '%s'.", AppConfig.LLM.APIKeyEnv)
		} else {
			log.Printf("WARN: [Config] LLM API key environment variable '%s' is not set. Generation requests will fail upstream.", AppConfig.LLM.APIKeyEnv)
		}
	}

	log.Println("INFO: [Config] Configuration loading complete.")
}
