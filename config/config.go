package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Matching MatchingConfig `mapstructure:"matching"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port" validate:"required,numeric"`
	Environment    string   `mapstructure:"environment" validate:"oneof=development test production"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RemoteConfig points at the AgentMap classification/scoring API
type RemoteConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
}

// MatchingConfig holds orchestration and scoring display settings
type MatchingConfig struct {
	TopK                 int                   `mapstructure:"top_k" validate:"gte=1,lte=50"`
	OrchestrationTimeout time.Duration         `mapstructure:"orchestration_timeout" validate:"gt=0"`
	Bands                domain.BandThresholds `mapstructure:"bands"`
}

// SessionConfig holds dashboard session settings
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// DefaultRemoteBaseURL is the local development address of the AgentMap API
const DefaultRemoteBaseURL = "http://localhost:8000"

// Load resolves configuration once from defaults, an optional config file,
// an optional .env file and AGENTMAP_* environment variables.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agentmap/")

	// Environment variable settings
	v.SetEnvPrefix("AGENTMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env (or AGENTMAP_ENV_FILE) when present. Variables
// already set in the environment win.
func loadEnvFile() error {
	path := os.Getenv("AGENTMAP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Remote API defaults
	v.SetDefault("remote.base_url", DefaultRemoteBaseURL)
	v.SetDefault("remote.timeout", "10s")
	v.SetDefault("remote.requests_per_second", 20.0)
	v.SetDefault("remote.burst", 10)

	// Matching defaults
	v.SetDefault("matching.top_k", domain.DefaultTopK)
	v.SetDefault("matching.orchestration_timeout", "15s")
	v.SetDefault("matching.bands.green", domain.DefaultBandThresholds.Green)
	v.SetDefault("matching.bands.yellow", domain.DefaultBandThresholds.Yellow)

	// Session defaults
	v.SetDefault("session.ttl", "30m")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// validate validates the configuration
func validate(config *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q check (value: %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if err := config.Matching.Bands.Validate(); err != nil {
		return err
	}

	config.Remote.BaseURL = strings.TrimRight(config.Remote.BaseURL, "/")
	return nil
}
