package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Generation GenerationConfig `mapstructure:"generation"`
	S3         S3Config         `mapstructure:"s3"`
	Assignment AssignmentConfig `mapstructure:"assignment"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// LogMode is "dev" or "prod".
	LogMode string `mapstructure:"log_mode"`
}

type DatabaseConfig struct {
	// Driver is "mongo" or "memory".
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// GenerationConfig points at the chat completions backend.
// Provider "mock" serves canned content and needs no credentials.
type GenerationConfig struct {
	Provider    string        `mapstructure:"provider"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	APIVersion  string        `mapstructure:"api_version"` // set for Azure OpenAI
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// AssignmentConfig selects how priorities are handed out and adjusted.
type AssignmentConfig struct {
	// PriorityMode is "scan" (max+1 read then write) or "counter" (atomic per-patient counter).
	PriorityMode string `mapstructure:"priority_mode"`
	// PriorityPolicy is none, success-biases-back, failure-biases-forward or adaptive.
	PriorityPolicy string `mapstructure:"priority_policy"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Nested keys map to env vars, e.g. generation.api_key -> GENERATION_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.log_mode", "dev")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "aphasia")
	v.SetDefault("generation.provider", "openai")
	v.SetDefault("generation.endpoint", "https://api.openai.com")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "gpt-4o")
	v.SetDefault("generation.api_version", "")
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 2100)
	v.SetDefault("generation.timeout", "90s")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", "15m")
	v.SetDefault("assignment.priority_mode", "scan")
	v.SetDefault("assignment.priority_policy", "none")

	err = v.ReadInConfig()
	// A missing file is fine; defaults and env vars still apply.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	// Durations are parsed from strings like "90s" straight into time.Duration.
	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
