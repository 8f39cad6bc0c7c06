// Package config loads runtime settings from defaults, an optional YAML
// file, a .env file and the environment, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"virtual-patient/internal/cases"
	"virtual-patient/internal/core"
	"virtual-patient/internal/llm"
)

// EnvPrefix is prepended to every environment override, e.g.
// VP_PATIENT_MAX_TOKENS.
const EnvPrefix = "VP"

type Config struct {
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Patient  PatientConfig  `mapstructure:"patient"`
	Cases    CasesConfig    `mapstructure:"cases"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PatientConfig holds the tuning knobs of the simulated patient.
type PatientConfig struct {
	MaxTokens           int      `mapstructure:"max_tokens"`
	Temperature         float32  `mapstructure:"temperature"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	DiagnosisTriggers   []string `mapstructure:"diagnosis_triggers"`
	StrictErrors        bool     `mapstructure:"strict_errors"`
}

type CasesConfig struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MaxSessions int    `mapstructure:"max_sessions"`
}

// DatabaseConfig selects where scored attempts are kept.  An empty driver
// disables persistence.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("openai.model", llm.DefaultChatModel)
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.timeout", "0s")

	v.SetDefault("patient.max_tokens", core.DefaultMaxTokens)
	v.SetDefault("patient.temperature", core.DefaultTemperature)
	v.SetDefault("patient.similarity_threshold", core.DefaultSimilarityThreshold)
	v.SetDefault("patient.diagnosis_triggers", core.DefaultDiagnosisTriggers)
	v.SetDefault("patient.strict_errors", false)

	v.SetDefault("cases.file", "cases.txt")
	v.SetDefault("cases.format", "auto")

	v.SetDefault("server.addr", ":7860")
	v.SetDefault("server.max_sessions", 256)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// New returns a viper instance wired for this application.  configFile may
// be empty, in which case config.yaml is looked up in the usual places and
// is optional.
func New(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The API key keeps its conventional unprefixed name.
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY", EnvPrefix+"_OPENAI_API_KEY")
	SetDefaults(v)
	return v
}

// Load reads .env (if present), the config file and the environment into a
// validated Config.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || v.ConfigFileUsed() != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Patient.MaxTokens <= 0 {
		return fmt.Errorf("patient.max_tokens must be positive, got %d", c.Patient.MaxTokens)
	}
	if c.Patient.SimilarityThreshold < 0 || c.Patient.SimilarityThreshold > 1 {
		return fmt.Errorf("patient.similarity_threshold must be within [0, 1], got %v", c.Patient.SimilarityThreshold)
	}
	if _, err := cases.ParseFormat(c.Cases.Format); err != nil {
		return err
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive, got %d", c.Server.MaxSessions)
	}
	return nil
}

// CaseFormat returns the configured case file layout.
func (c *Config) CaseFormat() cases.Format {
	f, _ := cases.ParseFormat(c.Cases.Format)
	return f
}
