package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DBDriver    string `mapstructure:"db_driver"`
	DBDSN       string `mapstructure:"db_dsn"`
	AdminSecret string `mapstructure:"admin_secret"`
	HTTPAddr    string `mapstructure:"http_addr"`
	SessionKey  string `mapstructure:"session_key"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	Env         string `mapstructure:"env"`
}

// Production reports whether the server runs in the production environment.
func (c *Config) Production() bool { return c.Env == "production" }

// Load reads .env when present, then config/config.yaml when present, then
// PLEAGUE_* environment variables, each overriding the one before.
func Load() (*Config, error) {
	return load(".env", "./config")
}

func load(envFile, configDir string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "prediction_league.db")
	v.SetDefault("admin_secret", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("session_key", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("env", "development")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("PLEAGUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("db_driver must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.Production() && cfg.SessionKey == "" {
		return nil, errors.New("session_key is required in production")
	}
	return &cfg, nil
}
