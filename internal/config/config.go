// Package config loads runtime settings for the bidsense tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Settings struct {
	Store   StoreSettings   `mapstructure:"store"`
	Policy  PolicySettings  `mapstructure:"policy"`
	Log     LogSettings     `mapstructure:"log"`
	Batch   BatchSettings   `mapstructure:"batch"`
	Metrics MetricsSettings `mapstructure:"metrics"`
}

type StoreSettings struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// DSN returns the connection string for the configured driver.
func (s StoreSettings) DSN() string {
	if s.Driver == "sqlite" {
		return s.SQLitePath
	}
	return s.DatabaseURL
}

type PolicySettings struct {
	// Path to a YAML or JSON policy document. Empty means compiled-in defaults.
	Path string `mapstructure:"path"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BatchSettings struct {
	Size int `mapstructure:"size"`
}

type MetricsSettings struct {
	Textfile string `mapstructure:"textfile"`
}

const envPrefix = "BIDSENSE"

// Load reads settings from defaults, an optional bidsense.yaml (or the given
// file), a .env file in the working directory and BIDSENSE_* variables, in
// increasing precedence.
func Load(configFile string) (*Settings, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("bidsense")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The plain variable the service has always honoured.
	if s.Store.DatabaseURL == "" {
		s.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "bidsense.db")
	v.SetDefault("policy.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("batch.size", 200)
	v.SetDefault("metrics.textfile", "")
}

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	var errs []error
	switch s.Store.Driver {
	case "postgres":
		if s.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	case "sqlite":
		if s.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of postgres, sqlite", s.Store.Driver))
	}
	if s.Batch.Size <= 0 {
		errs = append(errs, fmt.Errorf("batch.size must be positive, got %d", s.Batch.Size))
	}
	switch s.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", s.Log.Format))
	}
	return errors.Join(errs...)
}
