package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/selection"
	"github.com/mangatl/mangatl/internal/theme"
	"github.com/mangatl/mangatl/internal/upload"
)

// Config holds application configuration.
type Config struct {
	Endpoint         string        `mapstructure:"endpoint"`
	Engine           string        `mapstructure:"engine"`
	MaxFileSize      int           `mapstructure:"max_file_size"`
	UploadTimeout    time.Duration `mapstructure:"upload_timeout"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	ThumbnailSize    int           `mapstructure:"thumbnail_size"`
	ThemeFile        string        `mapstructure:"theme_file"`
	Port             string        `mapstructure:"port"`
	LogLevel         string        `mapstructure:"log_level"`
}

// EnvPrefix is prepended to every environment override, e.g. MANGATL_ENDPOINT.
const EnvPrefix = "MANGATL"

// New returns a viper instance with defaults, env overrides and the
// optional config file wired in. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("endpoint", upload.DefaultEndpoint)
	v.SetDefault("engine", string(models.DefaultEngine))
	v.SetDefault("max_file_size", selection.DefaultMaxSize)
	v.SetDefault("upload_timeout", 10*time.Minute)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("fetch_concurrency", 4)
	v.SetDefault("thumbnail_size", 320)
	v.SetDefault("theme_file", theme.DefaultPath())
	v.SetDefault("port", "8888")
	v.SetDefault("log_level", "info")

	v.SetConfigType("yaml")
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/mangatl")
		}
		v.AddConfigPath(".")
		v.SetConfigName("mangatl")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file if present and decodes the result.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := models.ParseEngine(c.Engine); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative")
	}
	return nil
}
