// Package config loads server settings from an optional YAML file, a .env
// file and STOCKROOM_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	MongoURI string `mapstructure:"mongo_uri"`
	MongoDB  string `mapstructure:"mongo_db"`
}

type AuthConfig struct {
	// JWTSecret overrides the secret stored in the database.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type ScanConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type PushConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Host overrides the Expo push service, e.g. for a relay.
	Host        string `mapstructure:"host"`
	AccessToken string `mapstructure:"access_token"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// Endpoint points at an S3-compatible service instead of AWS.
	Endpoint string `mapstructure:"endpoint"`
	// PublicURL is the base URL objects are served from, e.g. a CDN.
	PublicURL string `mapstructure:"public_url"`
}

// Enabled reports whether profile images should be hosted on S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type LogConfig struct {
	Path string `mapstructure:"path"`
}

type OwnerConfig struct {
	Username string `mapstructure:"username"`
	Name     string `mapstructure:"name"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Push    PushConfig    `mapstructure:"push"`
	S3      S3Config      `mapstructure:"s3"`
	Log     LogConfig     `mapstructure:"log"`
	Owner   OwnerConfig   `mapstructure:"owner"`
}

var defaults = map[string]any{
	"server.addr":          ":8080",
	"storage.driver":       DriverSQLite,
	"storage.path":         "stockroom.sqlite3",
	"storage.mongo_uri":    "mongodb://localhost:27017",
	"storage.mongo_db":     "stockroom",
	"auth.jwt_secret":      "",
	"scan.cooldown":        "2s",
	"push.enabled":         false,
	"push.host":            "",
	"push.access_token":    "",
	"s3.bucket":            "",
	"s3.region":            "us-east-1",
	"s3.access_key_id":     "",
	"s3.secret_access_key": "",
	"s3.endpoint":          "",
	"s3.public_url":        "",
	"log.path":             "",
	"owner.username":       "owner",
	"owner.name":           "Owner",
}

// Load reads configuration. path names a YAML file; when empty,
// stockroom.yaml is looked up in the working directory and skipped if
// absent. A .env file in the working directory is loaded into the
// environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("STOCKROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("stockroom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" || c.Storage.MongoDB == "" {
			return fmt.Errorf("storage.mongo_uri and storage.mongo_db are required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Scan.Cooldown < 0 {
		return fmt.Errorf("scan.cooldown must not be negative")
	}
	return nil
}
