package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Timer    TimerConfig    `mapstructure:"timer"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Screen   ScreenConfig   `mapstructure:"screen"`
	S3       S3Config       `mapstructure:"s3"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig selects the document store. Driver is "mongo" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// StoreConfig holds the two leading segments of every workout path.
type StoreConfig struct {
	Namespace string `mapstructure:"namespace"`
	AppID     string `mapstructure:"app_id"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type TimerConfig struct {
	DefaultRest time.Duration `mapstructure:"default_rest"`
	Tick        time.Duration `mapstructure:"tick"`
}

type SyncConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ScreenConfig controls eviction of screens nobody uses. A zero
// IdleTimeout keeps screens open until sign-out.
type ScreenConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// S3Config is optional; plan export is disabled without a bucket.
type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	JSON      bool   `mapstructure:"json"`
	File      string `mapstructure:"file"` // empty: stdout only
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// LoadConfig reads config.yaml from path, then environment variables.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Every key needs a default, otherwise AutomaticEnv cannot see it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.name", "workym")
	v.SetDefault("store.namespace", "artifacts")
	v.SetDefault("store.app_id", "workym-elite-final")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "720h")
	v.SetDefault("timer.default_rest", "60s")
	v.SetDefault("timer.tick", "1s")
	v.SetDefault("sync.write_timeout", "10s")
	v.SetDefault("screen.idle_timeout", "30m")
	v.SetDefault("screen.sweep_interval", "1m")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", "15m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
}

// Validate checks the values the server cannot start without.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Store.Namespace == "" || c.Store.AppID == "" {
		return errors.New("store.namespace and store.app_id are required")
	}
	if c.Timer.DefaultRest < time.Second {
		return fmt.Errorf("timer.default_rest must be at least 1s, got %s", c.Timer.DefaultRest)
	}
	if c.Timer.Tick <= 0 {
		return fmt.Errorf("timer.tick must be positive, got %s", c.Timer.Tick)
	}
	if c.Screen.IdleTimeout < 0 {
		return fmt.Errorf("screen.idle_timeout must not be negative, got %s", c.Screen.IdleTimeout)
	}
	if c.Screen.IdleTimeout > 0 && c.Screen.SweepInterval <= 0 {
		return fmt.Errorf("screen.sweep_interval must be positive, got %s", c.Screen.SweepInterval)
	}
	return nil
}

// DefaultRestSeconds returns the default rest duration in whole seconds.
func (c TimerConfig) DefaultRestSeconds() int {
	return int(c.DefaultRest / time.Second)
}

// ExportEnabled reports whether an S3 bucket is configured.
func (c S3Config) ExportEnabled() bool {
	return c.BucketName != ""
}
