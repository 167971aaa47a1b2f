package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

type FirestoreConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type OracleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

type DedupConfig struct {
	AutoRejectThreshold float64 `mapstructure:"auto_reject_threshold"`
	AmbiguousThreshold  float64 `mapstructure:"ambiguous_threshold"`
	UseDatetime         bool    `mapstructure:"use_datetime"`
}

type JobsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
	Workers    int `mapstructure:"workers"`
	MaxRetries int `mapstructure:"max_retries"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Log       LogConfig       `mapstructure:"log"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from the given file path (e.g. "config.yaml").
// If path is empty, it looks for "config.yaml" in the current working
// directory; a missing file is fine, defaults and environment overrides
// (TXF_SERVER_PORT and friends) still apply.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		setDefaults(v)

		v.SetEnvPrefix("TXF")
		v.AutomaticEnv()

		if err = v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && path == "" {
				err = nil
			} else {
				err = fmt.Errorf("read config: %w", err)
				return
			}
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("oracle.enabled", true)
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("dedup.auto_reject_threshold", 0.9)
	v.SetDefault("dedup.ambiguous_threshold", 0.5)
	v.SetDefault("dedup.use_datetime", false)
	v.SetDefault("jobs.buffer_size", 100)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.max_retries", 3)
	v.SetDefault("log.level", "info")
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}
