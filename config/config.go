package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

type ValkeyConfig struct {
	Addr []string `mapstructure:"addr"`
	Key  string   `mapstructure:"key"`
}

type Config struct {
	Log struct {
		File       string `mapstructure:"file"`
		Level      string `mapstructure:"level"`
		Console    bool   `mapstructure:"console"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
	} `mapstructure:"log"`
	Bridge struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"bridge"`
	UI struct {
		FrameInterval time.Duration `mapstructure:"frame_interval"`
		SampleBuffer  int           `mapstructure:"sample_buffer"`
		HexColumns    int           `mapstructure:"hex_columns"`
	} `mapstructure:"ui"`
	Archive struct {
		Path   string       `mapstructure:"path"`
		Valkey ValkeyConfig `mapstructure:"valkey"`
	} `mapstructure:"archive"`
	Server struct {
		Host            string    `mapstructure:"host"`
		Port            int       `mapstructure:"port"`
		TLS             TLSConfig `mapstructure:"tls"`
		ShutdownTimeout int       `mapstructure:"shutdown_timeout"` // seconds
	} `mapstructure:"server"`
	Health struct {
		Enabled       bool   `mapstructure:"enabled"`
		Port          int    `mapstructure:"port"`
		ReadinessPath string `mapstructure:"readiness_path"`
		LivenessPath  string `mapstructure:"liveness_path"`
	} `mapstructure:"health"`
	Broker struct {
		Host         string        `mapstructure:"host"`
		Port         int           `mapstructure:"port"`
		Demo         bool          `mapstructure:"demo"`
		DemoInterval time.Duration `mapstructure:"demo_interval"`
	} `mapstructure:"broker"`
}

func Load(cfgFile, env string) (*Config, error) {
	v := viper.New()

	// Default values
	v.SetDefault("log.file", "hammer.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("bridge.poll_interval", "8ms")
	v.SetDefault("ui.frame_interval", "16ms")
	v.SetDefault("ui.sample_buffer", 10)
	v.SetDefault("ui.hex_columns", 16)
	v.SetDefault("archive.path", "hammer_archive.json")
	v.SetDefault("archive.valkey.key", "default")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
	v.SetDefault("health.readiness_path", "/health/ready")
	v.SetDefault("health.liveness_path", "/health/live")
	v.SetDefault("broker.host", "127.0.0.1")
	v.SetDefault("broker.port", 4222)
	v.SetDefault("broker.demo", false)
	v.SetDefault("broker.demo_interval", "1s")

	// If config file passed via CLI flag
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// A missing default config is fine, an explicit one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Merge environment-specific config (config.prod.yaml, etc.)
	if env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		_ = v.MergeInConfig() // optional, ignore error if not found
	}

	// Environment overrides
	v.SetEnvPrefix("HAMMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.UI.SampleBuffer < 1 {
		return nil, fmt.Errorf("ui.sample_buffer must be positive, got %d", cfg.UI.SampleBuffer)
	}
	if cfg.Bridge.PollInterval <= 0 {
		return nil, fmt.Errorf("bridge.poll_interval must be positive, got %s", cfg.Bridge.PollInterval)
	}

	return &cfg, nil
}
