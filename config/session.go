package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
	"github.com/spf13/viper"
)

const DefaultBusURL = "nats://127.0.0.1:4222"

// SessionConfig is how to reach the bus. It is read from the file the user
// attaches to a session entry.
type SessionConfig struct {
	URL            string        `mapstructure:"url"`
	Servers        []string      `mapstructure:"servers"`
	Name           string        `mapstructure:"name"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Token          string        `mapstructure:"token"`
	CredsFile      string        `mapstructure:"creds_file"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

func sessionDefaults(v *viper.Viper) {
	v.SetDefault("url", DefaultBusURL)
	v.SetDefault("name", "hammer")
	v.SetDefault("connect_timeout", "5s")
	v.SetDefault("max_reconnects", 60)
}

// DefaultSession is used when a session entry has no file.
func DefaultSession() *SessionConfig {
	v := viper.New()
	sessionDefaults(v)
	var cfg SessionConfig
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// LoadSession reads a session file. JSON5 (and JSON with comments) is
// accepted next to every format viper understands.
func LoadSession(path string) (*SessionConfig, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSession(), nil
	}

	v := viper.New()
	sessionDefaults(v)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json5", ".jsonc", ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read session config: %w", err)
		}
		plain, err := payloaddecoder.NormalizeJSON5(raw)
		if err != nil {
			return nil, fmt.Errorf("parse session config %s: %w", path, err)
		}
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(plain)); err != nil {
			return nil, fmt.Errorf("parse session config %s: %w", path, err)
		}
	default:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read session config: %w", err)
		}
	}

	var cfg SessionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode session config %s: %w", path, err)
	}
	if cfg.URL == "" && len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("session config %s: no url or servers", path)
	}
	return &cfg, nil
}

// ServerURLs joins url and servers into the comma separated list the client
// expects.
func (c *SessionConfig) ServerURLs() string {
	urls := make([]string, 0, len(c.Servers)+1)
	if c.URL != "" {
		urls = append(urls, c.URL)
	}
	urls = append(urls, c.Servers...)
	return strings.Join(urls, ",")
}
