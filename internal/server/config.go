package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultBasePath is the URL prefix every add-on route lives under.
const DefaultBasePath = "/emby-ui-plugin"

// Config holds the server configuration.
type Config struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	BasePath       string  `mapstructure:"base_path"`
	DevMode        bool    `mapstructure:"dev_mode"`
	ReadOnly       bool    `mapstructure:"read_only"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Base returns the base path without a trailing slash.
func (c *Config) Base() string {
	if c.BasePath == "" {
		return DefaultBasePath
	}
	return "/" + strings.Trim(c.BasePath, "/")
}

// APIPath returns the config API prefix, {base}/api/config.
func (c *Config) APIPath() string {
	return c.Base() + "/api/config"
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8097)
	v.SetDefault("server.base_path", DefaultBasePath)
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.plugin_log", true)
	v.SetDefault("store.config_dir", "/config/emby-ui-plugin")
	v.SetDefault("store.max_backups", 10)
	v.SetDefault("store.watch", true)
	v.SetDefault("themes.dir", "")
	v.SetDefault("themes.watch", true)
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.upstream", "http://127.0.0.1:8096")
	v.SetDefault("client.cache_path", "")
	v.SetDefault("client.api_url", "http://127.0.0.1:8097/emby-ui-plugin/api/config")
	v.SetDefault("client.timeout", "5s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mediatheme")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mediatheme")
	}

	// Environment variable support: MT_SERVER_PORT=9090
	v.SetEnvPrefix("MT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	// The client cache lives beside the store unless placed explicitly.
	if v.GetString("client.cache_path") == "" {
		v.Set("client.cache_path", filepath.Join(v.GetString("store.config_dir"), "client-cache.json"))
	}

	return v, nil
}
