// Package config provides a Viper-backed configuration accessor and the
// zap logger construction used by every mediatheme component.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config abstracts configuration access. Keys are dotted paths such as
// "store.config_dir".
type Config interface {
	UnmarshalKey(key string, target any) error
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
}

// Compile-time interface guard.
var _ Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
// Returns the concrete type; callers assign to Config where needed.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// UnmarshalKey decodes the section under key into target. Defaults, file
// values, and MT_ environment overrides are merged per leaf; viper's own
// UnmarshalKey returns only the highest layer that holds the section.
func (c *ViperConfig) UnmarshalKey(key string, target any) error {
	var section any = c.v.AllSettings()
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := section.(map[string]any)
		if !ok {
			section = nil
			break
		}
		section = m[part]
	}

	sub := viper.New()
	if m, ok := section.(map[string]any); ok {
		if err := sub.MergeConfigMap(m); err != nil {
			return err
		}
	}
	return sub.Unmarshal(target)
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

// Viper returns the underlying Viper instance for the logger and for
// reporting which file was loaded.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
