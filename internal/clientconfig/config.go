// Package clientconfig holds the runtime configuration of the theme
// controller: its defaults, per-field validators, the local cache that
// mirrors it between runs, and the client for the server-side config API.
package clientconfig

import (
	"encoding/json"
	"sort"

	"github.com/HerbHall/mediatheme/internal/theme"
)

// CacheKey is the key the runtime config is cached under.
const CacheKey = "emby-ui-enhancer-config"

// Version is written into new configs and exports.
const Version = "1.0.0"

// Config is the controller's runtime configuration.
type Config struct {
	Version             string            `json:"version"`
	CurrentTheme        string            `json:"currentTheme"`
	EnableCustomization bool              `json:"enableCustomization"`
	DebugMode           bool              `json:"debugMode"`
	AutoApply           bool              `json:"autoApply"`
	CustomColors        map[string]string `json:"customColors"`
	UserPreferences     Preferences       `json:"userPreferences"`
	Advanced            Advanced          `json:"advanced"`
}

// Preferences are cosmetic user choices.
type Preferences struct {
	AnimationSpeed string `json:"animationSpeed"`
	BorderRadius   string `json:"borderRadius"`
	CardSpacing    string `json:"cardSpacing"`
}

// Advanced tunes injection timing.
type Advanced struct {
	InjectDelay       int    `json:"injectDelay"`
	ObserverThrottle  int    `json:"observerThrottle"`
	CSSVariablePrefix string `json:"cssVariablePrefix"`
}

// Defaults returns a fresh default config.
func Defaults() Config {
	return Config{
		Version:             Version,
		CurrentTheme:        theme.DefaultThemeID,
		EnableCustomization: true,
		DebugMode:           false,
		AutoApply:           true,
		CustomColors:        map[string]string{},
		UserPreferences: Preferences{
			AnimationSpeed: "normal",
			BorderRadius:   "medium",
			CardSpacing:    "normal",
		},
		Advanced: Advanced{
			InjectDelay:       100,
			ObserverThrottle:  50,
			CSSVariablePrefix: "--emby-",
		},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.CustomColors = make(map[string]string, len(c.CustomColors))
	for k, v := range c.CustomColors {
		out.CustomColors[k] = v
	}
	return out
}

// ToMap returns c in its JSON object form.
func (c Config) ToMap() map[string]any {
	m := map[string]any{}
	data, err := json.Marshal(c)
	if err != nil {
		return m
	}
	_ = json.Unmarshal(data, &m)
	return m
}

// defaultMap is Defaults() in JSON object form. It is the reference for
// which keys exist and which of them are objects.
func defaultMap() map[string]any { return Defaults().ToMap() }

// Merge overlays overlay onto base and returns the result. Only keys known
// to the default config are taken from overlay. Keys whose default is an
// object are merged one level deep; everything else, arrays included, is
// replaced. Neither input is modified.
func Merge(base, overlay map[string]any) map[string]any {
	defaults := defaultMap()
	merged := make(map[string]any, len(base))
	for k, v := range base {
		merged[k] = v
	}

	for key, value := range overlay {
		def, known := defaults[key]
		if !known {
			continue
		}
		if _, isObject := def.(map[string]any); isObject {
			cur, curOK := merged[key].(map[string]any)
			next, nextOK := value.(map[string]any)
			if curOK && nextOK {
				merged[key] = shallowMerge(cur, next)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

func shallowMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Validate builds a Config from raw. Each field that has a validator is
// checked; a field that fails keeps its default and its name is returned
// in rejected. Fields without a validator are taken as is when they decode.
// Unknown keys are ignored.
func Validate(raw map[string]any, validators map[string]Validator) (cfg Config, rejected []string) {
	out := defaultMap()

	for key, value := range raw {
		def, known := out[key]
		if v, ok := validators[key]; ok {
			if !v(value) {
				rejected = append(rejected, key)
				continue
			}
		} else if !known {
			continue
		}
		if defObj, isObject := def.(map[string]any); isObject {
			if obj, ok := value.(map[string]any); ok {
				out[key] = shallowMerge(defObj, obj)
				continue
			}
		}
		out[key] = value
	}

	cfg = Defaults()
	if err := decodeInto(out, &cfg); err != nil {
		// A field of the wrong JSON type slipped past its validator, or had
		// none. Decode field by field so only the bad ones fall back.
		cfg = decodeFields(out, &rejected)
	}
	if cfg.CustomColors == nil {
		cfg.CustomColors = map[string]string{}
	}
	sort.Strings(rejected)
	return cfg, rejected
}

func decodeFields(fields map[string]any, rejected *[]string) Config {
	cfg := Defaults()
	for key, value := range fields {
		trial := cfg
		if err := decodeInto(map[string]any{key: value}, &trial); err != nil {
			*rejected = append(*rejected, key)
			continue
		}
		cfg = trial
	}
	return cfg
}

func decodeInto(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
