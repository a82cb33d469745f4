package configstore

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Theme identifiers accepted for defaultTheme.
const (
	ThemeDarkModern   = "dark-modern"
	ThemeLightElegant = "light-elegant"
	ThemeCustom       = "custom"
)

// ValidDefaultThemes lists the accepted values of defaultTheme.
var ValidDefaultThemes = []string{ThemeDarkModern, ThemeLightElegant, ThemeCustom}

// RequiredKeys must be present in every document accepted by Save.
var RequiredKeys = []string{"enabled", "defaultTheme", "customization", "themes"}

// Document is the live configuration. Unknown keys are preserved so a
// newer admin page can store fields this server does not know about.
type Document map[string]any

// Settings is the typed view of a Document.
type Settings struct {
	Enabled       bool                     `json:"enabled"`
	AutoApply     bool                     `json:"autoApply"`
	DebugMode     bool                     `json:"debugMode"`
	DefaultTheme  string                   `json:"defaultTheme"`
	Customization Customization            `json:"customization"`
	Themes        map[string]ThemeSettings `json:"themes"`
	Performance   Performance              `json:"performance"`
	Advanced      Advanced                 `json:"advanced"`
}

// Customization gates what end users may change.
type Customization struct {
	AllowUserCustomization  bool `json:"allowUserCustomization"`
	AllowThemeSwitching     bool `json:"allowThemeSwitching"`
	AllowColorCustomization bool `json:"allowColorCustomization"`
}

// ThemeSettings holds per-theme state.
type ThemeSettings struct {
	Enabled      bool              `json:"enabled"`
	CustomColors map[string]string `json:"customColors"`
}

// Performance holds timing knobs in milliseconds.
type Performance struct {
	InjectDelay      int  `json:"injectDelay"`
	ObserverThrottle int  `json:"observerThrottle"`
	EnableCache      bool `json:"enableCache"`
	PreloadThemes    bool `json:"preloadThemes"`
}

// Advanced holds rarely changed settings.
type Advanced struct {
	CSSVariablePrefix string `json:"cssVariablePrefix"`
	ForceReinject     bool   `json:"forceReinject"`
	CustomCSS         string `json:"customCSS"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		Enabled:      true,
		AutoApply:    true,
		DebugMode:    false,
		DefaultTheme: ThemeDarkModern,
		Customization: Customization{
			AllowUserCustomization:  true,
			AllowThemeSwitching:     true,
			AllowColorCustomization: true,
		},
		Themes: map[string]ThemeSettings{
			ThemeDarkModern:   {Enabled: true, CustomColors: map[string]string{}},
			ThemeLightElegant: {Enabled: true, CustomColors: map[string]string{}},
		},
		Performance: Performance{
			InjectDelay:      100,
			ObserverThrottle: 50,
			EnableCache:      true,
			PreloadThemes:    false,
		},
		Advanced: Advanced{
			CSSVariablePrefix: "--emby-",
			ForceReinject:     false,
			CustomCSS:         "",
		},
	}
}

// Defaults returns a fresh Document holding DefaultSettings.
func Defaults() Document {
	doc, err := FromSettings(DefaultSettings())
	if err != nil {
		// DefaultSettings is static and always encodes.
		panic(fmt.Sprintf("configstore: encoding defaults: %v", err))
	}
	return doc
}

// FromSettings converts a typed Settings into a Document.
func FromSettings(s Settings) (Document, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// ParseDocument decodes a JSON object. Anything that is not a JSON object
// yields ErrMalformedInput.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrMalformedInput)
	}
	return doc, nil
}

// Settings decodes the typed view. Fields of the wrong type yield
// ErrMalformedInput.
func (d Document) Settings() (Settings, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return s, nil
}

// Validate checks the required keys and the defaultTheme enum.
func (d Document) Validate() error {
	for _, key := range RequiredKeys {
		if v, ok := d[key]; !ok || v == nil {
			return &ValidationError{Field: key, Reason: "required key missing"}
		}
	}

	theme, ok := d["defaultTheme"].(string)
	if !ok || !slices.Contains(ValidDefaultThemes, theme) {
		return &ValidationError{
			Field:  "defaultTheme",
			Reason: fmt.Sprintf("must be one of %v", ValidDefaultThemes),
		}
	}

	for _, key := range []string{"customization", "themes"} {
		if _, ok := d[key].(map[string]any); !ok {
			return &ValidationError{Field: key, Reason: "must be an object"}
		}
	}
	return nil
}

// Repair puts the value from defaults back for every required key that is
// null, of the wrong type, or (for defaultTheme) not an accepted theme. It
// returns the keys it replaced, in RequiredKeys order.
func (d Document) Repair(defaults Document) []string {
	var fixed []string
	for _, key := range RequiredKeys {
		if requiredValueOK(key, d[key]) {
			continue
		}
		d[key] = cloneValue(defaults[key])
		fixed = append(fixed, key)
	}
	return fixed
}

func requiredValueOK(key string, v any) bool {
	switch key {
	case "enabled":
		_, ok := v.(bool)
		return ok
	case "defaultTheme":
		theme, ok := v.(string)
		return ok && slices.Contains(ValidDefaultThemes, theme)
	default:
		_, ok := v.(map[string]any)
		return ok
	}
}

// MergeOver returns a copy of base with overlay applied recursively:
// objects are merged key by key, every other value (scalars, arrays,
// null) replaces the base value outright. Neither input is modified.
func MergeOver(base, overlay Document) Document {
	return Document(mergeMaps(base, overlay))
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range overlay {
		baseObj, baseIsObj := out[k].(map[string]any)
		overObj, overIsObj := v.(map[string]any)
		if baseIsObj && overIsObj {
			out[k] = mergeMaps(baseObj, overObj)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return mergeMaps(t, nil)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
