package clientconfig

import (
	"slices"

	"github.com/HerbHall/mediatheme/internal/theme"
)

// Validator reports whether a raw JSON value is acceptable for its field.
type Validator func(value any) bool

var (
	animationSpeeds = []string{"slow", "normal", "fast"}
	borderRadii     = []string{"small", "medium", "large"}
	cardSpacings    = []string{"compact", "normal", "spacious"}
)

// DefaultValidators returns the per-field validator table. themeExists
// decides which currentTheme values are accepted; nil accepts the bundled
// themes only.
func DefaultValidators(themeExists func(id string) bool) map[string]Validator {
	if themeExists == nil {
		themeExists = func(id string) bool {
			return id == theme.DarkModern || id == theme.LightElegant
		}
	}
	return map[string]Validator{
		"currentTheme": func(v any) bool {
			s, ok := v.(string)
			return ok && themeExists(s)
		},
		"enableCustomization": isBool,
		"debugMode":           isBool,
		"autoApply":           isBool,
		"customColors":        validCustomColors,
		"userPreferences":     validPreferences,
	}
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func validCustomColors(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, c := range m {
		s, ok := c.(string)
		if !ok || !theme.IsValidColor(s) {
			return false
		}
	}
	return true
}

func validPreferences(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return optionalEnum(m["animationSpeed"], animationSpeeds) &&
		optionalEnum(m["borderRadius"], borderRadii) &&
		optionalEnum(m["cardSpacing"], cardSpacings)
}

// optionalEnum accepts an absent or empty value, or one of allowed.
func optionalEnum(v any, allowed []string) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return s == "" || slices.Contains(allowed, s)
}
