package clientconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_SourcePrecedence(t *testing.T) {
	defaults := Defaults().ToMap()
	local := map[string]any{"debugMode": true}
	server := map[string]any{"currentTheme": "light-elegant"}

	merged := Merge(Merge(defaults, local), server)
	cfg, rejected := Validate(merged, DefaultValidators(nil))

	assert.Empty(t, rejected)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, "light-elegant", cfg.CurrentTheme)
	assert.True(t, cfg.AutoApply)
}

func TestMerge_OneLevelDeep(t *testing.T) {
	base := Defaults().ToMap()
	overlay := map[string]any{
		"userPreferences": map[string]any{"cardSpacing": "compact"},
		"advanced":        map[string]any{"injectDelay": float64(250)},
	}

	merged := Merge(base, overlay)

	prefs := merged["userPreferences"].(map[string]any)
	assert.Equal(t, "compact", prefs["cardSpacing"])
	assert.Equal(t, "normal", prefs["animationSpeed"])
	adv := merged["advanced"].(map[string]any)
	assert.Equal(t, float64(250), adv["injectDelay"])
	assert.Equal(t, "--emby-", adv["cssVariablePrefix"])
}

func TestMerge_IgnoresUnknownAndReplacesScalars(t *testing.T) {
	base := map[string]any{"currentTheme": "dark-modern"}
	overlay := map[string]any{
		"currentTheme": "light-elegant",
		"experimental": true,
	}

	merged := Merge(base, overlay)

	assert.Equal(t, "light-elegant", merged["currentTheme"])
	assert.NotContains(t, merged, "experimental")
	assert.Equal(t, "dark-modern", base["currentTheme"], "base must not be modified")
}

func TestMerge_ArraysReplaced(t *testing.T) {
	base := map[string]any{"customColors": map[string]any{"accent-color": "red"}}
	overlay := map[string]any{"customColors": []any{"x"}}

	merged := Merge(base, overlay)

	assert.Equal(t, []any{"x"}, merged["customColors"])
}

func TestValidate_FallsBackPerField(t *testing.T) {
	raw := map[string]any{
		"currentTheme":        "neon",
		"debugMode":           "yes",
		"enableCustomization": false,
		"customColors":        map[string]any{"accent-color": "javascript:alert(1)"},
		"userPreferences":     map[string]any{"animationSpeed": "ludicrous"},
		"autoApply":           false,
	}

	cfg, rejected := Validate(raw, DefaultValidators(nil))

	def := Defaults()
	assert.Equal(t, []string{"currentTheme", "customColors", "debugMode", "userPreferences"}, rejected)
	assert.Equal(t, def.CurrentTheme, cfg.CurrentTheme)
	assert.False(t, cfg.DebugMode)
	assert.False(t, cfg.EnableCustomization)
	assert.False(t, cfg.AutoApply)
	assert.Empty(t, cfg.CustomColors)
	assert.Equal(t, def.UserPreferences, cfg.UserPreferences)
}

func TestValidate_AcceptsValidFields(t *testing.T) {
	raw := map[string]any{
		"customColors":    map[string]any{"accent-color": "#123456", "text-color": "rgb(1, 2, 3)"},
		"userPreferences": map[string]any{"borderRadius": "large"},
		"advanced":        map[string]any{"observerThrottle": float64(10)},
		"version":         "0.9.0",
	}

	cfg, rejected := Validate(raw, DefaultValidators(nil))

	assert.Empty(t, rejected)
	assert.Equal(t, map[string]string{"accent-color": "#123456", "text-color": "rgb(1, 2, 3)"}, cfg.CustomColors)
	assert.Equal(t, "large", cfg.UserPreferences.BorderRadius)
	assert.Equal(t, "normal", cfg.UserPreferences.AnimationSpeed)
	assert.Equal(t, 10, cfg.Advanced.ObserverThrottle)
	assert.Equal(t, 100, cfg.Advanced.InjectDelay)
	assert.Equal(t, "0.9.0", cfg.Version)
}

func TestValidate_WrongTypeWithoutValidator(t *testing.T) {
	raw := map[string]any{
		"advanced":  map[string]any{"injectDelay": "soon"},
		"debugMode": true,
	}

	cfg, rejected := Validate(raw, DefaultValidators(nil))

	assert.Equal(t, []string{"advanced"}, rejected)
	assert.Equal(t, Defaults().Advanced, cfg.Advanced)
	assert.True(t, cfg.DebugMode)
}

func TestValidate_CustomThemeSet(t *testing.T) {
	exists := func(id string) bool { return id == "ocean" }

	cfg, rejected := Validate(map[string]any{"currentTheme": "ocean"}, DefaultValidators(exists))

	require.Empty(t, rejected)
	assert.Equal(t, "ocean", cfg.CurrentTheme)
}

func TestConfig_Clone(t *testing.T) {
	a := Defaults()
	a.CustomColors["accent-color"] = "red"

	b := a.Clone()
	b.CustomColors["accent-color"] = "blue"

	assert.Equal(t, "red", a.CustomColors["accent-color"])
}
