package theme

import (
	"embed"
	"io/fs"
	"path/filepath"
	"strings"
)

// EmbeddedThemes contains all bundled theme CSS files.
//
//go:embed themes/*.css
var EmbeddedThemes embed.FS

// Bundled theme identifiers.
const (
	DarkModern   = "dark-modern"
	LightElegant = "light-elegant"
)

// DefaultThemeID is applied when no theme has been chosen.
const DefaultThemeID = DarkModern

// bundled carries display metadata for the embedded themes.
var bundled = map[string]Theme{
	DarkModern:   {ID: DarkModern, Name: "Dark Modern", Category: "dark", File: "themes/dark-modern.css", Source: SourceBundled},
	LightElegant: {ID: LightElegant, Name: "Light Elegant", Category: "light", File: "themes/light-elegant.css", Source: SourceBundled},
}

// GetEmbeddedTheme retrieves a bundled theme's CSS by id.
func GetEmbeddedTheme(id string) (string, bool) {
	data, err := EmbeddedThemes.ReadFile("themes/" + id + ".css")
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ListEmbeddedThemes returns ids of all embedded themes.
func ListEmbeddedThemes() []string {
	entries, err := fs.ReadDir(EmbeddedThemes, "themes")
	if err != nil {
		return []string{DarkModern, LightElegant}
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") {
			continue
		}
		if ext := filepath.Ext(name); ext == ".css" {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	return ids
}
