// Package theme holds the bundled and user-supplied page themes, the CSS
// custom-property rewriting used for color overrides, and the HTTP
// handler that serves theme stylesheets to the browser.
package theme

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/mediatheme/internal/event"
	"go.uber.org/zap"
)

// TopicThemeReloaded is published when a user theme file changes on disk.
const TopicThemeReloaded = "theme.reloaded"

// Theme sources.
const (
	SourceBundled = "bundled"
	SourceUser    = "user"
)

// ErrUnknownTheme is returned for ids that are not registered.
var ErrUnknownTheme = errors.New("unknown theme")

// UnknownThemeError names the id that was not found.
type UnknownThemeError struct {
	ID string
}

func (e *UnknownThemeError) Error() string {
	return fmt.Sprintf("theme %q does not exist", e.ID)
}

func (e *UnknownThemeError) Unwrap() error { return ErrUnknownTheme }

// Theme describes one registered theme.
type Theme struct {
	ID       string    `json:"id" example:"dark-modern"`
	Name     string    `json:"name" example:"Dark Modern"`
	Category string    `json:"category" example:"dark"`
	File     string    `json:"file" example:"themes/dark-modern.css"`
	Source   string    `json:"source" example:"bundled"`
	ModTime  time.Time `json:"-"`

	path string
	css  string
}

// ReloadedEvent is the payload of theme.reloaded.
type ReloadedEvent struct {
	IDs []string `json:"ids"`
}

// categoryPattern reads "@category <name>" from a theme's leading comment.
var categoryPattern = regexp.MustCompile(`@category\s+([A-Za-z0-9_-]+)`)

// idPattern limits theme ids to safe file stems.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Registry resolves theme ids to CSS.
// Resolution order:
//  1. User themes directory (themes.dir)
//  2. Embedded/bundled themes
//
// A user file named like a bundled theme overrides its CSS but keeps the
// bundled display name and category.
type Registry struct {
	mu     sync.RWMutex
	dir    string
	user   map[string]Theme
	logger *zap.Logger
	bus    event.Publisher
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDir sets the user themes directory.
func WithDir(dir string) RegistryOption {
	return func(r *Registry) { r.dir = dir }
}

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithPublisher publishes theme.reloaded to bus.
func WithPublisher(bus event.Publisher) RegistryOption {
	return func(r *Registry) { r.bus = bus }
}

// NewRegistry creates a registry and loads the user themes directory.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		user:   map[string]Theme{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := r.Reload(); err != nil {
		r.logger.Warn("loading user themes failed", zap.String("dir", r.dir), zap.Error(err))
	}
	return r
}

// Dir returns the user themes directory, empty when only bundled themes
// are served.
func (r *Registry) Dir() string { return r.dir }

// Reload rescans the user themes directory and returns the ids whose CSS
// changed, appeared, or disappeared.
func (r *Registry) Reload() ([]string, error) {
	if r.dir == "" {
		return nil, nil
	}

	loaded := map[string]Theme{}
	entries, err := os.ReadDir(r.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".css" {
			continue
		}
		id := strings.TrimSuffix(name, ".css")
		if !idPattern.MatchString(id) {
			r.logger.Debug("skipping theme file with unsupported name", zap.String("file", name))
			continue
		}
		t, err := loadUserTheme(id, filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn("failed to load user theme", zap.String("theme", id), zap.Error(err))
			continue
		}
		loaded[id] = t
	}

	r.mu.Lock()
	changed := diffThemes(r.user, loaded)
	r.user = loaded
	r.mu.Unlock()

	if len(changed) > 0 {
		r.logger.Info("user themes loaded", zap.String("dir", r.dir), zap.Strings("changed", changed))
	}
	return changed, nil
}

func loadUserTheme(id, path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Theme{}, err
	}
	css := string(data)

	t := Theme{
		ID:       id,
		Name:     displayName(id),
		Category: "custom",
		File:     "themes/" + id + ".css",
		Source:   SourceUser,
		ModTime:  info.ModTime(),
		path:     path,
		css:      css,
	}
	if m := categoryPattern.FindStringSubmatch(css); m != nil {
		t.Category = m[1]
	}
	if b, ok := bundled[id]; ok {
		t.Name, t.Category = b.Name, b.Category
	}
	return t, nil
}

func displayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func diffThemes(old, cur map[string]Theme) []string {
	var changed []string
	for id, t := range cur {
		if o, ok := old[id]; !ok || o.css != t.css {
			changed = append(changed, id)
		}
	}
	for id := range old {
		if _, ok := cur[id]; !ok {
			changed = append(changed, id)
		}
	}
	sort.Strings(changed)
	return changed
}

// Get returns the theme registered under id.
func (r *Registry) Get(id string) (Theme, error) {
	r.mu.RLock()
	u, ok := r.user[id]
	r.mu.RUnlock()
	if ok {
		return u, nil
	}
	if b, ok := bundled[id]; ok {
		return b, nil
	}
	return Theme{}, &UnknownThemeError{ID: id}
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// List returns all registered themes sorted by id.
func (r *Registry) List() []Theme {
	seen := map[string]Theme{}
	for id, t := range bundled {
		seen[id] = t
	}
	r.mu.RLock()
	for id, t := range r.user {
		seen[id] = t
	}
	r.mu.RUnlock()

	out := make([]Theme, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CSS returns the stylesheet text for id.
func (r *Registry) CSS(_ context.Context, id string) (string, error) {
	t, err := r.Get(id)
	if err != nil {
		return "", err
	}
	if t.Source == SourceUser {
		return t.css, nil
	}
	css, ok := GetEmbeddedTheme(id)
	if !ok {
		return "", &UnknownThemeError{ID: id}
	}
	return css, nil
}

func (r *Registry) publishReloaded(ctx context.Context, ids []string) {
	if r.bus == nil || len(ids) == 0 {
		return
	}
	_ = r.bus.Publish(ctx, event.Event{
		Topic:   TopicThemeReloaded,
		Source:  "theme",
		Payload: ReloadedEvent{IDs: ids},
	})
}
