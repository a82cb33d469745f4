package clientconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidExport is returned by Import for data without a config object.
var ErrInvalidExport = errors.New("invalid config export")

// RemoteSource is the server side of the config. *Remote implements it.
type RemoteSource interface {
	Fetch(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, cfg Config) error
}

// Manager loads, validates, and persists the runtime config.
type Manager struct {
	cache      *Cache
	remote     RemoteSource
	validators map[string]Validator
	logger     *zap.Logger
	now        func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRemote mirrors the config to the config API.
func WithRemote(r RemoteSource) ManagerOption {
	return func(m *Manager) { m.remote = r }
}

// WithValidators replaces the validator table.
func WithValidators(v map[string]Validator) ManagerOption {
	return func(m *Manager) { m.validators = v }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now for export timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a manager that caches the config in cache.
func NewManager(cache *Cache, opts ...ManagerOption) *Manager {
	m := &Manager{
		cache:      cache,
		validators: DefaultValidators(nil),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load merges defaults, the cached config, and the server config, in that
// order, and validates the result. It never fails: unreadable sources are
// logged and skipped.
func (m *Manager) Load(ctx context.Context) Config {
	merged := defaultMap()

	if local := m.loadLocal(); local != nil {
		merged = Merge(merged, local)
	}
	if server := m.loadRemote(ctx); server != nil {
		merged = Merge(merged, server)
	}

	cfg, rejected := Validate(merged, m.validators)
	for _, field := range rejected {
		m.logger.Debug("config field failed validation, using default", zap.String("field", field))
	}
	return cfg
}

func (m *Manager) loadLocal() map[string]any {
	if m.cache == nil {
		return nil
	}
	raw, ok, err := m.cache.Get(CacheKey)
	if err != nil {
		m.logger.Error("reading cached config failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	local := map[string]any{}
	if err := json.Unmarshal(raw, &local); err != nil {
		m.logger.Error("cached config is not a JSON object", zap.Error(err))
		return nil
	}
	return local
}

func (m *Manager) loadRemote(ctx context.Context) map[string]any {
	if m.remote == nil {
		return nil
	}
	server, err := m.remote.Fetch(ctx)
	if err != nil {
		m.logger.Debug("server config unavailable", zap.Error(err))
		return nil
	}
	return server
}

// Save validates cfg, writes it to the cache, and mirrors it to the server.
// A cache failure is returned; a server failure is only logged.
func (m *Manager) Save(ctx context.Context, cfg Config) (Config, error) {
	validated, rejected := Validate(cfg.ToMap(), m.validators)
	for _, field := range rejected {
		m.logger.Debug("config field failed validation, using default", zap.String("field", field))
	}

	if m.cache != nil {
		if err := m.cache.Set(CacheKey, validated); err != nil {
			return validated, fmt.Errorf("caching config: %w", err)
		}
	}
	if m.remote != nil {
		if err := m.remote.Save(ctx, validated); err != nil {
			m.logger.Debug("saving config to server failed", zap.Error(err))
		}
	}
	return validated, nil
}

// ClearCache drops the locally cached config so the next Load sees only
// the defaults and the server config.
func (m *Manager) ClearCache() error {
	if m.cache == nil {
		return nil
	}
	if err := m.cache.Remove(CacheKey); err != nil {
		return fmt.Errorf("clearing cached config: %w", err)
	}
	return nil
}

// Reset saves and returns the default config.
func (m *Manager) Reset(ctx context.Context) (Config, error) {
	return m.Save(ctx, Defaults())
}

// Export is the document written by Export and read by Import.
type Export struct {
	Version    string `json:"version"`
	ExportDate string `json:"exportDate"`
	Config     Config `json:"config"`
}

// Export returns the loaded config wrapped with its version and the
// export time, as indented JSON.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	cfg := m.Load(ctx)
	return json.MarshalIndent(Export{
		Version:    cfg.Version,
		ExportDate: m.now().UTC().Format(time.RFC3339),
		Config:     cfg,
	}, "", "  ")
}

// Import validates and saves the config carried by an export document.
func (m *Manager) Import(ctx context.Context, data []byte) (Config, error) {
	var doc struct {
		Version string         `json:"version"`
		Config  map[string]any `json:"config"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	if doc.Config == nil {
		return Config{}, fmt.Errorf("%w: missing config", ErrInvalidExport)
	}
	if doc.Version != "" && doc.Version != Version {
		m.logger.Debug("importing config from a different version",
			zap.String("version", doc.Version),
			zap.String("current", Version),
		)
	}

	cfg, _ := Validate(doc.Config, m.validators)
	return m.Save(ctx, cfg)
}

// GetValue returns the value at a dot-separated path of the loaded config,
// e.g. "userPreferences.cardSpacing".
func (m *Manager) GetValue(ctx context.Context, path string) (any, bool) {
	var current any = m.Load(ctx).ToMap()
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValue sets the value at a dot-separated path and saves the result.
// Missing intermediate objects are created. The saved config is returned;
// a value that fails validation leaves that field at its default.
func (m *Manager) SetValue(ctx context.Context, path string, value any) (Config, error) {
	root := m.Load(ctx).ToMap()
	keys := strings.Split(path, ".")

	obj := root
	for _, key := range keys[:len(keys)-1] {
		next, ok := obj[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			obj[key] = next
		}
		obj = next
	}
	obj[keys[len(keys)-1]] = value

	cfg, _ := Validate(root, m.validators)
	return m.Save(ctx, cfg)
}
