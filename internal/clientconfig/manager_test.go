package clientconfig

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory RemoteSource.
type fakeRemote struct {
	doc      map[string]any
	fetchErr error
	saveErr  error
	saved    []Config
}

func (f *fakeRemote) Fetch(context.Context) (map[string]any, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.doc, nil
}

func (f *fakeRemote) Save(_ context.Context, cfg Config) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cfg)
	return nil
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *Cache) {
	t.Helper()
	cache := NewCache(filepath.Join(t.TempDir(), "client-cache.json"))
	return NewManager(cache, opts...), cache
}

func TestManager_LoadDefaults(t *testing.T) {
	m, _ := newTestManager(t)

	cfg := m.Load(context.Background())

	assert.Equal(t, Defaults(), cfg)
}

func TestManager_LoadMergesLocalAndServer(t *testing.T) {
	remote := &fakeRemote{doc: map[string]any{"currentTheme": "light-elegant"}}
	m, cache := newTestManager(t, WithRemote(remote))
	require.NoError(t, cache.Set(CacheKey, map[string]any{"debugMode": true, "currentTheme": "dark-modern"}))

	cfg := m.Load(context.Background())

	assert.True(t, cfg.DebugMode)
	assert.Equal(t, "light-elegant", cfg.CurrentTheme)
}

func TestManager_LoadServerUnavailable(t *testing.T) {
	remote := &fakeRemote{fetchErr: ErrNetworkUnavailable}
	m, cache := newTestManager(t, WithRemote(remote))
	require.NoError(t, cache.Set(CacheKey, map[string]any{"currentTheme": "light-elegant"}))

	cfg := m.Load(context.Background())

	assert.Equal(t, "light-elegant", cfg.CurrentTheme)
}

func TestManager_LoadCorruptCache(t *testing.T) {
	m, cache := newTestManager(t)
	require.NoError(t, os.WriteFile(cache.Path(), []byte("{not json"), 0o644))

	cfg := m.Load(context.Background())

	assert.Equal(t, Defaults(), cfg)
}

func TestManager_SaveCachesAndMirrors(t *testing.T) {
	remote := &fakeRemote{}
	m, _ := newTestManager(t, WithRemote(remote))

	cfg := Defaults()
	cfg.CurrentTheme = "light-elegant"
	cfg.CustomColors["accent-color"] = "javascript:alert(1)"

	saved, err := m.Save(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "light-elegant", saved.CurrentTheme)
	assert.Empty(t, saved.CustomColors, "invalid colors fall back to the default")
	require.Len(t, remote.saved, 1)
	assert.Equal(t, saved, remote.saved[0])

	// A fresh manager over the same cache sees the saved theme.
	again := NewManager(m.cache)
	assert.Equal(t, "light-elegant", again.Load(context.Background()).CurrentTheme)
}

func TestManager_SaveToleratesServerFailure(t *testing.T) {
	remote := &fakeRemote{saveErr: errors.New("boom")}
	m, _ := newTestManager(t, WithRemote(remote))

	cfg := Defaults()
	cfg.DebugMode = true
	_, err := m.Save(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, m.Load(context.Background()).DebugMode)
}

func TestManager_SaveCacheFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	m := NewManager(NewCache(filepath.Join(blocker, "cache.json")))

	_, err := m.Save(context.Background(), Defaults())

	assert.Error(t, err)
}

func TestManager_Reset(t *testing.T) {
	m, cache := newTestManager(t)
	require.NoError(t, cache.Set(CacheKey, map[string]any{"debugMode": true}))

	cfg, err := m.Reset(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Defaults(), cfg)
	assert.False(t, m.Load(context.Background()).DebugMode)
}

func TestManager_ExportImport(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	m, cache := newTestManager(t, WithClock(func() time.Time { return at }))
	require.NoError(t, cache.Set(CacheKey, map[string]any{"currentTheme": "light-elegant"}))

	data, err := m.Export(context.Background())
	require.NoError(t, err)

	var exp Export
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, Version, exp.Version)
	assert.Equal(t, "2026-10-19T12:00:00Z", exp.ExportDate)
	assert.Equal(t, "light-elegant", exp.Config.CurrentTheme)

	other, _ := newTestManager(t)
	cfg, err := other.Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "light-elegant", cfg.CurrentTheme)
	assert.Equal(t, "light-elegant", other.Load(context.Background()).CurrentTheme)
}

func TestManager_ImportRejectsBadData(t *testing.T) {
	m, _ := newTestManager(t)

	for _, data := range []string{`not json`, `{"version":"1.0.0"}`, `{"config":null}`} {
		_, err := m.Import(context.Background(), []byte(data))
		assert.ErrorIs(t, err, ErrInvalidExport, data)
	}
}

func TestManager_GetSetValue(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	v, ok := m.GetValue(ctx, "userPreferences.cardSpacing")
	require.True(t, ok)
	assert.Equal(t, "normal", v)

	_, ok = m.GetValue(ctx, "userPreferences.missing")
	assert.False(t, ok)
	_, ok = m.GetValue(ctx, "currentTheme.deeper")
	assert.False(t, ok)

	cfg, err := m.SetValue(ctx, "userPreferences.cardSpacing", "spacious")
	require.NoError(t, err)
	assert.Equal(t, "spacious", cfg.UserPreferences.CardSpacing)

	cfg, err = m.SetValue(ctx, "customColors.accent-color", "#123456")
	require.NoError(t, err)
	assert.Equal(t, "#123456", cfg.CustomColors["accent-color"])

	v, ok = m.GetValue(ctx, "customColors.accent-color")
	require.True(t, ok)
	assert.Equal(t, "#123456", v)
}

func TestManager_SetValueInvalid(t *testing.T) {
	m, _ := newTestManager(t)

	cfg, err := m.SetValue(context.Background(), "currentTheme", "neon")
	require.NoError(t, err)
	assert.Equal(t, Defaults().CurrentTheme, cfg.CurrentTheme)
}

func TestManager_ClearCache(t *testing.T) {
	remote := &fakeRemote{doc: map[string]any{"currentTheme": "light-elegant"}}
	m, cache := newTestManager(t, WithRemote(remote))
	require.NoError(t, cache.Set(CacheKey, map[string]any{"debugMode": true, "currentTheme": "dark-modern"}))
	require.NoError(t, cache.Set("other", "kept"))

	require.NoError(t, m.ClearCache())

	_, ok, err := cache.Get(CacheKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cache.Get("other")
	require.NoError(t, err)
	assert.True(t, ok, "unrelated cache entries survive")

	cfg := m.Load(context.Background())
	assert.False(t, cfg.DebugMode)
	assert.Equal(t, "light-elegant", cfg.CurrentTheme)

	assert.NoError(t, NewManager(nil).ClearCache())
}
