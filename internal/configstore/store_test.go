package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/mediatheme/internal/event"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithLogger(zap.NewNop()),
		WithClock(stepClock(time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local))),
	}, opts...)
	s, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func readLive(t *testing.T, s *Store) Document {
	t.Helper()
	raw, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		t.Fatalf("reading live config: %v", err)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("parsing live config: %v", err)
	}
	return doc
}

func withTheme(theme string) Document {
	doc := Defaults()
	doc["defaultTheme"] = theme
	return doc
}

func TestNew_CreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cfg")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if info, err := os.Stat(s.BackupDir()); err != nil || !info.IsDir() {
		t.Fatalf("backup dir not created: %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)

	doc := s.Load(context.Background())
	if doc["defaultTheme"] != ThemeDarkModern {
		t.Errorf("defaultTheme = %v, want %s", doc["defaultTheme"], ThemeDarkModern)
	}
	if doc["enabled"] != true {
		t.Errorf("enabled = %v, want true", doc["enabled"])
	}
}

func TestLoad_MalformedFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.ConfigPath(), []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := s.Load(context.Background())
	if doc["defaultTheme"] != ThemeDarkModern {
		t.Errorf("defaultTheme = %v, want default", doc["defaultTheme"])
	}
}

func TestLoad_BackfillsMissingKeys(t *testing.T) {
	s := newTestStore(t)
	stored := `{"enabled": false, "defaultTheme": "light-elegant", "customization": {"allowThemeSwitching": false}, "experimental": 1}`
	if err := os.WriteFile(s.ConfigPath(), []byte(stored), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := s.Load(context.Background())

	if doc["enabled"] != false {
		t.Errorf("enabled = %v, want stored false", doc["enabled"])
	}
	if doc["defaultTheme"] != ThemeLightElegant {
		t.Errorf("defaultTheme = %v, want light-elegant", doc["defaultTheme"])
	}
	themes, ok := doc["themes"].(map[string]any)
	if !ok || themes[ThemeDarkModern] == nil {
		t.Errorf("themes not backfilled: %v", doc["themes"])
	}
	cust := doc["customization"].(map[string]any)
	if cust["allowThemeSwitching"] != false {
		t.Errorf("allowThemeSwitching = %v, want stored false", cust["allowThemeSwitching"])
	}
	if cust["allowColorCustomization"] != true {
		t.Errorf("allowColorCustomization = %v, want default true", cust["allowColorCustomization"])
	}
	if doc["experimental"] != float64(1) {
		t.Errorf("unknown key not preserved: %v", doc["experimental"])
	}
}

func TestLoad_RepairsInvalidRequiredKeys(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := newTestStore(t, WithLogger(zap.New(core)))
	stored := `{"enabled": "yes", "themes": null, "customization": "x", "defaultTheme": "neon", "debugMode": true}`
	if err := os.WriteFile(s.ConfigPath(), []byte(stored), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := s.Load(context.Background())

	if err := doc.Validate(); err != nil {
		t.Fatalf("loaded document fails Validate: %v", err)
	}
	if doc["enabled"] != true {
		t.Errorf("enabled = %v, want default true", doc["enabled"])
	}
	if doc["defaultTheme"] != ThemeDarkModern {
		t.Errorf("defaultTheme = %v, want %s", doc["defaultTheme"], ThemeDarkModern)
	}
	if _, ok := doc["themes"].(map[string]any)[ThemeLightElegant]; !ok {
		t.Errorf("themes = %v, want defaults", doc["themes"])
	}
	if doc["debugMode"] != true {
		t.Errorf("debugMode = %v, want stored true kept", doc["debugMode"])
	}

	warned := logs.FilterMessage("config has invalid required keys, using defaults for them").All()
	if len(warned) != 1 {
		t.Fatalf("got %d repair warnings, want 1", len(warned))
	}
	keys, _ := warned[0].ContextMap()["keys"].([]interface{})
	if len(keys) != len(RequiredKeys) {
		t.Errorf("repaired keys = %v, want all %d required keys", keys, len(RequiredKeys))
	}
}

func TestLoad_ValidFileIsNotRepaired(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := newTestStore(t, WithLogger(zap.New(core)))
	if err := s.Save(context.Background(), withTheme(ThemeCustom)); err != nil {
		t.Fatal(err)
	}

	if doc := s.Load(context.Background()); doc["defaultTheme"] != ThemeCustom {
		t.Errorf("defaultTheme = %v, want custom", doc["defaultTheme"])
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected warnings: %v", logs.All())
	}
}

func TestSave_FirstWriteHasNoBackup(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(context.Background(), withTheme(ThemeLightElegant)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	backups, err := s.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("got %d backups after first save, want 0", len(backups))
	}
	if got := readLive(t, s)["defaultTheme"]; got != ThemeLightElegant {
		t.Errorf("live defaultTheme = %v, want light-elegant", got)
	}
}

func TestSave_SnapshotsPreviousContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, withTheme(ThemeLightElegant)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, withTheme(ThemeCustom)); err != nil {
		t.Fatal(err)
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want 1", len(backups))
	}
	raw, err := os.ReadFile(filepath.Join(s.BackupDir(), backups[0].Filename))
	if err != nil {
		t.Fatal(err)
	}
	var snap map[string]any
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if snap["defaultTheme"] != ThemeLightElegant {
		t.Errorf("snapshot defaultTheme = %v, want previous light-elegant", snap["defaultTheme"])
	}
}

func TestSave_InvalidThemeLeavesLiveUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, withTheme(ThemeLightElegant)); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(s.ConfigPath())

	err := s.Save(ctx, withTheme("neon"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	after, _ := os.ReadFile(s.ConfigPath())
	if string(before) != string(after) {
		t.Error("live config changed after rejected save")
	}
	backups, _ := s.ListBackups(ctx)
	if len(backups) != 0 {
		t.Errorf("rejected save created %d backups", len(backups))
	}
}

func TestSave_MissingRequiredKey(t *testing.T) {
	s := newTestStore(t)
	doc := Defaults()
	delete(doc, "themes")

	err := s.Save(context.Background(), doc)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "themes" {
		t.Fatalf("err = %v, want ValidationError on themes", err)
	}
	if _, statErr := os.Stat(s.ConfigPath()); !os.IsNotExist(statErr) {
		t.Error("live config written despite validation failure")
	}
}

func TestSave_RetainsMostRecentBackups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	themes := []string{ThemeDarkModern, ThemeLightElegant, ThemeCustom}
	for i := range 12 {
		if err := s.Save(ctx, withTheme(themes[i%len(themes)])); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != DefaultMaxBackups {
		t.Fatalf("got %d backups, want %d", len(backups), DefaultMaxBackups)
	}

	// Saves 2..12 each snapshot once: 11 snapshots at 12:00:00..12:00:10.
	// The oldest one is pruned.
	if got, want := backups[0].Filename, "config_backup_2026-10-19_12-00-10.json"; got != want {
		t.Errorf("newest = %q, want %q", got, want)
	}
	if got, want := backups[len(backups)-1].Filename, "config_backup_2026-10-19_12-00-01.json"; got != want {
		t.Errorf("oldest = %q, want %q", got, want)
	}
	for i := 1; i < len(backups); i++ {
		if !backups[i-1].Created.After(backups[i].Created) {
			t.Errorf("backups not sorted newest first at %d", i)
		}
	}
}

func TestSave_SameSecondSnapshotsDoNotCollide(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	for range 4 {
		if err := s.Save(ctx, Defaults()); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 3 {
		t.Fatalf("got %d backups, want 3", len(backups))
	}
	seen := map[string]bool{}
	for _, b := range backups {
		if seen[b.Filename] {
			t.Errorf("duplicate backup %q", b.Filename)
		}
		seen[b.Filename] = true
	}
	if !seen["config_backup_2026-10-19_12-00-00-3.json"] {
		t.Errorf("expected -3 suffixed snapshot, got %v", seen)
	}
}

func TestWithMaxBackups(t *testing.T) {
	s := newTestStore(t, WithMaxBackups(2))
	ctx := context.Background()

	for range 5 {
		if err := s.Save(ctx, Defaults()); err != nil {
			t.Fatal(err)
		}
	}
	backups, _ := s.ListBackups(ctx)
	if len(backups) != 2 {
		t.Errorf("got %d backups, want 2", len(backups))
	}
}

func TestRestoreBackup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, withTheme(ThemeLightElegant)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, withTheme(ThemeCustom)); err != nil {
		t.Fatal(err)
	}
	backups, _ := s.ListBackups(ctx)
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want 1", len(backups))
	}

	if err := s.RestoreBackup(ctx, backups[0].Filename); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if got := readLive(t, s)["defaultTheme"]; got != ThemeLightElegant {
		t.Errorf("restored defaultTheme = %v, want light-elegant", got)
	}
	// Restore does not snapshot.
	after, _ := s.ListBackups(ctx)
	if len(after) != 1 {
		t.Errorf("backups after restore = %d, want 1", len(after))
	}
}

func TestRestoreBackup_UnknownLeavesLiveUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, withTheme(ThemeLightElegant)); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(s.ConfigPath())

	err := s.RestoreBackup(ctx, "config_backup_2000-01-01_00-00-00.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	after, _ := os.ReadFile(s.ConfigPath())
	if string(before) != string(after) {
		t.Error("live config changed after failed restore")
	}
}

func TestRestoreBackup_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	secret := filepath.Join(s.Dir(), "secret.json")
	if err := os.WriteFile(secret, []byte(`{"defaultTheme":"custom"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../secret.json", "..%2Fsecret.json", "../config.json"} {
		if err := s.RestoreBackup(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Errorf("RestoreBackup(%q) = %v, want ErrNotFound", name, err)
		}
	}
	if _, err := os.Stat(s.ConfigPath()); !os.IsNotExist(err) {
		t.Error("traversal restore wrote the live config")
	}
}

func TestRestoreBackup_MalformedSnapshot(t *testing.T) {
	s := newTestStore(t)
	name := "config_backup_2026-10-19_08-00-00.json"
	if err := os.WriteFile(filepath.Join(s.BackupDir(), name), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.RestoreBackup(context.Background(), name); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestDeleteBackup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 3 {
		if err := s.Save(ctx, Defaults()); err != nil {
			t.Fatal(err)
		}
	}
	backups, _ := s.ListBackups(ctx)
	if len(backups) != 2 {
		t.Fatalf("got %d backups, want 2", len(backups))
	}

	if err := s.DeleteBackup(ctx, backups[0].Filename); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	after, _ := s.ListBackups(ctx)
	if len(after) != 1 || after[0].Filename != backups[1].Filename {
		t.Errorf("remaining = %v, want only %s", after, backups[1].Filename)
	}

	if err := s.DeleteBackup(ctx, backups[0].Filename); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteBackup(ctx, "../config.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("traversal delete err = %v, want ErrNotFound", err)
	}
}

func TestStore_PublishesEvents(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var topics []string
	bus.SubscribeAll(func(_ context.Context, e event.Event) { topics = append(topics, e.Topic) })

	s := newTestStore(t, WithPublisher(bus))
	ctx := context.Background()

	_ = s.Save(ctx, Defaults())
	_ = s.Save(ctx, Defaults())
	backups, _ := s.ListBackups(ctx)
	_ = s.RestoreBackup(ctx, backups[0].Filename)
	_ = s.DeleteBackup(ctx, backups[0].Filename)
	_ = s.Save(ctx, withTheme("neon"))

	want := []string{TopicConfigSaved, TopicConfigSaved, TopicConfigRestored, TopicBackupDeleted}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}

func TestCheckWritable(t *testing.T) {
	s := newTestStore(t)
	if err := s.CheckWritable(context.Background()); err != nil {
		t.Fatalf("CheckWritable() = %v, want nil", err)
	}

	if err := os.RemoveAll(s.Dir()); err != nil {
		t.Fatal(err)
	}
	err := s.CheckWritable(context.Background())
	if !errors.Is(err, ErrIO) {
		t.Errorf("CheckWritable() after removing dir = %v, want ErrIO", err)
	}
}
