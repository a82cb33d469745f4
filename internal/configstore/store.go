// Package configstore persists the add-on configuration as a single JSON
// document with rotating timestamped backups, and exposes it over HTTP.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/HerbHall/mediatheme/internal/event"
	"go.uber.org/zap"
)

// Event topics published by the store.
const (
	TopicConfigSaved    = "config.saved"
	TopicConfigRestored = "config.restored"
	TopicConfigChanged  = "config.changed"
	TopicBackupDeleted  = "config.backup_deleted"
)

const (
	// ConfigFileName is the live document inside the config directory.
	ConfigFileName = "config.json"
	// BackupDirName is the snapshot subdirectory.
	BackupDirName = "backups"

	filePerm = 0o644
	dirPerm  = 0o755
)

// SavedEvent is the payload of config.saved.
type SavedEvent struct {
	Backup string `json:"backup,omitempty"` // snapshot taken before the write, empty on first save
}

// BackupEvent is the payload of config.restored and config.backup_deleted.
type BackupEvent struct {
	Filename string `json:"filename"`
}

// Store owns one config directory. Writes are serialized in-process;
// concurrent processes writing the same directory race, last writer wins.
type Store struct {
	dir        string
	maxBackups int
	logger     *zap.Logger
	bus        event.Publisher
	now        func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMaxBackups overrides the snapshot retention cap.
func WithMaxBackups(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBackups = n
		}
	}
}

// WithPublisher publishes store events to bus.
func WithPublisher(bus event.Publisher) Option {
	return func(s *Store) { s.bus = bus }
}

// WithClock replaces time.Now for snapshot naming.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at dir, creating the directory and its
// backups subdirectory when missing.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:        dir,
		maxBackups: DefaultMaxBackups,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.BackupDir(), dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating config directory: %v", ErrIO, err)
	}
	return s, nil
}

// Dir returns the config directory.
func (s *Store) Dir() string { return s.dir }

// ConfigPath returns the path of the live document.
func (s *Store) ConfigPath() string { return filepath.Join(s.dir, ConfigFileName) }

// BackupDir returns the snapshot directory.
func (s *Store) BackupDir() string { return filepath.Join(s.dir, BackupDirName) }

// Load returns the stored document merged over the defaults. It never
// fails: a missing file yields defaults silently, an unreadable or
// unparsable one is logged and yields defaults. Required keys that are null,
// mistyped, or name an unknown theme fall back to their defaults, so the
// result always passes Validate.
func (s *Store) Load(_ context.Context) Document {
	raw, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("reading config failed, using defaults",
				zap.String("path", s.ConfigPath()), zap.Error(err))
		}
		return Defaults()
	}

	stored, err := ParseDocument(raw)
	if err != nil {
		s.logger.Warn("config file is malformed, using defaults",
			zap.String("path", s.ConfigPath()), zap.Error(err))
		return Defaults()
	}
	defaults := Defaults()
	doc := MergeOver(defaults, stored)
	if fixed := doc.Repair(defaults); len(fixed) > 0 {
		s.logger.Warn("config has invalid required keys, using defaults for them",
			zap.String("path", s.ConfigPath()), zap.Strings("keys", fixed))
	}
	return doc
}

// Save validates doc, snapshots the current live file, prunes old
// snapshots, and atomically replaces the live file. A document that fails
// validation is never written.
func (s *Store) Save(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		s.logger.Error("config validation failed", zap.Error(err))
		configWrites.WithLabelValues("invalid").Inc()
		return err
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		configWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: encoding config: %v", ErrMalformedInput, err)
	}

	s.mu.Lock()
	backup, err := s.snapshotLocked()
	if err == nil {
		err = writeFileAtomic(s.ConfigPath(), data, filePerm)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("saving config failed", zap.Error(err))
		configWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	configWrites.WithLabelValues("ok").Inc()
	s.logger.Info("config saved", zap.String("path", s.ConfigPath()))
	s.publish(ctx, TopicConfigSaved, SavedEvent{Backup: backup})
	return nil
}

// snapshotLocked copies the live file into the backup directory and prunes
// beyond the retention cap. Returns the snapshot name, or "" when there is
// no live file yet. Caller holds s.mu.
func (s *Store) snapshotLocked() (string, error) {
	live, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading live config for backup: %w", err)
	}

	now := s.now()
	var name string
	for seq := 1; ; seq++ {
		name = backupName(now, seq)
		if _, err := os.Stat(filepath.Join(s.BackupDir(), name)); errors.Is(err, os.ErrNotExist) {
			break
		}
	}

	if err := os.MkdirAll(s.BackupDir(), dirPerm); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.BackupDir(), name), live, filePerm); err != nil {
		return "", fmt.Errorf("writing backup %s: %w", name, err)
	}
	s.logger.Info("config backup created", zap.String("backup", name))

	s.pruneLocked()
	return name, nil
}

// pruneLocked deletes the oldest snapshots beyond maxBackups. Failures are
// logged; a leftover snapshot is not worth failing a save over.
func (s *Store) pruneLocked() {
	backups, err := scanBackups(s.BackupDir())
	if err != nil {
		s.logger.Warn("listing backups for cleanup failed", zap.Error(err))
		return
	}
	defer func() {
		if remaining, err := scanBackups(s.BackupDir()); err == nil {
			backupCount.Set(float64(len(remaining)))
		}
	}()

	if len(backups) <= s.maxBackups {
		return
	}
	for _, b := range backups[:len(backups)-s.maxBackups] {
		if err := os.Remove(filepath.Join(s.BackupDir(), b.Filename)); err != nil {
			s.logger.Warn("deleting old backup failed", zap.String("backup", b.Filename), zap.Error(err))
			continue
		}
		s.logger.Info("old backup deleted", zap.String("backup", b.Filename))
	}
}

// ListBackups returns snapshots, newest first.
func (s *Store) ListBackups(_ context.Context) ([]Backup, error) {
	backups, err := scanBackups(s.BackupDir())
	if err != nil {
		return nil, fmt.Errorf("%w: listing backups: %v", ErrIO, err)
	}
	slices.Reverse(backups)
	return backups, nil
}

// RestoreBackup copies the named snapshot over the live document.
func (s *Store) RestoreBackup(ctx context.Context, name string) error {
	if err := validateBackupName(name); err != nil {
		return err
	}

	raw, err := os.ReadFile(filepath.Join(s.BackupDir(), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: backup %s", ErrNotFound, name)
		}
		return fmt.Errorf("%w: reading backup %s: %v", ErrIO, name, err)
	}
	if _, err := ParseDocument(raw); err != nil {
		return fmt.Errorf("backup %s: %w", name, err)
	}

	s.mu.Lock()
	err = writeFileAtomic(s.ConfigPath(), raw, filePerm)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("restoring backup failed", zap.String("backup", name), zap.Error(err))
		return fmt.Errorf("%w: restoring backup %s: %v", ErrIO, name, err)
	}

	s.logger.Info("config restored from backup", zap.String("backup", name))
	s.publish(ctx, TopicConfigRestored, BackupEvent{Filename: name})
	return nil
}

// DeleteBackup removes the named snapshot.
func (s *Store) DeleteBackup(ctx context.Context, name string) error {
	if err := validateBackupName(name); err != nil {
		return err
	}

	s.mu.Lock()
	err := os.Remove(filepath.Join(s.BackupDir(), name))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: backup %s", ErrNotFound, name)
		}
		return fmt.Errorf("%w: deleting backup %s: %v", ErrIO, name, err)
	}

	s.logger.Info("backup deleted", zap.String("backup", name))
	s.publish(ctx, TopicBackupDeleted, BackupEvent{Filename: name})
	return nil
}

func (s *Store) publish(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, event.Event{
		Topic:   topic,
		Source:  "configstore",
		Payload: payload,
	})
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	for _, err := range []error{werr, serr, cerr} {
		if err != nil {
			_ = os.Remove(tmp)
			return err
		}
	}
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
