package configstore

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce coalesces the burst of events one editor save produces.
const watchDebounce = 200 * time.Millisecond

// ChangedEvent is the payload of config.changed.
type ChangedEvent struct {
	Path string `json:"path"`
}

// Watch publishes config.changed when config.json is modified outside this
// process (an admin editing the file by hand). Writes made through Save
// and RestoreBackup also trigger it; subscribers treat it as "reload".
// Watch blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: atomic renames replace the inode of config.json.
	if err := w.Add(s.dir); err != nil {
		return err
	}
	s.logger.Debug("watching config directory", zap.String("dir", s.dir))

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != ConfigFileName {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			s.logger.Info("config file changed on disk", zap.String("path", s.ConfigPath()))
			s.publish(ctx, TopicConfigChanged, ChangedEvent{Path: s.ConfigPath()})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
