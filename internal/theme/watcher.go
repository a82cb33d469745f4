package theme

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the user themes directory whenever a .css file in it
// changes and publishes theme.reloaded with the affected ids. Watch blocks
// until ctx is cancelled. It returns immediately when no directory is set.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(r.dir); err != nil {
		return errors.Join(errors.New("watching themes directory"), err)
	}
	r.logger.Debug("watching themes directory", zap.String("dir", r.dir))

	const debounce = 250 * time.Millisecond
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
			if filepath.Ext(ev.Name) != ".css" || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			changed, err := r.Reload()
			if err != nil {
				r.logger.Warn("reloading themes failed", zap.Error(err))
				continue
			}
			r.publishReloaded(ctx, changed)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("theme watcher error", zap.Error(err))
		}
	}
}
