package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// Update is delivered by Watch after the config file changes. Exactly one
// of Config and Err is set.
type Update struct {
	Config *Config
	Err    error
}

// watchDebounce coalesces the burst of events editors produce on save.
const watchDebounce = 50 * time.Millisecond

// Watch reloads path whenever it is written, created or replaced, and sends
// the result on the returned channel. The parent directory is watched so
// editors that save through rename are still seen. The channel is closed
// when ctx is done.
func Watch(ctx context.Context, path string) (<-chan Update, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "resolve config path")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "create config watcher")
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "watch config directory").
			WithContext("path", absPath)
	}

	updates := make(chan Update, 1)
	go func() {
		defer close(updates)
		defer fsw.Close()

		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != absPath {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := LoadFromPath(absPath)
				if !send(ctx, updates, Update{Config: cfg, Err: err}) {
					return
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				if !send(ctx, updates, Update{Err: apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "config watcher")}) {
					return
				}
			}
		}
	}()

	return updates, nil
}

func send(ctx context.Context, ch chan<- Update, u Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
