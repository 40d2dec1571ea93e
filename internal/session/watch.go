package session

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/messenjrali/msgr/internal/bus"
	"go.uber.org/zap"
)

// Watcher observes the credentials file for out-of-band changes (another
// process logging in or out) and publishes session.credentials_changed so
// the connection manager can pick up the new token.
type Watcher struct {
	store  *Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewWatcher creates a credentials file watcher.
func NewWatcher(store *Store, b *bus.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{store: store, bus: b, logger: logger}
}

// Start begins watching the credentials file's parent directory. Watching
// the directory rather than the file survives the atomic rename on Save.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.store.path)); err != nil {
		_ = fw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		defer func() { _ = fw.Close() }()
		for {
			select {
			case evt, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Base(evt.Name) != filepath.Base(w.store.path) {
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if err := w.store.Reload(); err != nil {
					w.logger.Warn("failed to reload credentials", zap.Error(err))
					continue
				}
				w.logger.Info("credentials file changed", zap.String("op", evt.Op.String()))
				w.bus.Publish(bus.Event{
					Kind:      "session.credentials_changed",
					Timestamp: time.Now(),
				})
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("credentials watcher error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}
