package catalog

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for the file system to settle
// before rediscovering.
const DefaultDebounce = 300 * time.Millisecond

// Watch rediscovers the catalog whenever a plugin directory or manifest is
// created, written, removed or renamed, and calls onChange after each
// rediscovery. Bursts of events closer than debounce trigger one rescan.
// It blocks until ctx is done.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration, onChange func(*Catalog)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return errors.Wrapf(err, "create plugin root %s", c.root)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	if err := c.watchTree(w); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&relevant == 0 {
				continue
			}

			// New plugin directories need their own watch to see manifest writes
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == filepath.Clean(c.root) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.Add(event.Name); err != nil {
						c.log.WithField("dir", event.Name).WithError(err).Warn("Failed to watch plugin directory")
					}
				}
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.WithError(err).Warn("Plugin watcher error")

		case <-timer.C:
			if err := c.Discover(); err != nil {
				c.log.WithError(err).Error("Failed to rediscover plugins")
				continue
			}
			if onChange != nil {
				onChange(c)
			}
		}
	}
}

func (c *Catalog) watchTree(w *fsnotify.Watcher) error {
	if err := w.Add(c.root); err != nil {
		return errors.Wrapf(err, "watch %s", c.root)
	}

	dirs, err := os.ReadDir(c.root)
	if err != nil {
		return errors.Wrapf(err, "read plugin root %s", c.root)
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if err := w.Add(filepath.Join(c.root, d.Name())); err != nil {
			return errors.Wrapf(err, "watch %s", d.Name())
		}
	}
	return nil
}
