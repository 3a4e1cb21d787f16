// Package catalog discovers plugin manifests on disk. Each subdirectory of
// the plugin root that holds a manifest.json is one catalog entry.
package catalog

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrInvalidManifest marks problem entries whose manifest parsed but
	// failed Manifest.Validate.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Entry is one discovered plugin directory.
type Entry struct {
	Manifest *plugin.Manifest
	Dir      string

	// Err is set when the directory has a manifest that could not be read.
	// Manifest is nil in that case.
	Err error
}

// OK reports whether the entry carries a usable manifest.
func (e *Entry) OK() bool {
	return e.Err == nil && e.Manifest != nil
}

// Catalog manages plugin discovery and access.
type Catalog struct {
	root     string
	log      logrus.FieldLogger
	entries  map[string]*Entry
	problems []*Entry
	mu       sync.RWMutex
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for discovery warnings.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Catalog) {
		c.log = l
	}
}

// New creates a Catalog over the plugin root directory.
func New(root string, opts ...Option) *Catalog {
	c := &Catalog{
		root:    root,
		log:     logrus.StandardLogger(),
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the plugin root directory.
func (c *Catalog) Root() string {
	return c.root
}

// Discover rescans the root directory, replacing the previous result.
// A missing root is an empty catalog.
func (c *Catalog) Discover() error {
	entries := make(map[string]*Entry)
	var problems []*Entry

	dirs, err := os.ReadDir(c.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "read plugin root %s", c.root)
	}

	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}

		dir := filepath.Join(c.root, d.Name())
		m, err := plugin.ReadManifest(filepath.Join(dir, plugin.ManifestFile))
		switch {
		case errors.Is(err, plugin.ErrManifestNotFound):
			continue
		case err != nil:
			c.log.WithField("dir", dir).WithError(err).Warn("Skipping plugin with unreadable manifest")
			problems = append(problems, &Entry{Dir: dir, Err: err})
			continue
		}
		if err := m.Validate(); err != nil {
			c.log.WithField("dir", dir).WithError(err).Warn("Skipping plugin with invalid manifest")
			problems = append(problems, &Entry{Dir: dir, Err: errors.Mark(err, ErrInvalidManifest)})
			continue
		}

		entry := &Entry{Manifest: m, Dir: dir}
		if prev, ok := entries[m.ID]; ok {
			c.log.WithFields(logrus.Fields{
				"id":      m.ID,
				"dirs":    []string{prev.Dir, dir},
				"version": []string{prev.Manifest.Version, m.Version},
			}).Warn("Duplicate plugin id, keeping the newest version")

			if !newer(m.Version, prev.Manifest.Version) {
				continue
			}
		}
		entries[m.ID] = entry
	}

	c.mu.Lock()
	c.entries = entries
	c.problems = problems
	c.mu.Unlock()

	return nil
}

// newer reports whether version a takes precedence over b. Semantic versions
// compare by precedence and beat non-semantic ones; two non-semantic
// versions compare as strings.
func newer(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		return va.GreaterThan(vb)
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a > b
	}
}

// Get returns a plugin entry by id.
// Returns ErrPluginNotFound if the plugin does not exist.
func (c *Catalog) Get(id string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, errors.Wrapf(ErrPluginNotFound, "%s", id)
	}
	return entry, nil
}

// List returns the discovered entries ordered by id.
func (c *Catalog) List() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}
	slices.SortFunc(list, func(a, b *Entry) int {
		return strings.Compare(a.Manifest.ID, b.Manifest.ID)
	})
	return list
}

// Problems returns the directories whose manifests could not be used.
func (c *Catalog) Problems() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.problems)
}

// Sync writes the current entries to the manifest index and removes index
// rows for plugins that are gone.
func (c *Catalog) Sync(ctx context.Context, s *store.Store) error {
	repo := s.Manifests()
	entries := c.List()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := repo.Upsert(ctx, &store.IndexedManifest{Manifest: *e.Manifest, Dir: e.Dir}); err != nil {
			return err
		}
		ids = append(ids, e.Manifest.ID)
	}

	removed, err := repo.DeleteExcept(ctx, ids)
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"indexed": len(ids),
		"removed": removed,
	}).Debug("Synced manifest index")
	return nil
}
