// Package host runs plugins on behalf of the command line tools: it builds
// instances by id, serializes calls into each instance, records every
// invocation and feeds camera frames to image plugins.
package host

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
	"github.com/edgeaihub/edgeplug/plugins/facedetector"
)

// ErrUnknownPlugin is returned when no constructor is registered for an id.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Constructor builds a fresh, uninitialized plugin instance.
type Constructor func() plugin.Plugin

// Registry maps plugin ids to constructors. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor. Registering an id twice is an error.
func (r *Registry) Register(id string, c Constructor) error {
	if id == "" || c == nil {
		return errors.New("register plugin: id and constructor are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ctors[id]; ok {
		return errors.Newf("plugin %q already registered", id)
	}
	r.ctors[id] = c
	return nil
}

// New builds a new instance of the plugin registered as id. Every call
// returns an independent instance.
func (r *Registry) New(id string) (plugin.Plugin, error) {
	r.mu.RLock()
	c, ok := r.ctors[id]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownPlugin, "%q", id)
	}
	return c(), nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ctors))
	for id := range r.ctors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DefaultRegistry registers the plugins built into edgeplug.
func DefaultRegistry(face facedetector.Config, log logrus.FieldLogger) *Registry {
	r := NewRegistry()

	// Cannot fail on an empty registry
	_ = r.Register(facedetector.ID, func() plugin.Plugin {
		return facedetector.New(face, facedetector.WithLogger(log))
	})

	return r
}
