package host

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

// MetaInvocationID is the output metadata key carrying the invocation id.
const MetaInvocationID = "invocation_id"

// Runner owns one plugin instance and serializes every call into it.
// It is safe for concurrent use; calls queue on the instance.
type Runner struct {
	mu      sync.Mutex
	plugin  plugin.Plugin
	desc    plugin.Descriptor
	log     logrus.FieldLogger
	metrics *Metrics
	store   *store.Store
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

func WithLogger(l logrus.FieldLogger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// WithMetrics records every invocation in m.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithStore appends every invocation to the invocation log of s.
func WithStore(s *store.Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

func NewRunner(p plugin.Plugin, opts ...RunnerOption) *Runner {
	r := &Runner{
		plugin: p,
		desc:   p.Descriptor(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithFields(logrus.Fields{
		"plugin":  r.desc.ID,
		"version": r.desc.Version,
	})
	return r
}

// Descriptor returns the wrapped plugin's declaration.
func (r *Runner) Descriptor() plugin.Descriptor {
	return r.desc
}

// Initialize eagerly initializes the plugin.
func (r *Runner) Initialize() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok := r.plugin.Initialize()
	if !ok {
		r.log.Warn("Plugin failed to initialize")
	}
	return ok
}

// Run passes in to the plugin and returns its output with an invocation id
// added to the metadata. Plugin failures and panics come back as failed
// outputs. A context that is already done fails the call without reaching
// the plugin.
func (r *Runner) Run(ctx context.Context, in *plugin.Input) plugin.Output {
	id := uuid.NewString()

	if err := ctx.Err(); err != nil {
		return r.finish(ctx, id, in, plugin.Failf("invocation cancelled: %v", err), 0)
	}

	r.mu.Lock()
	start := time.Now()
	out := plugin.Invoke(r.plugin, in)
	elapsed := time.Since(start)
	r.mu.Unlock()

	return r.finish(ctx, id, in, out, elapsed)
}

func (r *Runner) finish(ctx context.Context, id string, in *plugin.Input, out plugin.Output, elapsed time.Duration) plugin.Output {
	meta := make(map[string]any, len(out.Metadata)+1)
	maps.Copy(meta, out.Metadata)
	meta[MetaInvocationID] = id
	out.Metadata = meta

	var dataType plugin.DataType
	if in != nil {
		dataType = in.DataType
	}

	log := r.log.WithFields(logrus.Fields{
		"invocation_id": id,
		"data_type":     dataType,
		"duration":      elapsed,
	})
	if out.Success {
		log.Debug("Plugin invocation succeeded")
	} else {
		log.WithField("error", out.ErrorMessage).Warn("Plugin invocation failed")
	}

	r.metrics.observe(r.desc.ID, out.Success, elapsed)

	if r.store != nil {
		err := r.store.Invocations().Create(context.WithoutCancel(ctx), &store.Invocation{
			ID:            id,
			PluginID:      r.desc.ID,
			PluginVersion: r.desc.Version,
			DataType:      string(dataType),
			Success:       out.Success,
			ErrorMessage:  out.ErrorMessage,
			Duration:      elapsed,
		})
		if err != nil {
			log.WithError(err).Error("Failed to record invocation")
		}
	}

	return out
}

// Release frees the plugin's resources.
func (r *Runner) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return plugin.Release(r.plugin)
}
