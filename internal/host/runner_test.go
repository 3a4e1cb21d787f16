package host

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

func TestRunner_StampsInvocationID(t *testing.T) {
	r := NewRunner(newEchoPlugin(), WithLogger(quietLogger()))

	out := r.Run(context.Background(), plugin.NewInput(plugin.DataTypeText, "hi"))
	if !out.Success || out.Data != "hi" {
		t.Fatalf("unexpected output %+v", out)
	}
	if out.Metadata["echoed"] != true {
		t.Error("expected plugin metadata to be kept")
	}

	id, ok := out.Metadata[MetaInvocationID].(string)
	if !ok {
		t.Fatalf("expected invocation id, got %v", out.Metadata[MetaInvocationID])
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("invocation id %q is not a uuid: %v", id, err)
	}

	next := r.Run(context.Background(), plugin.NewInput(plugin.DataTypeText, "hi"))
	if next.Metadata[MetaInvocationID] == id {
		t.Error("expected a fresh id per invocation")
	}
}

func TestRunner_FailuresAreOutputs(t *testing.T) {
	r := NewRunner(newEchoPlugin(), WithLogger(quietLogger()))

	tests := []struct {
		name string
		in   *plugin.Input
		want string
	}{
		{"unsupported", plugin.NewInput(plugin.DataTypeImage, []byte{1}), "unsupported input data type"},
		{"nil input", nil, "unsupported input data type"},
		{"panic", plugin.NewInput(plugin.DataTypeText, "panic"), "echo exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Run(context.Background(), tt.in)
			if out.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(out.ErrorMessage, tt.want) {
				t.Errorf("expected %q in %q", tt.want, out.ErrorMessage)
			}
			if _, ok := out.Metadata[MetaInvocationID]; !ok {
				t.Error("expected invocation id on failures too")
			}
		})
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	p := newEchoPlugin()
	r := NewRunner(p, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.Run(ctx, plugin.NewInput(plugin.DataTypeText, "hi"))
	if out.Success {
		t.Fatal("expected failure for cancelled context")
	}
	if p.calls.Load() != 0 {
		t.Error("plugin should not run after cancellation")
	}
}

func TestRunner_SerializesCalls(t *testing.T) {
	p := newEchoPlugin()
	p.delay = 2 * time.Millisecond
	r := NewRunner(p, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(context.Background(), plugin.NewInput(plugin.DataTypeText, "x"))
		}()
	}
	wg.Wait()

	if p.overlapped.Load() {
		t.Error("Process calls overlapped on one instance")
	}
	if p.calls.Load() != 16 {
		t.Errorf("expected 16 calls, got %d", p.calls.Load())
	}
}

func TestRunner_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRunner(newEchoPlugin(), WithLogger(quietLogger()), WithMetrics(m))

	ctx := context.Background()
	r.Run(ctx, plugin.NewInput(plugin.DataTypeText, "a"))
	r.Run(ctx, plugin.NewInput(plugin.DataTypeText, "b"))
	r.Run(ctx, plugin.NewInput(plugin.DataTypeJSON, "c"))

	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("echo", "true")); got != 2 {
		t.Errorf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("echo", "false")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
	if n := testutil.CollectAndCount(m.InvocationDuration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestRunner_RecordsInvocations(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "host.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	r := NewRunner(newEchoPlugin(), WithLogger(quietLogger()), WithStore(s))
	ctx := context.Background()

	ok := r.Run(ctx, plugin.NewInput(plugin.DataTypeText, "a"))
	r.Run(ctx, plugin.NewInput(plugin.DataTypeImage, "b"))

	log, err := s.Invocations().ListByPlugin(ctx, "echo", 0)
	if err != nil {
		t.Fatalf("ListByPlugin() error = %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 records, got %d", len(log))
	}

	var found bool
	for _, inv := range log {
		if inv.ID == ok.Metadata[MetaInvocationID] {
			found = true
			if !inv.Success || inv.PluginVersion != "0.2.0" || inv.DataType != "text" {
				t.Errorf("unexpected record %+v", inv)
			}
		}
	}
	if !found {
		t.Error("successful invocation was not recorded under its id")
	}

	stats, err := s.Invocations().Stats(ctx, "echo")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", stats)
	}
}

func TestRunner_Release(t *testing.T) {
	p := newEchoPlugin()
	r := NewRunner(p, WithLogger(quietLogger()))

	if !r.Initialize() {
		t.Fatal("expected Initialize() to succeed")
	}
	if err := r.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !p.released {
		t.Error("expected plugin to be released")
	}
}
