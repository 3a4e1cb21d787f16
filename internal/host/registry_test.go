package host

import (
	"slices"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
	"github.com/edgeaihub/edgeplug/plugins/facedetector"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("echo", func() plugin.Plugin { return newEchoPlugin() }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("echo", func() plugin.Plugin { return newEchoPlugin() }); err == nil {
		t.Error("expected error for duplicate id")
	}
	if err := r.Register("", nil); err == nil {
		t.Error("expected error for empty registration")
	}

	a, err := r.New("echo")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b, err := r.New("echo")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a == b {
		t.Error("expected independent instances")
	}

	if _, err := r.New("nope"); !errors.Is(err, ErrUnknownPlugin) {
		t.Errorf("expected ErrUnknownPlugin, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(facedetector.DefaultConfig(), quietLogger())

	if !slices.Equal(r.IDs(), []string{facedetector.ID}) {
		t.Errorf("unexpected ids %v", r.IDs())
	}

	p, err := r.New(facedetector.ID)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Descriptor().ID != facedetector.ID {
		t.Errorf("expected face detector, got %q", p.Descriptor().ID)
	}
}
