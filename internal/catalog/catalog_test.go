package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

func quietCatalog(root string) *Catalog {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(root, WithLogger(l))
}

func writePlugin(t *testing.T, root, dirName, id, version string) string {
	t.Helper()

	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	m := plugin.ManifestOf(plugin.Descriptor{
		ID:                   id,
		Name:                 id,
		Version:              version,
		SupportedInputTypes:  []plugin.DataType{plugin.DataTypeImage},
		SupportedOutputTypes: []plugin.DataType{plugin.DataTypeJSON},
	})
	if err := plugin.SaveManifest(dir, m); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func TestCatalog_Discover(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, "face", "face_detector", "1.0.0")

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	entries := c.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(entries))
	}
	if entries[0].Manifest.ID != "face_detector" {
		t.Errorf("expected id face_detector, got %q", entries[0].Manifest.ID)
	}
	if entries[0].Dir != dir {
		t.Errorf("expected dir %q, got %q", dir, entries[0].Dir)
	}
	if !entries[0].OK() {
		t.Error("expected entry to be usable")
	}
}

func TestCatalog_Discover_MultiplePluginsSorted(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "z", "zeta", "1.0.0")
	writePlugin(t, root, "a", "alpha", "1.0.0")

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	entries := c.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(entries))
	}
	if entries[0].Manifest.ID != "alpha" || entries[1].Manifest.ID != "zeta" {
		t.Errorf("expected alpha, zeta order, got %s, %s", entries[0].Manifest.ID, entries[1].Manifest.ID)
	}
}

func TestCatalog_Discover_EmptyAndMissingRoot(t *testing.T) {
	for _, root := range []string{t.TempDir(), filepath.Join(t.TempDir(), "missing")} {
		c := quietCatalog(root)
		if err := c.Discover(); err != nil {
			t.Fatalf("Discover(%s) failed: %v", root, err)
		}
		if len(c.List()) != 0 {
			t.Errorf("expected no plugins in %s", root)
		}
	}
}

func TestCatalog_Discover_SkipsDirsWithoutManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if len(c.List()) != 0 || len(c.Problems()) != 0 {
		t.Errorf("expected nothing, got %d entries and %d problems", len(c.List()), len(c.Problems()))
	}
}

func TestCatalog_Discover_MalformedManifestIsProblem(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "good", "good", "1.0.0")

	bad := filepath.Join(root, "bad")
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bad, plugin.ManifestFile), []byte(`{"id": "bad",`), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if len(c.List()) != 1 {
		t.Errorf("expected the good plugin only, got %d", len(c.List()))
	}

	problems := c.Problems()
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	if problems[0].Dir != bad || problems[0].OK() {
		t.Errorf("unexpected problem entry %+v", problems[0])
	}
	if !errors.Is(problems[0].Err, plugin.ErrManifestMalformed) {
		t.Errorf("expected ErrManifestMalformed, got %v", problems[0].Err)
	}
}

func TestCatalog_Discover_InvalidManifestIsProblem(t *testing.T) {
	docs := map[string]string{
		"noid":    `{"id":"","supported_input_types":["image"],"supported_output_types":["json"]}`,
		"video":   `{"id":"vid","supported_input_types":["video"],"supported_output_types":["json"]}`,
		"noinput": `{"id":"mute","supported_input_types":[],"supported_output_types":["json"]}`,
	}

	root := t.TempDir()
	writePlugin(t, root, "good", "good", "1.0.0")
	for name, doc := range docs {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte(doc), 0644); err != nil {
			t.Fatalf("failed to write manifest: %v", err)
		}
	}

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if len(c.List()) != 1 {
		t.Errorf("expected the good plugin only, got %d", len(c.List()))
	}
	problems := c.Problems()
	if len(problems) != len(docs) {
		t.Fatalf("expected %d problems, got %d", len(docs), len(problems))
	}
	for _, p := range problems {
		if !errors.Is(p.Err, ErrInvalidManifest) {
			t.Errorf("%s: expected ErrInvalidManifest, got %v", p.Dir, p.Err)
		}
	}
}

func TestCatalog_Discover_DuplicateKeepsNewest(t *testing.T) {
	tests := []struct {
		name     string
		versions [2]string
		want     string
	}{
		{"semver precedence", [2]string{"1.10.0", "1.9.0"}, "1.10.0"},
		{"semver over prerelease", [2]string{"2.0.0-rc.1", "2.0.0"}, "2.0.0"},
		{"semver beats free-form", [2]string{"nightly", "0.1.0"}, "0.1.0"},
		{"free-form string order", [2]string{"beta", "alpha"}, "beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writePlugin(t, root, "one", "dup", tt.versions[0])
			writePlugin(t, root, "two", "dup", tt.versions[1])

			c := quietCatalog(root)
			if err := c.Discover(); err != nil {
				t.Fatalf("Discover() failed: %v", err)
			}

			e, err := c.Get("dup")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if e.Manifest.Version != tt.want {
				t.Errorf("expected version %q, got %q", tt.want, e.Manifest.Version)
			}
		})
	}
}

func TestCatalog_Get_NotFound(t *testing.T) {
	c := quietCatalog(t.TempDir())
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := c.Get("nonexistent"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestCatalog_Discover_ReplacesPrevious(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, "face", "face_detector", "1.0.0")

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove plugin: %v", err)
	}
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if len(c.List()) != 0 {
		t.Errorf("expected removed plugin to disappear, got %d", len(c.List()))
	}
}

func TestCatalog_Sync(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writePlugin(t, root, "a", "alpha", "1.0.0")
	betaDir := writePlugin(t, root, "b", "beta", "1.0.0")

	s, err := store.New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	c := quietCatalog(root)
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if err := c.Sync(ctx, s); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	indexed, err := s.Manifests().List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(indexed) != 2 {
		t.Fatalf("expected 2 indexed manifests, got %d", len(indexed))
	}

	if err := os.RemoveAll(betaDir); err != nil {
		t.Fatalf("failed to remove plugin: %v", err)
	}
	if err := c.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if err := c.Sync(ctx, s); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if _, err := s.Manifests().GetByID(ctx, "beta"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected beta to be pruned, got %v", err)
	}
}

func TestCatalog_Watch(t *testing.T) {
	root := t.TempDir()
	c := quietCatalog(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan int, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, 50*time.Millisecond, func(c *Catalog) {
			changed <- len(c.List())
		})
	}()

	// Give the watcher time to register the root.
	time.Sleep(100 * time.Millisecond)
	writePlugin(t, root, "face", "face_detector", "1.0.0")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-changed:
			if n == 1 {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("Watch() error = %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for rediscovery")
		}
	}
}
