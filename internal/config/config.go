// Package config loads edgeplug settings. Values are layered, lowest to
// highest precedence: built-in defaults, ~/.edgeplug/config.toml, EDGEPLUG_*
// environment variables and command line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/edgeaihub/edgeplug/plugins/facedetector"
)

const (
	// Dir is the per-user directory holding config, data and plugins.
	Dir = ".edgeplug"

	// File is the name of the configuration file inside Dir.
	File = "config.toml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "EDGEPLUG_"

	// DatabaseFile is the SQLite file inside the data directory.
	DatabaseFile = "edgeplug.db"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the resolved configuration.
type Config struct {
	PluginDir string     `koanf:"plugin_dir"`
	DataDir   string     `koanf:"data_dir"`
	Workers   int        `koanf:"workers"`
	Log       LogConfig  `koanf:"log"`
	Face      FaceConfig `koanf:"face"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// FaceConfig tunes the face detector plugin.
type FaceConfig struct {
	CascadePath  string  `koanf:"cascade_path"`
	ScaleFactor  float64 `koanf:"scale_factor"`
	MinNeighbors int     `koanf:"min_neighbors"`
	MinSize      int     `koanf:"min_size"`
}

// Detector converts the face settings into a detector config.
func (f FaceConfig) Detector() facedetector.Config {
	cfg := facedetector.DefaultConfig()
	cfg.CascadePath = f.CascadePath
	cfg.ScaleFactor = f.ScaleFactor
	cfg.MinNeighbors = f.MinNeighbors
	cfg.MinSize = f.MinSize
	return cfg
}

// DatabasePath is where the manifest index and invocation log live.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

// Validate checks the values that would make the host misbehave.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers must be positive, got %d", c.Workers)
	}
	if c.Face.ScaleFactor <= 1 {
		return errors.Wrapf(ErrInvalidConfig, "face.scale_factor must be greater than 1, got %g", c.Face.ScaleFactor)
	}
	if c.Face.MinNeighbors < 0 || c.Face.MinSize < 0 {
		return errors.Wrap(ErrInvalidConfig, "face.min_neighbors and face.min_size must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log.level: %v", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Loader resolves a Config from all sources.
type Loader struct {
	k       *koanf.Koanf
	homeDir string
}

// NewLoader creates a Loader rooted at the user's home directory.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}
	return NewLoaderWithHome(home), nil
}

// NewLoaderWithHome creates a Loader with a custom home directory (for testing).
func NewLoaderWithHome(homeDir string) *Loader {
	return &Loader{
		k:       koanf.New("."),
		homeDir: homeDir,
	}
}

// ConfigPath returns the path of the configuration file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.homeDir, Dir, File)
}

// Load layers every source, applying flags last, and validates the result.
// flags maps dotted keys such as "face.min_size" to values.
func (l *Loader) Load(flags map[string]any) (*Config, error) {
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(l.defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	path := l.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		if err := l.k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", path)
		}
	}

	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
	}
	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	if len(flags) > 0 {
		if err := l.k.Load(confmap.Provider(flags, "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.PluginDir = l.expandHome(cfg.PluginDir)
	cfg.DataDir = l.expandHome(cfg.DataDir)
	cfg.Face.CascadePath = l.expandHome(cfg.Face.CascadePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) defaults() map[string]any {
	face := facedetector.DefaultConfig()
	base := filepath.Join(l.homeDir, Dir)

	return map[string]any{
		"plugin_dir":         filepath.Join(base, "plugins"),
		"data_dir":           base,
		"workers":            4,
		"log.level":          "info",
		"log.format":         "text",
		"face.cascade_path":  "",
		"face.scale_factor":  face.ScaleFactor,
		"face.min_neighbors": face.MinNeighbors,
		"face.min_size":      face.MinSize,
	}
}

func (l *Loader) expandHome(path string) string {
	if path == "~" {
		return l.homeDir
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(l.homeDir, rest)
	}
	return path
}

// envTransform maps environment names to config keys. A double underscore
// separates levels: EDGEPLUG_FACE__MIN_SIZE -> face.min_size.
func envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "__", ".")
	return key, value
}
