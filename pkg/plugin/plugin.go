package plugin

import (
	"fmt"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnsupportedInput is reported when an Input's data type is not one the plugin accepts.
	ErrUnsupportedInput = errors.New("unsupported input data type")

	// ErrNotInitialized is reported when a plugin could not bring up its resources.
	ErrNotInitialized = errors.New("plugin not initialized")
)

// Descriptor is the static identity and capability declaration of a plugin.
// Plugin authors fill it in at construction; hosts only read it.
type Descriptor struct {
	ID          string
	Name        string
	Version     string
	Description string
	Category    string
	Author      string

	// Dependencies are free-form requirement strings. They are advisory and
	// never resolved by the host.
	Dependencies []string

	SupportedInputTypes  []DataType
	SupportedOutputTypes []DataType
}

// Accepts reports whether t is among the declared input types.
func (d Descriptor) Accepts(t DataType) bool {
	return slices.Contains(d.SupportedInputTypes, t)
}

// Plugin is implemented by every capability module.
//
// A single instance is not safe for concurrent use: hosts must serialize
// Initialize and Process on one instance. Separate instances share no state.
type Plugin interface {
	// Descriptor returns the plugin's static declaration.
	Descriptor() Descriptor

	// Initialize acquires the resources Process needs. It is idempotent and
	// may be called again after a failure. Failure is reported by returning
	// false; the cause goes to the plugin's logger.
	Initialize() bool

	// Process validates in, lazily initializes if needed and does the
	// plugin's work. Every failure is returned as an Output with Success
	// false; Process never panics for ordinary errors.
	Process(in *Input) Output
}

// Releaser is implemented by plugins holding resources that should be freed
// before the instance is dropped. A released plugin re-initializes on its
// next Process call.
type Releaser interface {
	Release() error
}

// Release frees p's resources if it implements Releaser.
func Release(p Plugin) error {
	if r, ok := p.(Releaser); ok {
		return r.Release()
	}
	return nil
}

// ValidateInput is the admission check every Process implementation runs
// before touching in.Data.
func ValidateInput(d Descriptor, in *Input) bool {
	if in == nil || !in.DataType.Valid() {
		return false
	}
	return d.Accepts(in.DataType)
}

// UnsupportedInput builds the failed Output for an Input rejected by ValidateInput.
func UnsupportedInput(d Descriptor, in *Input) Output {
	got := "<nil input>"
	if in != nil {
		got = string(in.DataType)
	}
	return Failf("%s %q: plugin %s accepts %s", ErrUnsupportedInput, got, d.ID, joinTypes(d.SupportedInputTypes))
}

// InitializationFailed builds the failed Output for a lazy initialization
// that did not succeed.
func InitializationFailed(cause error) Output {
	if cause == nil {
		cause = ErrNotInitialized
	}
	return Failf("initialization failed: %v", cause)
}

// ProcessingFailed folds an internal error into a failed Output.
func ProcessingFailed(err error) Output {
	return Failf("processing failed: %v", err)
}

func joinTypes(types []DataType) string {
	tags := make([]string, len(types))
	for i, t := range types {
		tags[i] = string(t)
	}
	return "[" + strings.Join(tags, ", ") + "]"
}

// Base carries a Descriptor and gives embedding plugins the shared helpers.
type Base struct {
	desc Descriptor
}

// NewBase returns a Base for the given descriptor. Slices are copied so the
// caller cannot mutate the declaration afterwards.
func NewBase(d Descriptor) Base {
	d.Dependencies = slices.Clone(d.Dependencies)
	d.SupportedInputTypes = slices.Clone(d.SupportedInputTypes)
	d.SupportedOutputTypes = slices.Clone(d.SupportedOutputTypes)
	return Base{desc: d}
}

// Descriptor returns a copy of the declaration.
func (b Base) Descriptor() Descriptor {
	d := b.desc
	d.Dependencies = slices.Clone(d.Dependencies)
	d.SupportedInputTypes = slices.Clone(d.SupportedInputTypes)
	d.SupportedOutputTypes = slices.Clone(d.SupportedOutputTypes)
	return d
}

// ValidateInput checks in against the declared input types.
func (b Base) ValidateInput(in *Input) bool {
	return ValidateInput(b.desc, in)
}

// Manifest projects the declaration into a manifest document.
func (b Base) Manifest() Manifest {
	return ManifestOf(b.desc)
}

// SaveManifest writes the manifest to <dir>/manifest.json.
func (b Base) SaveManifest(dir string) error {
	return SaveManifest(dir, b.Manifest())
}

// Invoke calls p.Process and converts a panic escaping the plugin into a
// failed Output, so that a host always receives an Output.
func Invoke(p Plugin, in *Input) (out Output) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"plugin": p.Descriptor().ID,
				"stack":  string(debug.Stack()),
			}).Errorf("plugin panicked: %v", r)
			out = Fail(fmt.Sprintf("plugin panicked: %v", r))
		}
	}()

	return p.Process(in)
}
