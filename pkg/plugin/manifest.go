package plugin

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// ManifestFile is the name of the manifest document inside a plugin directory.
const ManifestFile = "manifest.json"

var (
	// ErrManifestNotFound is returned by ReadManifest when the file does not exist.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrManifestMalformed is returned by ReadManifest when the file is not a valid manifest document.
	ErrManifestMalformed = errors.New("manifest malformed")
)

// Manifest is the serialized projection of a Descriptor. Field order is the
// on-disk key order. A null string field reads back as "".
type Manifest struct {
	ID                   string     `json:"id" yaml:"id" jsonschema:"required,description=Stable unique plugin identifier"`
	Name                 string     `json:"name" yaml:"name" jsonschema:"required"`
	Version              string     `json:"version" yaml:"version" jsonschema:"required,description=Author-defined version; not required to be semver"`
	Description          string     `json:"description" yaml:"description"`
	Category             string     `json:"category" yaml:"category"`
	Author               string     `json:"author" yaml:"author"`
	Dependencies         []string   `json:"dependencies" yaml:"dependencies" jsonschema:"description=Advisory requirement strings"`
	SupportedInputTypes  []DataType `json:"supported_input_types" yaml:"supported_input_types" jsonschema:"enum=image,enum=text,enum=json,enum=binary"`
	SupportedOutputTypes []DataType `json:"supported_output_types" yaml:"supported_output_types" jsonschema:"enum=image,enum=text,enum=json,enum=binary"`
}

// ManifestOf projects a descriptor into a manifest document.
func ManifestOf(d Descriptor) Manifest {
	deps := make([]string, len(d.Dependencies))
	copy(deps, d.Dependencies)

	return Manifest{
		ID:                   d.ID,
		Name:                 d.Name,
		Version:              d.Version,
		Description:          d.Description,
		Category:             d.Category,
		Author:               d.Author,
		Dependencies:         deps,
		SupportedInputTypes:  typeSet(d.SupportedInputTypes),
		SupportedOutputTypes: typeSet(d.SupportedOutputTypes),
	}
}

// typeSet copies types dropping duplicates; the manifest lists them as a set.
func typeSet(types []DataType) []DataType {
	out := make([]DataType, 0, len(types))
	for _, t := range types {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Validate performs advisory checks on a manifest. LoadManifest never calls
// it; catalog discovery does.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return errors.New("manifest: id is required")
	}
	if len(m.SupportedInputTypes) == 0 {
		return errors.Newf("manifest %s: supported_input_types is empty", m.ID)
	}
	if len(m.SupportedOutputTypes) == 0 {
		return errors.Newf("manifest %s: supported_output_types is empty", m.ID)
	}
	for _, t := range slices.Concat(m.SupportedInputTypes, m.SupportedOutputTypes) {
		if !t.Valid() {
			return errors.Newf("manifest %s: unknown data type %q", m.ID, t)
		}
	}
	return nil
}

// Encode renders the manifest as indented UTF-8 JSON with a trailing newline.
// Non-ASCII text is written as-is rather than escaped.
func (m Manifest) Encode() ([]byte, error) {
	if m.Dependencies == nil {
		m.Dependencies = []string{}
	}
	if m.SupportedInputTypes == nil {
		m.SupportedInputTypes = []DataType{}
	}
	if m.SupportedOutputTypes == nil {
		m.SupportedOutputTypes = []DataType{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	return buf.Bytes(), nil
}

// SaveManifest writes m to <dir>/manifest.json, replacing any previous
// document. The write goes to a temporary file in dir which is synced and
// renamed over the target, so readers see either the old or the new document.
func SaveManifest(dir string, m Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp manifest")
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrap(err, "write manifest")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "sync manifest")
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return errors.Wrap(err, "chmod manifest")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close manifest")
	}

	if err := os.Rename(tmpName, filepath.Join(dir, ManifestFile)); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace manifest")
	}
	return nil
}

// ReadManifest parses the manifest file at path. A missing file yields
// ErrManifestNotFound and an unparseable one ErrManifestMalformed.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrManifestNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}

	// null, arrays and scalars decode without error but are not documents
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.Mark(errors.Newf("parse manifest %s: not a JSON object", path), ErrManifestMalformed)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parse manifest %s", path), ErrManifestMalformed)
	}
	return &m, nil
}

// LoadManifest reads <dir>/manifest.json and returns the document as written,
// without checking it against any live plugin.
//
// It returns nil, nil when the directory has no manifest. A manifest that
// exists but cannot be parsed is treated the same way (the plugin is simply
// undiscoverable) and a warning is logged. Only other I/O failures are
// returned as errors.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)

	m, err := ReadManifest(path)
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, ErrManifestNotFound):
		return nil, nil
	case errors.Is(err, ErrManifestMalformed):
		logrus.WithField("path", path).WithError(err).Warn("Ignoring malformed manifest")
		return nil, nil
	default:
		return nil, err
	}
}
