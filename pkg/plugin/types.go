// Package plugin defines the contract between an edgeplug host and the
// capability modules it invokes: the typed input/output envelope, the
// plugin lifecycle interface and the manifest document.
package plugin

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// DataType tags the kind of payload carried by an envelope.
type DataType string

// Payload kinds a plugin may declare support for.
const (
	DataTypeImage  DataType = "image"
	DataTypeText   DataType = "text"
	DataTypeJSON   DataType = "json"
	DataTypeBinary DataType = "binary"
)

// DataTypes returns every known data type in declaration order.
func DataTypes() []DataType {
	return []DataType{DataTypeImage, DataTypeText, DataTypeJSON, DataTypeBinary}
}

// Valid reports whether t is one of the known data types.
func (t DataType) Valid() bool {
	return slices.Contains(DataTypes(), t)
}

func (t DataType) String() string {
	return string(t)
}

// ParseDataType converts a string tag such as "image" into a DataType.
func ParseDataType(s string) (DataType, error) {
	t := DataType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.Newf("unknown data type %q", s)
	}
	return t, nil
}

// Input is the envelope a host hands to Process.
//
// Data is opaque to this package; its concrete shape is agreed between a
// plugin and its host by DataType. A nil Metadata means the host supplied
// none, which is different from an empty map.
type Input struct {
	DataType DataType
	Data     any
	Metadata map[string]any
}

// NewInput wraps data in an Input without metadata.
func NewInput(dataType DataType, data any) *Input {
	return &Input{DataType: dataType, Data: data}
}

// HasMetadata reports whether the host supplied a metadata map, even an empty one.
func (in *Input) HasMetadata() bool {
	return in != nil && in.Metadata != nil
}

// Output is the envelope returned by Process.
// When Success is false, Data is nil and ErrorMessage explains why.
type Output struct {
	Success      bool           `json:"success"`
	Data         any            `json:"data"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Succeed builds a successful Output.
func Succeed(data any, metadata map[string]any) Output {
	return Output{Success: true, Data: data, Metadata: metadata}
}

// Fail builds a failed Output carrying a human-readable message.
func Fail(message string) Output {
	return Output{Success: false, ErrorMessage: message}
}

// Failf is Fail with a format string.
func Failf(format string, args ...any) Output {
	return Fail(fmt.Sprintf(format, args...))
}
