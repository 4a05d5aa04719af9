// Package codec reads and writes deltas in their JSON form, and in YAML and
// protobuf renditions of the same tree.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/brunokim/delta/delta"
)

// ErrUnknownFormat is returned when no codec matches a name or file extension.
var ErrUnknownFormat = errors.New("unknown format")

// Codec converts deltas to and from bytes.
type Codec interface {
	Name() string
	Encode(d *delta.Delta) ([]byte, error)
	Decode(data []byte) (*delta.Delta, error)
}

// +------+
// | JSON |
// +------+

// JSON encodes deltas as JSON, optionally indented.
type JSON struct {
	Indent string
}

func (JSON) Name() string { return "json" }

func (c JSON) Encode(d *delta.Delta) ([]byte, error) {
	if c.Indent == "" {
		return json.Marshal(d)
	}
	return json.MarshalIndent(d, "", c.Indent)
}

func (JSON) Decode(data []byte) (*delta.Delta, error) {
	return delta.Unmarshal(data)
}

// +------+
// | YAML |
// +------+

// YAML encodes deltas as YAML documents with the same structure as the JSON form.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Encode(d *delta.Delta) ([]byte, error) {
	bs, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	out, err := yaml.JSONToYAML(bs)
	if err != nil {
		return nil, fmt.Errorf("converting to yaml: %w", err)
	}
	return out, nil
}

func (YAML) Decode(data []byte) (*delta.Delta, error) {
	bs, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", delta.ErrInvalidJSON, err)
	}
	return delta.Unmarshal(bs)
}

// +-------+
// | Proto |
// +-------+

// Proto encodes deltas as a serialized google.protobuf.Struct.
type Proto struct{}

func (Proto) Name() string { return "proto" }

func (Proto) Encode(d *delta.Delta) ([]byte, error) {
	st, err := ToStruct(d)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

func (Proto) Decode(data []byte) (*delta.Delta, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %w", delta.ErrInvalidJSON, err)
	}
	return delta.FromJSON(st.AsMap())
}

// ToStruct converts d to a protobuf Struct. Values go through encoding/json
// first, so every number becomes a float64 as structpb requires.
func ToStruct(d *delta.Delta) (*structpb.Struct, error) {
	bs, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// +--------+
// | Lookup |
// +--------+

var codecs = []Codec{JSON{}, YAML{}, Proto{}}

var extensions = map[string]string{
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".pb":    "proto",
	".binpb": "proto",
}

// ByName returns the codec called name: "json", "yaml" or "proto".
func ByName(name string) (Codec, error) {
	for _, c := range codecs {
		if c.Name() == strings.ToLower(name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ForPath picks a codec from the extension of path.
func ForPath(path string) (Codec, error) {
	name, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
	return ByName(name)
}
