// Package loadinput gives the public facade's inputs the same flexibility
// api.py gives its callers: a spec/registry/bindings/raw-schema argument is
// either a file path to read and parse, or an already-decoded value, never
// both. Go has no Union[str, PathLike, Dict], so each kind gets a small
// struct with exactly one of Path/Value set.
package loadinput

import (
	"fmt"
	"os"

	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// Spec is a mapping spec given either by file path or already parsed.
type Spec struct {
	Path  string
	Value *spec.MappingSpec
}

// FromPath wraps a file path to be parsed on Resolve.
func FromPath(path string) Spec { return Spec{Path: path} }

// FromValue wraps an already-parsed spec.
func FromValue(v *spec.MappingSpec) Spec { return Spec{Value: v} }

// Resolve returns the parsed spec, reading and parsing Path if Value is unset.
func (s Spec) Resolve() (*spec.MappingSpec, error) {
	if s.Value != nil {
		return s.Value, nil
	}
	if s.Path == "" {
		return nil, fmt.Errorf("loadinput: spec input has neither path nor value")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("loadinput: reading spec %s: %w", s.Path, err)
	}
	return spec.Parse(data)
}

// Registry is a transform registry given either by file path or already parsed.
type Registry struct {
	Path  string
	Value *registry.TransformRegistry
}

func RegistryFromPath(path string) Registry { return Registry{Path: path} }

func RegistryFromValue(v *registry.TransformRegistry) Registry { return Registry{Value: v} }

func (r Registry) Resolve() (*registry.TransformRegistry, error) {
	if r.Value != nil {
		return r.Value, nil
	}
	if r.Path == "" {
		return nil, fmt.Errorf("loadinput: registry input has neither path nor value")
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("loadinput: reading registry %s: %w", r.Path, err)
	}
	return registry.Parse(data)
}

// Bindings is a raw-column binding set given either by file path or already
// decoded. Unlike Spec/Registry there's no bespoke parser to defer to: the
// on-disk shape is exactly the struct's JSON tags (§6.2), so Resolve
// unmarshals directly.
type Bindings struct {
	Path  string
	Value *bindings.Bindings
}

func BindingsFromPath(path string) Bindings { return Bindings{Path: path} }

func BindingsFromValue(v *bindings.Bindings) Bindings { return Bindings{Value: v} }

func (b Bindings) Resolve() (*bindings.Bindings, error) {
	if b.Value != nil {
		return b.Value, nil
	}
	if b.Path == "" {
		return nil, fmt.Errorf("loadinput: bindings input has neither path nor value")
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, fmt.Errorf("loadinput: reading bindings %s: %w", b.Path, err)
	}
	return unmarshalBindings(data)
}

// RawSchema is a raw table schema given either by file path or already decoded.
type RawSchema struct {
	Path  string
	Value *bindings.RawSchema
}

func RawSchemaFromPath(path string) RawSchema { return RawSchema{Path: path} }

func RawSchemaFromValue(v *bindings.RawSchema) RawSchema { return RawSchema{Value: v} }

func (s RawSchema) Resolve() (*bindings.RawSchema, error) {
	if s.Value != nil {
		return s.Value, nil
	}
	if s.Path == "" {
		return nil, fmt.Errorf("loadinput: raw_schema input has neither path nor value")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("loadinput: reading raw_schema %s: %w", s.Path, err)
	}
	return unmarshalRawSchema(data)
}
