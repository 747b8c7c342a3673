// Package component holds the read-only component model: for every widget
// kind, the properties it may carry with their declared types and the child
// kinds it may contain. The model is loaded once when a sandbox starts and
// shared as an immutable snapshot.
package component

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

//go:embed components.yaml
var defaultSchema []byte

var ErrSchema = errors.New("invalid component schema")

// PropertyType is the declared type of a component property.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeNumber   PropertyType = "number"
	TypeBoolean  PropertyType = "boolean"
	TypeFunction PropertyType = "function"
	TypeImage    PropertyType = "image"
)

// Property declares one permitted property.
type Property struct {
	Name     string       `yaml:"name" json:"name"`
	Type     PropertyType `yaml:"type" json:"type"`
	Optional bool         `yaml:"optional" json:"optional"`
}

// Component declares one widget kind.
type Component struct {
	Kind       widget.Kind   `yaml:"kind" json:"kind"`
	Properties []Property    `yaml:"properties" json:"properties"`
	Children   []widget.Kind `yaml:"children" json:"children"`
	Text       bool          `yaml:"text" json:"text"`
}

// Property returns the declaration for name.
func (c Component) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Allows reports whether a child of kind k may be placed under c.
func (c Component) Allows(k widget.Kind) bool {
	if k == widget.KindText {
		return c.Text
	}
	for _, ck := range c.Children {
		if ck == k {
			return true
		}
	}
	return false
}

type schemaFile struct {
	Components []Component `yaml:"components"`
}

// Model is the immutable component schema.
type Model struct {
	components map[widget.Kind]Component
	images     map[widget.Kind]string
}

// Default returns the model compiled into the binary.
func Default() (*Model, error) {
	return Parse(defaultSchema)
}

// LoadFile reads a schema override from disk.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read component model: %w", err)
	}
	return Parse(data)
}

// Parse decodes and checks a YAML schema.
func Parse(data []byte) (*Model, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	m := &Model{
		components: make(map[widget.Kind]Component, len(file.Components)),
		images:     make(map[widget.Kind]string),
	}
	for _, c := range file.Components {
		if !c.Kind.Valid() || c.Kind == widget.KindText {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrSchema, c.Kind)
		}
		if _, dup := m.components[c.Kind]; dup {
			return nil, fmt.Errorf("%w: %s declared twice", ErrSchema, c.Kind)
		}
		for _, p := range c.Properties {
			switch p.Type {
			case TypeString, TypeNumber, TypeBoolean, TypeFunction:
			case TypeImage:
				if prev, ok := m.images[c.Kind]; ok {
					return nil, fmt.Errorf("%w: %s has two image properties (%s, %s)", ErrSchema, c.Kind, prev, p.Name)
				}
				m.images[c.Kind] = p.Name
			default:
				return nil, fmt.Errorf("%w: %s.%s has unknown type %q", ErrSchema, c.Kind, p.Name, p.Type)
			}
		}
		m.components[c.Kind] = c
	}

	for _, c := range m.components {
		for _, ck := range c.Children {
			if _, ok := m.components[ck]; !ok {
				return nil, fmt.Errorf("%w: %s permits undeclared child %q", ErrSchema, c.Kind, ck)
			}
		}
	}
	if _, ok := m.components[widget.KindRoot]; !ok {
		return nil, fmt.Errorf("%w: root component missing", ErrSchema)
	}
	return m, nil
}

// Component looks up a declaration.
func (m *Model) Component(kind widget.Kind) (Component, bool) {
	c, ok := m.components[kind]
	return c, ok
}

// Kinds returns the declared kinds in sorted order.
func (m *Model) Kinds() []widget.Kind {
	out := make([]widget.Kind, 0, len(m.components))
	for k := range m.components {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Components returns a copy of every declaration keyed by kind.
func (m *Model) Components() map[string]Component {
	out := make(map[string]Component, len(m.components))
	for k, c := range m.components {
		c.Properties = append([]Property(nil), c.Properties...)
		c.Children = append([]widget.Kind(nil), c.Children...)
		out[string(k)] = c
	}
	return out
}

// ImageProperty returns the image-typed property of kind, if any.
func (m *Model) ImageProperty(kind widget.Kind) (string, bool) {
	name, ok := m.images[kind]
	return name, ok
}

// CheckProperty validates a runtime value against its declaration.
// It satisfies widget.PropertyChecker.
func (m *Model) CheckProperty(kind widget.Kind, p widget.Property) error {
	c, ok := m.components[kind]
	if !ok {
		return fmt.Errorf("%w: kind %s is not declared", widget.ErrInvalidProperty, kind)
	}
	decl, ok := c.Property(p.Name)
	if !ok {
		return fmt.Errorf("%w: %s does not declare %q", widget.ErrInvalidProperty, kind, p.Name)
	}
	if !decl.Type.accepts(p.Value.Type) {
		return fmt.Errorf("%w: %s.%s is %s, got %s", widget.ErrInvalidProperty, kind, p.Name, decl.Type, p.Value.Type)
	}
	if decl.Type == TypeImage {
		if _, err := widget.ParseAssetRef(p.Value.Str); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", widget.ErrInvalidProperty, kind, p.Name, err)
		}
	}
	return nil
}

func (t PropertyType) accepts(v widget.ValueType) bool {
	switch t {
	case TypeString, TypeImage:
		return v == widget.TypeString
	case TypeNumber:
		return v == widget.TypeNumber
	case TypeBoolean:
		return v == widget.TypeBool
	case TypeFunction:
		return v == widget.TypeFunction
	}
	return false
}
