package store

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Record is a raw backend record.
type Record map[string]any

// Query is a backend query expressed as field equality.
type Query map[string]any

// Property describes one field of a Schema.
type Property struct {
	Name string `yaml:"-"`

	// Hidden marks fields a presentation layer should omit.
	Hidden bool `yaml:"hidden"`

	// IsA names the model a single linked resource belongs to.
	IsA string `yaml:"isA"`

	// IsMany names the model of a linked resource list.
	IsMany string `yaml:"isMany"`

	Required  bool     `yaml:"required"`
	Unique    bool     `yaml:"unique"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	MinLength *int     `yaml:"minLength"`
	MaxLength *int     `yaml:"maxLength"`
}

// Link returns the linked model name and whether the link is a list.
func (p Property) Link() (model string, many bool) {
	if p.IsMany != "" {
		return p.IsMany, true
	}
	return p.IsA, false
}

// Schema describes the shape of a Model.
type Schema struct {
	// Properties in declaration order. Names must be unique.
	Properties []Property

	// Tree marks models stored as a hierarchy.
	Tree bool
}

// Property returns the named property.
func (s Schema) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// ParseSchema decodes a YAML schema document, keeping property order:
//
//	tree: false
//	properties:
//	  id: {}
//	  title: {required: true, maxLength: 120}
//	  author: {isA: User}
func ParseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	return s, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: schema must be a mapping", ErrInvalidSchema)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "tree":
			if err := value.Decode(&s.Tree); err != nil {
				return err
			}
		case "properties":
			if value.Kind != yaml.MappingNode {
				return fmt.Errorf("%w: properties must be a mapping", ErrInvalidSchema)
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				var p Property
				if err := value.Content[j+1].Decode(&p); err != nil {
					return fmt.Errorf("property %q: %w", value.Content[j].Value, err)
				}
				p.Name = value.Content[j].Value
				s.Properties = append(s.Properties, p)
			}
		}
	}
	return nil
}

// validate checks that property names are present and unique.
func (s Schema) validate() error {
	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		if p.Name == "" {
			return fmt.Errorf("%w: property without a name", ErrInvalidSchema)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate property %q", ErrInvalidSchema, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// link is a compiled IsA/IsMany property.
type link struct {
	prop  string
	model string
	many  bool
}

// layout is computed once per schema when a model is registered.
type layout struct {
	order  []string
	index  map[string]int
	links  []link
	hidden []string
}

func compile(s Schema) layout {
	l := layout{index: make(map[string]int, len(s.Properties))}
	for i, p := range s.Properties {
		l.order = append(l.order, p.Name)
		l.index[p.Name] = i
		if model, many := p.Link(); model != "" {
			l.links = append(l.links, link{prop: p.Name, model: model, many: many})
		}
		if p.Hidden {
			l.hidden = append(l.hidden, p.Name)
		}
	}
	return l
}
