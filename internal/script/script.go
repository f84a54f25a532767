// Package script replays YAML scenarios against an Observer: it registers
// schemas, installs watches and applies mutations, reporting every callback.
package script

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Script is a replayable scenario.
//
// Watches are declared before any schema is registered, so type-level
// watches exercise deferred binding. Instance watches need an entity and
// are given as steps.
type Script struct {
	Schemas []SchemaSpec `mapstructure:"schemas"`
	Watches []WatchSpec  `mapstructure:"watches"`
	Steps   []Step       `mapstructure:"steps"`
}

// SchemaSpec declares a type.
type SchemaSpec struct {
	Name   string      `mapstructure:"name"`
	Fields []FieldSpec `mapstructure:"fields"`
}

// FieldSpec declares a field. Kind uses the names of domain.RelationshipKind.
type FieldSpec struct {
	Name        string `mapstructure:"name"`
	Kind        string `mapstructure:"kind"`
	Target      string `mapstructure:"target"`
	RelatedName string `mapstructure:"related_name"`
	Through     string `mapstructure:"through"`
	Unique      bool   `mapstructure:"unique"`
	Nullable    bool   `mapstructure:"nullable"`
	TypeField   string `mapstructure:"type_field"`
	IDField     string `mapstructure:"id_field"`
}

// WatchSpec installs a watch. Ref selects a single entity created earlier
// in the script; without it every entity of Type is watched.
type WatchSpec struct {
	Name          string   `mapstructure:"name"`
	Type          string   `mapstructure:"type"`
	Ref           string   `mapstructure:"ref"`
	Attr          string   `mapstructure:"attr"`
	Watcher       string   `mapstructure:"watcher"`
	Include       []string `mapstructure:"include"`
	Exclude       []string `mapstructure:"exclude"`
	CallOnCreated *bool    `mapstructure:"call_on_created"`
}

// Step is one mutation, or a watch installed mid-script. Exactly one
// field is set.
type Step struct {
	Create  *Mutation  `mapstructure:"create"`
	Update  *Mutation  `mapstructure:"update"`
	Delete  *Mutation  `mapstructure:"delete"`
	Add     *Mutation  `mapstructure:"add"`
	Remove  *Mutation  `mapstructure:"remove"`
	Clear   *Mutation  `mapstructure:"clear"`
	Watch   *WatchSpec `mapstructure:"watch"`
	Unwatch string     `mapstructure:"unwatch"`
}

// Mutation describes a change. Field values of the form "@alias" are
// replaced by the primary key of the aliased entity.
type Mutation struct {
	Type   string         `mapstructure:"type"`
	As     string         `mapstructure:"as"`
	Ref    string         `mapstructure:"ref"`
	Fields map[string]any `mapstructure:"fields"`
	Attr   string         `mapstructure:"attr"`
	Refs   []string       `mapstructure:"refs"`
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML script.
func Parse(data []byte) (*Script, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	var s Script
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &s,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	for _, schema := range s.Schemas {
		if schema.Name == "" {
			return fmt.Errorf("schema without name")
		}
		for _, f := range schema.Fields {
			if _, err := domain.ParseKind(f.Kind); err != nil {
				return fmt.Errorf("schema %s: field %s: %w", schema.Name, f.Name, err)
			}
		}
	}
	for _, w := range s.Watches {
		if w.Ref != "" {
			return fmt.Errorf("watch %s: instance watches must be steps", w.Name)
		}
		if err := w.validate(); err != nil {
			return err
		}
	}
	for i, step := range s.Steps {
		if n := step.count(); n != 1 {
			return fmt.Errorf("step %d: expected exactly one action, got %d", i+1, n)
		}
		if step.Watch != nil {
			if err := step.Watch.validate(); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return nil
}

func (w WatchSpec) validate() error {
	if w.Name == "" || w.Type == "" {
		return fmt.Errorf("watch requires a name and a type")
	}
	if w.Attr == "" && !strings.EqualFold(w.Watcher, "model") {
		return fmt.Errorf("watch %s: attr is required", w.Name)
	}
	return nil
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{
		s.Create != nil, s.Update != nil, s.Delete != nil,
		s.Add != nil, s.Remove != nil, s.Clear != nil,
		s.Watch != nil, s.Unwatch != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// Schema converts the spec into a domain.Schema.
func (s SchemaSpec) Schema() domain.Schema {
	out := domain.Schema{Name: s.Name}
	for _, f := range s.Fields {
		kind, _ := domain.ParseKind(f.Kind)
		out.Fields = append(out.Fields, domain.Field{
			Name:        f.Name,
			Kind:        kind,
			Target:      f.Target,
			RelatedName: f.RelatedName,
			Through:     f.Through,
			Unique:      f.Unique,
			Nullable:    f.Nullable,
			TypeField:   f.TypeField,
			IDField:     f.IDField,
		})
	}
	return out
}
