// Package cli implements the CLI tool adapter: YAML tool definitions,
// recipe/preset-to-argv command building, and process execution.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kagent-dev/codesession/internal/errs"
)

// OptionType is the declared type of a CLI schema option/positional.
type OptionType string

const (
	TypeBoolean OptionType = "boolean"
	TypeString  OptionType = "string"
	TypeInteger OptionType = "integer"
	TypeArray   OptionType = "array"
)

// Option is one entry in schema.options.
type Option struct {
	Name        string     `yaml:"-"`
	Type        OptionType `yaml:"type"`
	Short       string     `yaml:"short,omitempty"`
	Description string     `yaml:"description,omitempty"`
}

// Positional is one entry in schema.positional.
type Positional struct {
	Name        string     `yaml:"name"`
	Type        OptionType `yaml:"type"`
	Required    bool       `yaml:"required"`
	Description string     `yaml:"description,omitempty"`
}

// Schema is the parsed schema block of a tool definition.
type Schema struct {
	// Options preserves YAML declaration order; insertion order only
	// matters for help rendering, but argv emission also follows it
	// (spec.md §4.C.3), so order is significant here too.
	Options    []Option
	Positional []Positional
}

// Recipe is one entry in the recipes mapping.
type Recipe struct {
	Description string
	Preset      map[string]any
	Params      map[string]ParamSpec
}

// ParamSpec is the value of one recipes.<name>.params.<name> entry.
type ParamSpec struct {
	Default any
	HasDefault bool
}

// ToolDefinition is a fully parsed CLI tool YAML file.
type ToolDefinition struct {
	Name        string
	Description string
	Command     string
	TimeoutSec  int
	Tags        []string
	Schema      Schema
	Recipes     map[string]Recipe
}

// rawYAML mirrors the external YAML shape from spec.md §6.
type rawYAML struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Command     string   `yaml:"command"`
	Timeout     int      `yaml:"timeout"`
	Tags        []string `yaml:"tags"`
	Schema      struct {
		Options    yaml.Node `yaml:"options"`
		Positional []Positional `yaml:"positional"`
	} `yaml:"schema"`
	Recipes map[string]struct {
		Description string         `yaml:"description"`
		Preset      map[string]any `yaml:"preset"`
		Params      yaml.Node      `yaml:"params"`
	} `yaml:"recipes"`
}

// ParseDefinition parses a single tool YAML file's contents.
func ParseDefinition(data []byte) (ToolDefinition, error) {
	var raw rawYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ToolDefinition{}, errs.Wrap(errs.KindSchemaError, "parsing tool YAML", err)
	}
	if raw.Name == "" {
		return ToolDefinition{}, errs.New(errs.KindSchemaError, "tool definition missing name")
	}
	if raw.Command == "" {
		return ToolDefinition{}, errs.New(errs.KindSchemaError, "CLI tool definition missing command")
	}

	def := ToolDefinition{
		Name:        raw.Name,
		Description: raw.Description,
		Command:     raw.Command,
		TimeoutSec:  raw.Timeout,
		Tags:        raw.Tags,
		Recipes:     map[string]Recipe{},
	}

	opts, err := parseOptions(raw.Schema.Options)
	if err != nil {
		return ToolDefinition{}, err
	}
	def.Schema.Options = opts
	def.Schema.Positional = raw.Schema.Positional

	shorts := map[string]string{}
	for _, o := range opts {
		if o.Short == "" {
			continue
		}
		if prev, dup := shorts[o.Short]; dup {
			return ToolDefinition{}, errs.New(errs.KindSchemaError, fmt.Sprintf("duplicate short alias %q on %q and %q", o.Short, prev, o.Name))
		}
		shorts[o.Short] = o.Name
	}

	known := knownKeys(def.Schema)
	for name, r := range raw.Recipes {
		params, err := parseParams(r.Params)
		if err != nil {
			return ToolDefinition{}, err
		}
		for key := range r.Preset {
			if !known[key] {
				return ToolDefinition{}, errs.New(errs.KindSchemaError, fmt.Sprintf("recipe %q preset references unknown key %q", name, key))
			}
		}
		def.Recipes[name] = Recipe{Description: r.Description, Preset: r.Preset, Params: params}
	}

	return def, nil
}

// parseOptions preserves declaration order from a YAML mapping node, since
// map[string]Option in Go would not.
func parseOptions(node yaml.Node) ([]Option, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errs.New(errs.KindSchemaError, "schema.options must be a mapping")
	}
	var opts []Option
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var o Option
		if err := node.Content[i+1].Decode(&o); err != nil {
			return nil, errs.Wrap(errs.KindSchemaError, "parsing option "+name, err)
		}
		o.Name = name
		opts = append(opts, o)
	}
	return opts, nil
}

func parseParams(node yaml.Node) (map[string]ParamSpec, error) {
	params := map[string]ParamSpec{}
	if node.Kind == 0 {
		return params, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errs.New(errs.KindSchemaError, "recipe params must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var raw struct {
			Default any `yaml:"default"`
		}
		_ = node.Content[i+1].Decode(&raw)
		hasDefault := false
		for j := 0; j+1 < len(node.Content[i+1].Content); j += 2 {
			if node.Content[i+1].Content[j].Value == "default" {
				hasDefault = true
			}
		}
		params[name] = ParamSpec{Default: raw.Default, HasDefault: hasDefault}
	}
	return params, nil
}

func knownKeys(s Schema) map[string]bool {
	known := map[string]bool{}
	for _, o := range s.Options {
		known[o.Name] = true
	}
	for _, p := range s.Positional {
		known[p.Name] = true
	}
	return known
}

// LoadDirectory parses every *.yaml/*.yml file in dir as a tool definition.
func LoadDirectory(dir string) ([]ToolDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindSchemaError, "reading tools directory", err)
	}
	var defs []ToolDefinition
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errs.Wrap(errs.KindSchemaError, "reading "+name, err)
		}
		def, err := ParseDefinition(data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
