// Package registry holds the target-field registry: the named fields the
// enrichment stage asks the parsing collaborator to extract. The registry
// is static configuration handed to the coordinator, not ambient state.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field describes one extractable field.
type Field struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Defaults returns the built-in target fields used when no registry file or
// explicit field list is given.
func Defaults() []Field {
	return []Field{
		{Name: "pricing", Description: "pricing or plan information on the page"},
		{Name: "changelog", Description: "release notes or changelog entries"},
	}
}

// Load reads a field registry from a YAML file with a top-level "fields"
// list. An empty file yields an empty registry, not an error.
func Load(path string) ([]Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var wrapper struct {
		Fields []Field `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	return wrapper.Fields, nil
}

// Names flattens a field list to its names.
func Names(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
