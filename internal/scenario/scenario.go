// Package scenario loads a declarative YAML description of objects and
// components to wire up into a cistron.World for the demo binary.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes a set of objects and the named components each
// should receive, in order.
type Scenario struct {
	Objects []ObjectSpec `yaml:"objects"`
}

// ObjectSpec describes one object and the components to adopt onto it.
type ObjectSpec struct {
	Name       string          `yaml:"name"`
	Components []ComponentSpec `yaml:"components"`
}

// ComponentSpec names a component kind and its construction arguments.
// The demo binary's factory maps Kind to a constructor; arguments are
// passed through as an opaque map so the core scenario format stays
// independent of any particular component's field names.
type ComponentSpec struct {
	Kind string         `yaml:"kind"`
	Args map[string]any `yaml:"args"`
}

// Load reads and parses a scenario file from path.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return s, nil
}

// DefaultSearchPaths returns the scenario file search order: only the
// explicit path when one is given, otherwise scenario.yaml and then
// examples/scenario.yaml, relative to the process's working directory.
func DefaultSearchPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	return []string{"scenario.yaml", "examples/scenario.yaml"}
}

// Find locates a scenario file: explicit if non-empty (with no
// fallback), otherwise the first default path that exists.
func Find(explicit string) (string, error) {
	for _, p := range DefaultSearchPaths(explicit) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no scenario file found (searched: %v)", DefaultSearchPaths(explicit))
}
