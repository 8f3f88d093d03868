package types

import "fmt"

// GateConfig represents a collection of specifications and suites
type GateConfig struct {
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description"`
	Inherits    []string               `yaml:"inherits,omitempty"`
	Specs       []SpecConfig           `yaml:"specs,omitempty"`
	Suites      map[string]SuiteConfig `yaml:"suites,omitempty"`
}

// ResolveInherited merges the selections of every gate listed in Inherits
// into this gate, recursively.
//
// - Suites: parent suites are only inherited if the child has no suite with that ID
// - Specs: parent selections are merged, deduplicated by origin:name
// - More distant ancestors are resolved before their children
func (g *GateConfig) ResolveInherited(gates map[string]GateConfig) error {
	processed := make(map[string]bool)
	return g.resolveInheritedRecursive(gates, processed)
}

func (g *GateConfig) resolveInheritedRecursive(gates map[string]GateConfig, processed map[string]bool) error {
	if len(g.Inherits) == 0 {
		return nil
	}

	mergedSuites := make(map[string]SuiteConfig)
	var mergedSpecs []SpecConfig
	seenSpecs := make(map[string]bool)

	// The gate's own selections take precedence
	for k, v := range g.Suites {
		mergedSuites[k] = v
	}
	for _, s := range g.Specs {
		if !seenSpecs[s.Key()] {
			mergedSpecs = append(mergedSpecs, s)
			seenSpecs[s.Key()] = true
		}
	}

	for _, inheritFrom := range g.Inherits {
		if processed[inheritFrom] {
			return fmt.Errorf("circular inheritance detected for gate %q", inheritFrom)
		}

		parent, ok := gates[inheritFrom]
		if !ok {
			return fmt.Errorf("gate %q inherits from non-existent gate %q", g.ID, inheritFrom)
		}

		processed[inheritFrom] = true

		if err := parent.resolveInheritedRecursive(gates, processed); err != nil {
			return fmt.Errorf("resolving inheritance for parent gate %q: %w", inheritFrom, err)
		}

		for k, v := range parent.Suites {
			if _, exists := mergedSuites[k]; !exists {
				mergedSuites[k] = v
			}
		}

		for _, s := range parent.Specs {
			if !seenSpecs[s.Key()] {
				mergedSpecs = append(mergedSpecs, s)
				seenSpecs[s.Key()] = true
			}
		}

		processed[inheritFrom] = false
	}

	g.Suites = mergedSuites
	g.Specs = mergedSpecs
	return nil
}
