package types

// PlanConfig represents the complete run plan
type PlanConfig struct {
	Gates []GateConfig `yaml:"gates"`
}

// SpecConfig selects discovered specifications by origin and, optionally, by name.
// Both fields are glob patterns matched with doublestar semantics.
type SpecConfig struct {
	Origin string `yaml:"origin"`
	Name   string `yaml:"name,omitempty"`
}

// Key returns the deduplication key used when merging inherited gates
func (s SpecConfig) Key() string {
	if s.Name == "" {
		return s.Origin
	}
	return s.Origin + ":" + s.Name
}

// SuiteConfig represents a collection of related specifications
type SuiteConfig struct {
	Description string       `yaml:"description"`
	Specs       []SpecConfig `yaml:"specs"`
}

// PlannedSpecification places a discovered specification in a gate and, optionally, a suite.
type PlannedSpecification struct {
	SpecificationToRun
	Gate  string
	Suite string
}
