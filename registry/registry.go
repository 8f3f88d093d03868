package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ethereum-optimism/infra/op-specrun/discovery"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// DefaultGate is the gate every specification is placed in when no plan file is configured.
const DefaultGate = "default"

// Registry places discovered specifications into the gates and suites of a run plan
type Registry struct {
	config Config
	gates  []types.GateConfig
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log        log.Logger
	PlanFile   string               // Optional, without a plan everything runs in DefaultGate
	Discoverer *discovery.Discoverer // Defaults to discovery.Default
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Discoverer == nil {
		cfg.Discoverer = discovery.Default
	}

	r := &Registry{
		config: cfg,
	}

	if cfg.PlanFile == "" {
		r.gates = []types.GateConfig{{
			ID:          DefaultGate,
			Description: "All discovered specifications",
			Specs:       []types.SpecConfig{{Origin: "**"}},
		}}
		cfg.Log.Debug("No plan file configured, running every discovered specification")
		return r, nil
	}

	if err := r.loadPlan(cfg.PlanFile); err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(gates)", len(r.gates))

	return r, nil
}

// loadPlan reads the plan, checks its patterns and resolves gate inheritance
func (r *Registry) loadPlan(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := validatePatterns(plan); err != nil {
		return err
	}

	if err := r.validateGateInheritance(plan); err != nil {
		return fmt.Errorf("failed to resolve gate inheritance: %w", err)
	}

	r.gates = plan.Gates
	return nil
}

func validatePatterns(plan *types.PlanConfig) error {
	check := func(gateID string, specs []types.SpecConfig) error {
		for _, s := range specs {
			if s.Origin == "" {
				return fmt.Errorf("gate %s: spec selection is missing an origin", gateID)
			}
			if !doublestar.ValidatePattern(s.Origin) {
				return fmt.Errorf("gate %s: invalid origin pattern %q", gateID, s.Origin)
			}
			if s.Name != "" && !doublestar.ValidatePattern(s.Name) {
				return fmt.Errorf("gate %s: invalid name pattern %q", gateID, s.Name)
			}
		}
		return nil
	}

	seen := make(map[string]bool)
	for _, gate := range plan.Gates {
		if gate.ID == "" {
			return fmt.Errorf("gate is missing an id")
		}
		if seen[gate.ID] {
			return fmt.Errorf("duplicate gate %s", gate.ID)
		}
		seen[gate.ID] = true

		if err := check(gate.ID, gate.Specs); err != nil {
			return err
		}
		for _, suite := range gate.Suites {
			if err := check(gate.ID, suite.Specs); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateGateInheritance checks gate inheritance resolution
func (r *Registry) validateGateInheritance(plan *types.PlanConfig) error {
	if plan.Gates == nil {
		return nil
	}

	gateMap := make(map[string]types.GateConfig)
	for _, gate := range plan.Gates {
		gateMap[gate.ID] = gate
	}

	for _, gate := range plan.Gates {
		if err := checkCircularInheritance(gate.ID, gate.Inherits, gateMap, make(map[string]bool)); err != nil {
			return fmt.Errorf("circular inheritance detected: %w", err)
		}
	}

	for i := range plan.Gates {
		if err := plan.Gates[i].ResolveInherited(gateMap); err != nil {
			return fmt.Errorf("invalid gate inheritance: %w", err)
		}
	}

	return nil
}

// checkCircularInheritance detects circular dependencies in gate inheritance
func checkCircularInheritance(currentID string, inherits []string, gateMap map[string]types.GateConfig, visited map[string]bool) error {
	if visited[currentID] {
		return fmt.Errorf("circular inheritance detected at gate %s", currentID)
	}

	visited[currentID] = true
	defer delete(visited, currentID)

	for _, inheritedID := range inherits {
		inherited, exists := gateMap[inheritedID]
		if !exists {
			return fmt.Errorf("gate %s inherits from non-existent gate %s", currentID, inheritedID)
		}

		if err := checkCircularInheritance(inheritedID, inherited.Inherits, gateMap, visited); err != nil {
			return err
		}
	}

	return nil
}

// Gates returns the resolved gates in plan order
func (r *Registry) Gates() []types.GateConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gates
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// Plan discovers specifications afresh and places them into the plan.
//
// Within a gate, suites are matched before the gate's direct selections and
// the first matching selection wins. A specification may be planned in several
// gates; each gate runs discovery itself so no placement shares an instance
// with another. Specifications no gate selects are not planned.
func (r *Registry) Plan() []types.PlannedSpecification {
	var planned []types.PlannedSpecification
	unselected := make(map[string]types.SpecificationToRun)
	selected := make(map[string]bool)

	for _, gate := range r.Gates() {
		found := r.config.Discoverer.Discover()

		suiteIDs := make([]string, 0, len(gate.Suites))
		for id := range gate.Suites {
			suiteIDs = append(suiteIDs, id)
		}
		sort.Strings(suiteIDs)

		placed := make([]bool, len(found))
		for _, suiteID := range suiteIDs {
			for i, entry := range found {
				if placed[i] || !matchesAny(gate.Suites[suiteID].Specs, entry) {
					continue
				}
				placed[i] = true
				planned = append(planned, types.PlannedSpecification{SpecificationToRun: entry, Gate: gate.ID, Suite: suiteID})
			}
		}
		for i, entry := range found {
			if placed[i] || !matchesAny(gate.Specs, entry) {
				continue
			}
			placed[i] = true
			planned = append(planned, types.PlannedSpecification{SpecificationToRun: entry, Gate: gate.ID})
		}

		for i, entry := range found {
			key := entry.Origin.ID() + "/" + entry.Name()
			if placed[i] {
				selected[key] = true
				delete(unselected, key)
			} else if !selected[key] {
				unselected[key] = entry
			}
		}
	}

	keys := make([]string, 0, len(unselected))
	for key := range unselected {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := unselected[key]
		r.config.Log.Debug("Specification not selected by any gate", "origin", entry.Origin.ID(), "name", entry.Name())
	}

	return planned
}

// PlanGate returns the planned specifications of a single gate
func (r *Registry) PlanGate(gateID string) []types.PlannedSpecification {
	var planned []types.PlannedSpecification
	for _, p := range r.Plan() {
		if p.Gate == gateID {
			planned = append(planned, p)
		}
	}
	return planned
}

func matchesAny(selections []types.SpecConfig, entry types.SpecificationToRun) bool {
	for _, s := range selections {
		if Matches(s, entry) {
			return true
		}
	}
	return false
}

// Matches reports whether a plan selection selects the entry. The origin
// pattern is matched against the qualified origin ID and the optional name
// pattern against the resolved specification name.
func Matches(selection types.SpecConfig, entry types.SpecificationToRun) bool {
	ok, err := doublestar.Match(selection.Origin, entry.Origin.ID())
	if err != nil || !ok {
		return false
	}
	if selection.Name == "" {
		return true
	}
	ok, err = doublestar.Match(selection.Name, entry.Name())
	return err == nil && ok
}

// loadConfig loads a run plan from a file
func loadConfig(path string) (*types.PlanConfig, error) {
	log.Debug("Reading plan file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	var cfg types.PlanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}

	return &cfg, nil
}
