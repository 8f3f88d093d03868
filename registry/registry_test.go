package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum-optimism/infra/op-specrun/discovery"
	"github.com/ethereum-optimism/infra/op-specrun/spec"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(names ...string) func() []*spec.Specification {
	return func() []*spec.Specification {
		specs := make([]*spec.Specification, 0, len(names))
		for _, n := range names {
			specs = append(specs, &spec.Specification{Name: n, On: spec.Given(0)})
		}
		return specs
	}
}

func testDiscoverer() *discovery.Discoverer {
	d := discovery.New(log.NewLogger(log.DiscardHandler()))
	d.Register("ledger.deposits", named("deposit increases balance", "deposit of zero is rejected"))
	d.Register("ledger.withdrawals", named("withdraw decreases balance", "overdraft is rejected"))
	d.Register("audit.trail", named("every transfer is recorded"))
	return d
}

func writePlan(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewRegistry(t *testing.T) {
	validPlan := writePlan(t, `
gates:
  - id: ledger
    description: "Ledger behaviour"
    specs:
      - origin: "ledger.*"
`)

	tests := []struct {
		name    string
		content string
		path    string
		wantErr string
	}{
		{
			name: "valid plan",
			path: validPlan,
		},
		{
			name:    "missing file",
			path:    "nonexistent.yaml",
			wantErr: "reading plan file",
		},
		{
			name: "invalid yaml",
			content: `
gates:
  - id: [broken
`,
			wantErr: "parsing plan file",
		},
		{
			name: "invalid origin pattern",
			content: `
gates:
  - id: ledger
    specs:
      - origin: "ledger.[*"
`,
			wantErr: "invalid origin pattern",
		},
		{
			name: "missing origin",
			content: `
gates:
  - id: ledger
    specs:
      - name: "deposit*"
`,
			wantErr: "missing an origin",
		},
		{
			name: "duplicate gate",
			content: `
gates:
  - id: ledger
  - id: ledger
`,
			wantErr: "duplicate gate ledger",
		},
		{
			name: "circular inheritance",
			content: `
gates:
  - id: a
    inherits: [b]
  - id: b
    inherits: [a]
`,
			wantErr: "circular inheritance detected",
		},
		{
			name: "dangling inheritance",
			content: `
gates:
  - id: a
    inherits: [missing]
`,
			wantErr: "inherits from non-existent gate missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = writePlan(t, tt.content)
			}
			r, err := NewRegistry(Config{
				Log:        log.NewLogger(log.DiscardHandler()),
				PlanFile:   path,
				Discoverer: testDiscoverer(),
			})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, r.GetConfig().PlanFile)
		})
	}
}

func TestPlanWithoutFileRunsEverything(t *testing.T) {
	r, err := NewRegistry(Config{
		Log:        log.NewLogger(log.DiscardHandler()),
		Discoverer: testDiscoverer(),
	})
	require.NoError(t, err)

	planned := r.Plan()
	require.Len(t, planned, 5)
	for _, p := range planned {
		assert.Equal(t, DefaultGate, p.Gate)
		assert.Empty(t, p.Suite)
	}
}

func TestPlanAssignsSuitesBeforeDirectSpecs(t *testing.T) {
	path := writePlan(t, `
gates:
  - id: ledger
    suites:
      rejections:
        description: "Rejected operations"
        specs:
          - origin: "ledger.*"
            name: "*rejected"
    specs:
      - origin: "ledger.*"
`)
	r, err := NewRegistry(Config{
		Log:        log.NewLogger(log.DiscardHandler()),
		PlanFile:   path,
		Discoverer: testDiscoverer(),
	})
	require.NoError(t, err)

	planned := r.Plan()
	require.Len(t, planned, 4)

	suites := map[string]string{}
	for _, p := range planned {
		assert.Equal(t, "ledger", p.Gate)
		suites[p.Name()] = p.Suite
	}
	assert.Equal(t, map[string]string{
		"deposit of zero is rejected": "rejections",
		"overdraft is rejected":       "rejections",
		"deposit increases balance":   "",
		"withdraw decreases balance":  "",
	}, suites)

	// Suite members come first
	assert.Equal(t, "rejections", planned[0].Suite)
	assert.Equal(t, "rejections", planned[1].Suite)
}

func TestPlanResolvesInheritance(t *testing.T) {
	path := writePlan(t, `
gates:
  - id: core
    specs:
      - origin: "ledger.deposits"
  - id: release
    inherits: [core]
    specs:
      - origin: "audit.**"
`)
	r, err := NewRegistry(Config{
		Log:        log.NewLogger(log.DiscardHandler()),
		PlanFile:   path,
		Discoverer: testDiscoverer(),
	})
	require.NoError(t, err)

	gates := r.Gates()
	require.Len(t, gates, 2)
	assert.Equal(t, []types.SpecConfig{{Origin: "audit.**"}, {Origin: "ledger.deposits"}}, gates[1].Specs)

	assert.Len(t, r.PlanGate("core"), 2)
	release := r.PlanGate("release")
	require.Len(t, release, 3)
	assert.Equal(t, "deposit increases balance", release[0].Name())
	assert.Equal(t, "every transfer is recorded", release[2].Name())
}

func TestPlanDiscoversAfreshEachCall(t *testing.T) {
	d := testDiscoverer()
	r, err := NewRegistry(Config{Log: log.NewLogger(log.DiscardHandler()), Discoverer: d})
	require.NoError(t, err)

	first := r.Plan()
	d.Register("ledger.late", named("late registration"))
	second := r.Plan()

	assert.Len(t, first, 5)
	assert.Len(t, second, 6)
	assert.NotSame(t, first[0].Specification, second[0].Specification)
}

func TestPlanGivesEachGateItsOwnInstances(t *testing.T) {
	path := writePlan(t, `
gates:
  - id: core
    specs:
      - origin: "ledger.deposits"
  - id: release
    inherits: [core]
`)
	r, err := NewRegistry(Config{
		Log:        log.NewLogger(log.DiscardHandler()),
		PlanFile:   path,
		Discoverer: testDiscoverer(),
	})
	require.NoError(t, err)

	planned := r.Plan()
	require.Len(t, planned, 4)

	byGate := map[string][]types.PlannedSpecification{}
	for _, p := range planned {
		byGate[p.Gate] = append(byGate[p.Gate], p)
	}
	core, release := byGate["core"], byGate["release"]
	require.Len(t, core, 2)
	require.Len(t, release, 2)
	for i := range core {
		assert.Equal(t, core[i].Name(), release[i].Name())
		assert.Equal(t, core[i].Origin, release[i].Origin)
		assert.NotSame(t, core[i].Specification, release[i].Specification)
	}
}

func TestMatches(t *testing.T) {
	entry := types.Runnable(&spec.Specification{Name: "overdraft is rejected"}, types.Origin{
		Type:   "ledger.AccountSpecs",
		Member: "Withdrawals",
		Kind:   types.MemberField,
	})

	tests := []struct {
		name      string
		selection types.SpecConfig
		want      bool
	}{
		{"exact origin", types.SpecConfig{Origin: "ledger.AccountSpecs.Withdrawals"}, true},
		{"origin glob", types.SpecConfig{Origin: "ledger.*"}, true},
		{"match all", types.SpecConfig{Origin: "**"}, true},
		{"other origin", types.SpecConfig{Origin: "audit.*"}, false},
		{"name glob", types.SpecConfig{Origin: "ledger.*", Name: "overdraft*"}, true},
		{"name mismatch", types.SpecConfig{Origin: "ledger.*", Name: "deposit*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.selection, entry))
		})
	}
}
