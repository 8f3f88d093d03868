package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateConfig_ResolveInherited(t *testing.T) {
	tests := []struct {
		name    string
		gates   map[string]GateConfig
		gateID  string
		want    GateConfig
		wantErr string
	}{
		{
			name: "single level inheritance",
			gates: map[string]GateConfig{
				"core": {
					ID:    "core",
					Specs: []SpecConfig{{Origin: "ledger.Core*"}},
					Suites: map[string]SuiteConfig{
						"accounts": {
							Description: "Account specs",
							Specs:       []SpecConfig{{Origin: "ledger.AccountSpecs.*"}},
						},
					},
				},
				"release": {
					ID:       "release",
					Inherits: []string{"core"},
					Specs:    []SpecConfig{{Origin: "ledger.Release*"}},
				},
			},
			gateID: "release",
			want: GateConfig{
				Specs: []SpecConfig{
					{Origin: "ledger.Release*"},
					{Origin: "ledger.Core*"},
				},
				Suites: map[string]SuiteConfig{
					"accounts": {
						Description: "Account specs",
						Specs:       []SpecConfig{{Origin: "ledger.AccountSpecs.*"}},
					},
				},
			},
		},
		{
			name: "multi-level inheritance with dedup",
			gates: map[string]GateConfig{
				"base": {
					ID:    "base",
					Specs: []SpecConfig{{Origin: "a.*"}, {Origin: "b.*", Name: "*overdraft*"}},
				},
				"mid": {
					ID:       "mid",
					Inherits: []string{"base"},
					Specs:    []SpecConfig{{Origin: "a.*"}},
				},
				"top": {
					ID:       "top",
					Inherits: []string{"mid"},
					Specs:    []SpecConfig{{Origin: "c.*"}},
				},
			},
			gateID: "top",
			want: GateConfig{
				Specs: []SpecConfig{
					{Origin: "c.*"},
					{Origin: "a.*"},
					{Origin: "b.*", Name: "*overdraft*"},
				},
				Suites: map[string]SuiteConfig{},
			},
		},
		{
			name: "suite override in child",
			gates: map[string]GateConfig{
				"parent": {
					ID: "parent",
					Suites: map[string]SuiteConfig{
						"deposits": {Description: "Parent suite", Specs: []SpecConfig{{Origin: "p.*"}}},
					},
				},
				"child": {
					ID:       "child",
					Inherits: []string{"parent"},
					Suites: map[string]SuiteConfig{
						"deposits": {Description: "Child suite", Specs: []SpecConfig{{Origin: "c.*"}}},
					},
				},
			},
			gateID: "child",
			want: GateConfig{
				Suites: map[string]SuiteConfig{
					"deposits": {Description: "Child suite", Specs: []SpecConfig{{Origin: "c.*"}}},
				},
			},
		},
		{
			name: "circular inheritance",
			gates: map[string]GateConfig{
				"gate1": {ID: "gate1", Inherits: []string{"gate2"}},
				"gate2": {ID: "gate2", Inherits: []string{"gate1"}},
			},
			gateID:  "gate1",
			wantErr: `circular inheritance detected for gate "gate2"`,
		},
		{
			name: "non-existent parent",
			gates: map[string]GateConfig{
				"child": {ID: "child", Inherits: []string{"missing-parent"}},
			},
			gateID:  "child",
			wantErr: `gate "child" inherits from non-existent gate "missing-parent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := tt.gates[tt.gateID]
			err := gate.ResolveInherited(tt.gates)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Specs, gate.Specs)
			assert.Equal(t, tt.want.Suites, gate.Suites)
		})
	}
}

func TestSpecConfig_Key(t *testing.T) {
	assert.Equal(t, "ledger.*", SpecConfig{Origin: "ledger.*"}.Key())
	assert.Equal(t, "ledger.*:*deposit*", SpecConfig{Origin: "ledger.*", Name: "*deposit*"}.Key())
}
