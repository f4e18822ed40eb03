package adapters

import (
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

const samplePolicies = `policies:
  - type: lineup
    precedence: strict
    lineups:
      - id: Contoso.Lineup
        version: 2.1.0
  - type: pinned-version
    packages:
      Newtonsoft.Json: 10.0.1
`

func TestConfigFileAdapterLoadPolicies(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "policies.yaml", samplePolicies)
	file, err := NewConfigFileAdapter().LoadPolicies(path)
	require.NoError(t, err)
	require.Len(t, file.Policies, 2)
	assert.Equal(t, "lineup", file.Policies[0].Type)
	assert.Equal(t, "pinned-version", file.Policies[1].Type)

	var settings struct {
		Precedence string            `yaml:"precedence"`
		Lineups    []types.LineupRef `yaml:"lineups"`
	}
	require.NoError(t, file.Policies[0].Settings.Decode(&settings))
	assert.Equal(t, "strict", settings.Precedence)
	assert.Equal(t, []types.LineupRef{{ID: "Contoso.Lineup", Version: "2.1.0"}}, settings.Lineups)
}

func TestConfigFileAdapterLoadPatchConfig(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "patch.yaml", `rules:
  - match: '^Contoso\.'
    current_version: 2.0.0
    new_version: 2.0.1
packages:
  - name: Contoso.Mvc
    current_version: 2.0.0
`)
	config, err := NewConfigFileAdapter().LoadPatchConfig(path)
	require.NoError(t, err)
	want := types.PatchConfig{
		Rules:    []types.PatchRule{{Match: `^Contoso\.`, CurrentVersion: "2.0.0", NewVersion: "2.0.1"}},
		Packages: []types.PatchPackage{{Name: "Contoso.Mvc", CurrentVersion: "2.0.0"}},
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("patch config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileAdapterErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		load     func() error
		wantCode errbuilder.ErrCode
	}{
		{
			name: "missing policy file",
			load: func() error {
				_, err := NewConfigFileAdapter().LoadPolicies(filepath.Join(dir, "none.yaml"))
				return err
			},
			wantCode: errbuilder.CodeNotFound,
		},
		{
			name: "malformed yaml",
			load: func() error {
				_, err := NewConfigFileAdapter().LoadPolicies(writeTempFile(t, dir, "bad.yaml", "policies: [\n"))
				return err
			},
			wantCode: errbuilder.CodeInvalidArgument,
		},
		{
			name: "policy without type",
			load: func() error {
				_, err := NewConfigFileAdapter().LoadPolicies(writeTempFile(t, dir, "untyped.yaml", "policies:\n  - packages: {}\n"))
				return err
			},
			wantCode: errbuilder.CodeInvalidArgument,
		},
		{
			name: "empty patch config",
			load: func() error {
				_, err := NewConfigFileAdapter().LoadPatchConfig(writeTempFile(t, dir, "empty.yaml", "rules: []\n"))
				return err
			},
			wantCode: errbuilder.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.load()
			require.Error(t, err)
			if diff := cmp.Diff(tt.wantCode, errbuilder.CodeOf(err)); diff != "" {
				t.Fatalf("error code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
