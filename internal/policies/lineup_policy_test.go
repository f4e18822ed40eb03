package policies

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

func universe() fakeLineups {
	return fakeLineups{
		"Universe/1.0.0": {
			{TargetFramework: "netcoreapp1.0", Dependencies: []types.PackageDependency{{ID: "Microsoft.Extensions.Logging", VersionRange: "[1.0.0]"}}},
			{TargetFramework: "netcoreapp1.1", Dependencies: []types.PackageDependency{{ID: "Microsoft.Extensions.Logging", VersionRange: "[1.1.0]"}}},
			{TargetFramework: "netcoreapp2.0", Dependencies: []types.PackageDependency{{ID: "Microsoft.Extensions.Logging", VersionRange: "[2.0.0]"}}},
			{TargetFramework: "aspnetcore2.1", Dependencies: []types.PackageDependency{{ID: "Microsoft.Extensions.Logging", VersionRange: "[2.1.0]"}}},
			{TargetFramework: "", Dependencies: []types.PackageDependency{
				{ID: "Microsoft.Extensions.Logging", VersionRange: "0.9.0"},
				{ID: "Newtonsoft.Json", VersionRange: "10.0.1"},
			}},
		},
		"Other/2.0.0": {
			{TargetFramework: "netstandard2.0", Dependencies: []types.PackageDependency{{ID: "Newtonsoft.Json", VersionRange: "11.0.2"}}},
		},
	}
}

func TestLineupPolicyPinsUnversionedReferences(t *testing.T) {
	logger := &fakeLogger{}
	pc := newTestContext(logger, universe(),
		testProject("/src/A/A.csproj", "netcoreapp1.1",
			types.PackageReferenceInfo{ID: "Microsoft.Extensions.Logging"},
			types.PackageReferenceInfo{ID: "Newtonsoft.Json", Version: "9.0.1"},
			types.PackageReferenceInfo{ID: "Unlisted.Package"},
		),
	)
	policy := &LineupPolicy{Lineups: []types.LineupRef{{ID: "Universe", Version: "1.0.0"}}}
	require.NoError(t, policy.Apply(context.Background(), pc))

	want := []types.PackageVersionEdit{{
		ProjectPath:         "/src/A/A.csproj",
		TargetFramework:     "netcoreapp1.1",
		PackageID:           "Microsoft.Extensions.Logging",
		Version:             "1.1.0",
		IsImplicitlyDefined: true,
		Source:              TypeLineup,
	}}
	if diff := cmp.Diff(want, pc.Edits.All()); diff != "" {
		t.Fatalf("unexpected edits (-want +got):\n%s", diff)
	}
	require.NotNil(t, pc.Versions)
	assert.False(t, logger.HasLoggedErrors())
}

func TestLineupPolicyOverwritesImplicitReferences(t *testing.T) {
	pc := newTestContext(&fakeLogger{}, universe(),
		testProject("/src/A/A.csproj", "net461",
			types.PackageReferenceInfo{ID: "Newtonsoft.Json", Version: "9.0.1", IsImplicitlyDefined: true},
		),
	)
	policy := &LineupPolicy{Lineups: []types.LineupRef{{ID: "Universe", Version: "1.0.0"}}}
	require.NoError(t, policy.Apply(context.Background(), pc))

	edit, ok := pc.Edits.Get("/src/A/A.csproj", "net461", "newtonsoft.json")
	require.True(t, ok)
	assert.Equal(t, "10.0.1", edit.Version)
}

func TestLineupPolicyPrecedenceFromConfig(t *testing.T) {
	pc := newTestContext(&fakeLogger{}, universe(),
		testProject("/src/A/A.csproj", "netcoreapp2.0", types.PackageReferenceInfo{ID: "Newtonsoft.Json"}),
	)
	pc.Config.Precedence = types.PrecedenceStrict
	policy := &LineupPolicy{Lineups: []types.LineupRef{{ID: "Other", Version: "2.0.0"}, {ID: "Universe", Version: "1.0.0"}}}

	// netstandard2.0 from Other is nearer than Universe's agnostic group, so
	// the lineups do not compete and strict mode stays quiet.
	require.NoError(t, policy.Apply(context.Background(), pc))
	edit, ok := pc.Edits.Get("/src/A/A.csproj", "netcoreapp2.0", "Newtonsoft.Json")
	require.True(t, ok)
	assert.Equal(t, "11.0.2", edit.Version)
}

func TestLineupPolicyStrictAmbiguityFails(t *testing.T) {
	lineups := fakeLineups{
		"A/1.0.0": {{TargetFramework: "netstandard2.0", Dependencies: []types.PackageDependency{{ID: "Foo", VersionRange: "1.0.0"}}}},
		"B/1.0.0": {{TargetFramework: "netstandard2.0", Dependencies: []types.PackageDependency{{ID: "Foo", VersionRange: "2.0.0"}}}},
	}
	pc := newTestContext(&fakeLogger{}, lineups, testProject("/p.csproj", "netcoreapp2.0", types.PackageReferenceInfo{ID: "Foo"}))
	policy := &LineupPolicy{
		Precedence: types.PrecedenceStrict,
		Lineups:    []types.LineupRef{{ID: "A", Version: "1.0.0"}, {ID: "B", Version: "1.0.0"}},
	}
	err := policy.Apply(context.Background(), pc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A/1.0.0=1.0.0, B/1.0.0=2.0.0")
	assert.Equal(t, 0, pc.Edits.Len())
}

func TestLineupPolicyMissingLineup(t *testing.T) {
	pc := newTestContext(&fakeLogger{}, universe())
	policy := &LineupPolicy{Lineups: []types.LineupRef{{ID: "Missing", Version: "1.0.0"}}}
	require.Error(t, policy.Apply(context.Background(), pc))
}
