package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

func projectWith(path string, refs ...types.PackageReferenceInfo) types.ProjectInfo {
	deps := map[string]types.PackageReferenceInfo{}
	for _, ref := range refs {
		deps[ref.ID] = ref
	}
	return types.ProjectInfo{
		FullPath:   path,
		Frameworks: []types.ProjectFrameworkInfo{{TargetFramework: "netcoreapp2.0", Dependencies: deps}},
	}
}

func TestDetectConflictsReportsSingleConflict(t *testing.T) {
	report := DetectConflicts([]types.ProjectInfo{
		projectWith("/src/A/A.csproj", types.PackageReferenceInfo{ID: "Newtonsoft.Json", Version: "10.0.1"}),
		projectWith("/src/B/B.csproj", types.PackageReferenceInfo{ID: "newtonsoft.json", Version: "11.0.2"}),
	})

	require.True(t, report.HasConflicts())
	want := []types.VersionConflict{{
		PackageID: "Newtonsoft.Json",
		References: []types.ConflictReference{
			{ProjectPath: "/src/A/A.csproj", Version: "10.0.1"},
			{ProjectPath: "/src/B/B.csproj", Version: "11.0.2"},
		},
	}}
	if diff := cmp.Diff(want, report.Conflicts); diff != "" {
		t.Fatalf("unexpected conflicts (-want +got):\n%s", diff)
	}
	message := FormatConflict(report.Conflicts[0])
	assert.Contains(t, message, "/src/A/A.csproj (10.0.1)")
	assert.Contains(t, message, "/src/B/B.csproj (11.0.2)")
}

func TestDetectConflictsNormalizesEqualVersions(t *testing.T) {
	report := DetectConflicts([]types.ProjectInfo{
		projectWith("/a.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "1.0"}),
		projectWith("/b.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "1.0.0"}),
	})
	assert.False(t, report.HasConflicts())
}

func TestDetectConflictsHonorsSuppression(t *testing.T) {
	report := DetectConflicts([]types.ProjectInfo{
		projectWith("/a.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "1.0.0"}),
		projectWith("/b.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "2.0.0", NoWarn: []string{"NU1603", "KRB3001"}}),
	})
	assert.False(t, report.HasConflicts())
}

func TestDetectConflictsSkipsImplicitAndVariables(t *testing.T) {
	report := DetectConflicts([]types.ProjectInfo{
		projectWith("/a.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "1.0.0"}),
		projectWith("/b.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "2.0.0", IsImplicitlyDefined: true}),
		projectWith("/c.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "$(FooPackageVersion)"}),
	})
	assert.False(t, report.HasConflicts())
}

func TestDetectConflictsFloatingWarnings(t *testing.T) {
	report := DetectConflicts([]types.ProjectInfo{
		projectWith("/a.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "1.0.*"}),
		projectWith("/b.csproj", types.PackageReferenceInfo{ID: "Foo", Version: "1.0.0"}),
	})
	assert.False(t, report.HasConflicts())
	want := []types.FloatingReference{{PackageID: "Foo", ProjectPath: "/a.csproj", Version: "1.0.*"}}
	if diff := cmp.Diff(want, report.Floating); diff != "" {
		t.Fatalf("unexpected floating references (-want +got):\n%s", diff)
	}
}
