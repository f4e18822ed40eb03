package adapters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

func TestTargetsExtensionWriter(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "App.csproj")
	edits := []types.PackageVersionEdit{
		{ProjectPath: project, TargetFramework: "netcoreapp2.0", PackageID: "Zeta", Version: "2.0.0", IsImplicitlyDefined: true},
		{ProjectPath: project, TargetFramework: "net461", PackageID: "Alpha", Version: "1.0.0"},
		{ProjectPath: project, TargetFramework: "netcoreapp2.0", PackageID: "alpha", Version: "1.0.0"},
	}
	sources := []string{"https://feed.example/v3/index.json", "/opt/packages"}

	writer := NewTargetsExtensionWriter()
	result, err := writer.Write(project, edits, sources)
	require.NoError(t, err)
	assert.True(t, result.Written)
	assert.Equal(t, filepath.Join(dir, "obj", "App.csproj.korebuild.g.targets"), result.Path)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	want := `<!-- Generated by korebuild-tools. Changes are overwritten. -->
<Project>
  <PropertyGroup>
    <RestoreAdditionalProjectSources>$(RestoreAdditionalProjectSources);https://feed.example/v3/index.json;/opt/packages</RestoreAdditionalProjectSources>
  </PropertyGroup>
  <ItemGroup Condition=" '$(TargetFramework)' == 'net461' ">
    <PackageReference Update="Alpha" Version="1.0.0" />
  </ItemGroup>
  <ItemGroup Condition=" '$(TargetFramework)' == 'netcoreapp2.0' ">
    <PackageReference Update="alpha" Version="1.0.0" />
    <PackageReference Update="Zeta" Version="2.0.0" IsImplicitlyDefined="true" />
  </ItemGroup>
</Project>
`
	assert.Equal(t, want, string(data))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(result.Path, past, past))
	again, err := writer.Write(project, edits, sources)
	require.NoError(t, err)
	assert.True(t, again.UpToDate)
	info, err := os.Stat(result.Path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Before(time.Now().Add(-time.Minute)))
}
