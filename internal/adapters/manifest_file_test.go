package adapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

const existingManifest = `<Project>
  <PropertyGroup>
    <MSBuildAllProjects>$(MSBuildAllProjects);$(MSBuildThisFileFullPath)</MSBuildAllProjects>
  </PropertyGroup>
  <PropertyGroup Label="Package Versions">
    <NewtonsoftJsonPackageVersion>10.0.1</NewtonsoftJsonPackageVersion>
    <SerilogPackageVersion>2.5.0</SerilogPackageVersion>
  </PropertyGroup>
  <Import Project="$(DotNetPackageVersionPropsPath)" Condition=" '$(DotNetPackageVersionPropsPath)' != '' " />
  <PropertyGroup Label="Package Versions: Pinned">
    <XunitPackageVersion>2.3.1</XunitPackageVersion>
  </PropertyGroup>
</Project>
`

func TestManifestFileAdapterLoad(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "build/dependencies.props", existingManifest)

	manifest, err := NewManifestFileAdapter().Load(path)
	require.NoError(t, err)

	want := types.VersionManifest{
		Variables: []types.VersionVariable{
			{Name: "NewtonsoftJsonPackageVersion", Value: "10.0.1"},
			{Name: "SerilogPackageVersion", Value: "2.5.0"},
			{Name: "XunitPackageVersion", Value: "2.3.1", IsReadOnly: true},
		},
		HasVersionsPropertyGroup: true,
		OverrideImport:           "$(DotNetPackageVersionPropsPath)",
	}
	if diff := cmp.Diff(want, manifest); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestFileAdapterSaveSortedOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dependencies.props")

	file := core.NewDependencyVersionsFile()
	file.HasVersionsPropertyGroup = true
	file.Set("ZetaPackageVersion", "1.0.0")
	file.Set("AlphaPackageVersion", "2.0.0")
	file.AddPinned("PinnedPackageVersion", "3.0.0")
	file.SetOverrideImport("overrides.props")
	file.SetOverrideImport("other.props")

	adapter := NewManifestFileAdapter()
	result, err := adapter.Save(path, file.Manifest())
	require.NoError(t, err)
	assert.True(t, result.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `<Project>
  <PropertyGroup Label="Package Versions">
    <AlphaPackageVersion>2.0.0</AlphaPackageVersion>
    <ZetaPackageVersion>1.0.0</ZetaPackageVersion>
  </PropertyGroup>
  <Import Project="overrides.props" Condition=" Exists('overrides.props') " />
  <PropertyGroup Label="Package Versions: Pinned">
    <PinnedPackageVersion>3.0.0</PinnedPackageVersion>
  </PropertyGroup>
</Project>
`
	assert.Equal(t, want, string(data))

	again, err := adapter.Save(path, file.Manifest())
	require.NoError(t, err)
	assert.True(t, again.UpToDate)

	reloaded, err := adapter.Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(file.Manifest(), core.FromManifest(reloaded).Manifest()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestFileAdapterWithoutVersionsGroup(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "dependencies.props", `<Project><PropertyGroup><Foo>1</Foo></PropertyGroup></Project>`)
	manifest, err := NewManifestFileAdapter().Load(path)
	require.NoError(t, err)
	assert.False(t, manifest.HasVersionsPropertyGroup)
	assert.Empty(t, manifest.Variables)
}

func TestManifestFileAdapterSaveKeepsExistingDocument(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "build/dependencies.props", existingManifest)
	adapter := NewManifestFileAdapter()
	loaded, err := adapter.Load(path)
	require.NoError(t, err)

	file := core.FromManifest(loaded)
	require.True(t, file.Update("NewtonsoftJsonPackageVersion", "10.0.3"))
	result, err := adapter.Save(path, file.Manifest())
	require.NoError(t, err)
	assert.True(t, result.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := strings.Replace(existingManifest, "10.0.1", "10.0.3", 1)
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}

	again, err := adapter.Save(path, file.Manifest())
	require.NoError(t, err)
	assert.True(t, again.UpToDate)
}

func TestManifestFileAdapterSaveKeepsAutoGroup(t *testing.T) {
	source := `<Project>
  <PropertyGroup Label="Package Versions: Auto">
    <SerilogPackageVersion>2.5.0</SerilogPackageVersion>
  </PropertyGroup>
</Project>
`
	path := writeTempFile(t, t.TempDir(), "dependencies.props", source)
	adapter := NewManifestFileAdapter()
	loaded, err := adapter.Load(path)
	require.NoError(t, err)
	assert.False(t, loaded.HasVersionsPropertyGroup)

	file := core.FromManifest(loaded)
	file.Set("SerilogPackageVersion", "2.6.0")
	file.Set("AutofacPackageVersion", "4.2.0")
	_, err = adapter.Save(path, file.Manifest())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `<Project>
  <PropertyGroup Label="Package Versions: Auto">
    <SerilogPackageVersion>2.6.0</SerilogPackageVersion>
  </PropertyGroup>
  <PropertyGroup Label="Package Versions">
    <AutofacPackageVersion>4.2.0</AutofacPackageVersion>
  </PropertyGroup>
</Project>
`
	assert.Equal(t, want, string(data))
}

func TestManifestFileAdapterSaveInsertsMissingNodes(t *testing.T) {
	source := `<Project>
  <PropertyGroup>
    <Foo>1</Foo>
  </PropertyGroup>
</Project>
`
	path := writeTempFile(t, t.TempDir(), "dependencies.props", source)
	adapter := NewManifestFileAdapter()

	untouched, err := adapter.Save(path, types.VersionManifest{})
	require.NoError(t, err)
	assert.True(t, untouched.UpToDate)

	file := core.NewDependencyVersionsFile()
	file.AddPinned("XunitPackageVersion", "2.3.1")
	file.SetOverrideImport("overrides.props")
	_, err = adapter.Save(path, file.Manifest())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `<Project>
  <PropertyGroup>
    <Foo>1</Foo>
  </PropertyGroup>
  <Import Project="overrides.props" Condition=" Exists('overrides.props') " />
  <PropertyGroup Label="Package Versions: Pinned">
    <XunitPackageVersion>2.3.1</XunitPackageVersion>
  </PropertyGroup>
</Project>
`
	assert.Equal(t, want, string(data))
}

func TestManifestFileAdapterNewFileWithoutVersionsGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependencies.props")
	file := core.NewDependencyVersionsFile()
	file.AddPinned("XunitPackageVersion", "2.3.1")

	_, err := NewManifestFileAdapter().Save(path, file.Manifest())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `Label="Package Versions"`)
	assert.Contains(t, string(data), `Label="Package Versions: Pinned"`)
}
