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

func TestNuGetConfigReaderReadsSourcesAndPackagesFolder(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "NuGet.config", `<?xml version="1.0" encoding="utf-8"?>
<configuration>
  <config>
    <add key="globalPackagesFolder" value=".packages" />
  </config>
  <packageSources>
    <add key="machine" value="https://machine.example.com/v3/index.json" />
    <clear />
    <add key="nuget.org" value="https://api.nuget.org/v3-flatcontainer" />
    <add key="local" value="feeds/local" />
    <add key="offline" value="/srv/offline" />
  </packageSources>
  <disabledPackageSources>
    <add key="offline" value="true" />
  </disabledPackageSources>
</configuration>
`)

	config, err := NewNuGetConfigReader().ReadNuGetConfig(path)
	require.NoError(t, err)

	want := types.RestoreConfig{
		Sources: []string{
			"https://api.nuget.org/v3-flatcontainer",
			filepath.Join(dir, "feeds", "local"),
		},
		PackagesPath: filepath.Join(dir, ".packages"),
		ConfigFile:   path,
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("restore config mismatch (-want +got):\n%s", diff)
	}
}

func TestNuGetConfigReaderErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewNuGetConfigReader().ReadNuGetConfig(filepath.Join(dir, "missing.config"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))

	path := writeTempFile(t, dir, "NuGet.config", `<Project />`)
	_, err = NewNuGetConfigReader().ReadNuGetConfig(path)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
