package adapters

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

const multiTargetProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFrameworks>netcoreapp2.0;net461</TargetFrameworks>
    <JsonVersion>10.0.3</JsonVersion>
  </PropertyGroup>
  <Import Project="shared.props" />
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" Version="$(JsonVersion)" />
    <PackageReference Include="Serilog">
      <Version>2.5.0</Version>
      <NoWarn>KRB3001;NU1603</NoWarn>
    </PackageReference>
    <PackageReference Include="Legacy.Only" Version="1.0.0" Condition="'$(TargetFramework)' == 'net461'" />
  </ItemGroup>
  <ItemGroup Condition=" '$(TargetFramework)' != 'net461' ">
    <PackageReference Include="Microsoft.NETCore.App" Version="2.0.0" IsImplicitlyDefined="true" />
    <PackageReference Remove="Serilog" />
  </ItemGroup>
</Project>
`

const sharedProps = `<Project>
  <ItemGroup>
    <PackageReference Include="Shared.Tool" Version="$(SharedToolVersion)" />
  </ItemGroup>
</Project>
`

const buildProps = `<Project>
  <PropertyGroup>
    <SharedToolVersion>4.2.0</SharedToolVersion>
  </PropertyGroup>
</Project>
`

func referenceVersions(fw types.ProjectFrameworkInfo) map[string]string {
	out := map[string]string{}
	for id, ref := range fw.Dependencies {
		out[id] = ref.Version
	}
	return out
}

func TestReadProjectEvaluatesEachFramework(t *testing.T) {
	root := t.TempDir()
	writeTempFile(t, root, "Directory.Build.props", buildProps)
	writeTempFile(t, root, "src/App/shared.props", sharedProps)
	path := writeTempFile(t, root, "src/App/App.csproj", multiTargetProject)

	reader := NewProjectReaderAdapter()
	info, err := reader.ReadProject(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, info.FullPath)
	require.Len(t, info.Frameworks, 2)
	assert.Equal(t, "netcoreapp2.0", info.Frameworks[0].TargetFramework)
	assert.Equal(t, "net461", info.Frameworks[1].TargetFramework)

	wantCore := map[string]string{
		"Newtonsoft.Json":       "10.0.3",
		"Microsoft.NETCore.App": "2.0.0",
		"Shared.Tool":           "4.2.0",
	}
	if diff := cmp.Diff(wantCore, referenceVersions(info.Frameworks[0])); diff != "" {
		t.Fatalf("netcoreapp2.0 references mismatch (-want +got):\n%s", diff)
	}
	wantDesktop := map[string]string{
		"Newtonsoft.Json": "10.0.3",
		"Serilog":         "2.5.0",
		"Legacy.Only":     "1.0.0",
		"Shared.Tool":     "4.2.0",
	}
	if diff := cmp.Diff(wantDesktop, referenceVersions(info.Frameworks[1])); diff != "" {
		t.Fatalf("net461 references mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, info.Frameworks[0].Dependencies["Microsoft.NETCore.App"].IsImplicitlyDefined)
	serilog := info.Frameworks[1].Dependencies["Serilog"]
	assert.Equal(t, []string{"KRB3001", "NU1603"}, serilog.NoWarn)
	assert.True(t, serilog.Suppresses(types.CodeVersionConflict))
}

func TestReadProjectGlobalPropertiesWin(t *testing.T) {
	root := t.TempDir()
	writeTempFile(t, root, "Directory.Build.props", buildProps)
	writeTempFile(t, root, "App/shared.props", sharedProps)
	path := writeTempFile(t, root, "App/App.csproj", multiTargetProject)

	info, err := NewProjectReaderAdapter().ReadProject(context.Background(), path, map[string]string{
		"JsonVersion":               "11.0.1",
		"ImportDirectoryBuildProps": "false",
	})
	require.NoError(t, err)
	core := info.Frameworks[0].Dependencies
	assert.Equal(t, "11.0.1", core["Newtonsoft.Json"].Version)
	assert.Equal(t, "", core["Shared.Tool"].Version)
}

func TestReadProjectSingleFramework(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "Lib.csproj", `<Project>
  <PropertyGroup><TargetFramework>netstandard2.0</TargetFramework></PropertyGroup>
  <ItemGroup><PackageReference Include="A" Version="1.0.0" /></ItemGroup>
  <ItemGroup><PackageReference Update="A" Version="1.2.0" /></ItemGroup>
</Project>`)

	info, err := NewProjectReaderAdapter().ReadProject(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, info.Frameworks, 1)
	assert.Equal(t, "1.2.0", info.Frameworks[0].Dependencies["A"].Version)
}

func TestReadProjectErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode errbuilder.ErrCode
	}{
		{
			name:     "no framework",
			content:  `<Project><ItemGroup /></Project>`,
			wantCode: errbuilder.CodeInvalidArgument,
		},
		{
			name:     "malformed xml",
			content:  `<Project><PropertyGroup>`,
			wantCode: errbuilder.CodeInvalidArgument,
		},
		{
			name:     "missing import",
			content:  `<Project><Import Project="nope.props" /><PropertyGroup><TargetFramework>net5.0</TargetFramework></PropertyGroup></Project>`,
			wantCode: errbuilder.CodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, t.TempDir(), "P.csproj", tt.content)
			_, err := NewProjectReaderAdapter().ReadProject(context.Background(), path, nil)
			require.Error(t, err)
			if diff := cmp.Diff(tt.wantCode, errbuilder.CodeOf(err)); diff != "" {
				t.Fatalf("error code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadProjectMissingFile(t *testing.T) {
	_, err := NewProjectReaderAdapter().ReadProject(context.Background(), filepath.Join(t.TempDir(), "Missing.csproj"), nil)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestReadProjectCanceled(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "Lib.csproj", `<Project><PropertyGroup><TargetFramework>net5.0</TargetFramework></PropertyGroup></Project>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProjectReaderAdapter().ReadProject(ctx, path, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateCondition(t *testing.T) {
	bag := newPropertyBag(map[string]string{"Configuration": "Release", "TargetFramework": "net461"})
	tests := []struct {
		condition string
		want      bool
	}{
		{"", true},
		{"'$(Configuration)' == 'release'", true},
		{"'$(Configuration)' != 'Release'", false},
		{"'$(TargetFramework)' == 'net461' and '$(Configuration)' == 'Debug'", false},
		{"'$(TargetFramework)' == 'net461' or '$(Configuration)' == 'Debug'", true},
		{"!('$(Configuration)' == 'Debug')", true},
		{"'$(Undefined)' == ''", true},
		{"Exists('missing.props')", false},
		{"true", true},
		{"$(Configuration) == Release", true},
		{"$(Configuration)=='Debug'", false},
		{"'$(TargetFramework)' == 'net461' And $(Undefined) == ''", true},
		{"HasTrailingSlash('$(Configuration)')", false},
		{"HasTrailingSlash('obj/')", true},
		{"!HasTrailingSlash($(Undefined))", true},
		{"'$([System.String]::Copy($(Configuration)))' != ''", true},
		{"2 > 1", true},
		{"'10' <= '9'", false},
		{"Exists('$(MSBuildThisFileDirectory)missing.props') or yes", true},
	}
	for _, tt := range tests {
		got, err := evaluateCondition(tt.condition, bag, t.TempDir())
		require.NoError(t, err, tt.condition)
		assert.Equal(t, tt.want, got, tt.condition)
	}

	for _, condition := range []string{
		"'$(A)' == ",
		"$(Configuration) > 1",
		"IsOsPlatform('Windows')",
		"'$(Configuration)'",
		"'a' ~ 'b'",
	} {
		_, err := evaluateCondition(condition, bag, "")
		require.Error(t, err, condition)
	}
}

func TestReadProjectSkipsUnsupportedConditions(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "Lib.csproj", `<Project>
  <PropertyGroup>
    <TargetFramework>netstandard2.0</TargetFramework>
    <Signed Condition="$([MSBuild]::IsOSPlatform('Windows')) ~ true">true</Signed>
    <OutputRoot Condition="!HasTrailingSlash($(OutputRoot))">$(OutputRoot)/</OutputRoot>
  </PropertyGroup>
  <ItemGroup Condition="IsOsPlatform('Windows')">
    <PackageReference Include="Windows.Only" Version="1.0.0" />
  </ItemGroup>
  <ItemGroup>
    <PackageReference Include="A" Version="1.0.0" Condition="$(TargetFramework) == netstandard2.0" />
  </ItemGroup>
</Project>`)

	info, err := NewProjectReaderAdapter().ReadProject(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, info.Frameworks, 1)
	want := map[string]string{"A": "1.0.0"}
	if diff := cmp.Diff(want, referenceVersions(info.Frameworks[0])); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestReadProjectPropertyNamesIgnoreCase(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "Lib.csproj", `<Project>
  <PropertyGroup>
    <targetframework>netstandard2.0</targetframework>
    <JSONVERSION>10.0.3</JSONVERSION>
  </PropertyGroup>
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" Version="$(JsonVersion)" />
    <PackageReference Include="Serilog" Version="$(serilogversion)" />
  </ItemGroup>
</Project>`)

	info, err := NewProjectReaderAdapter().ReadProject(context.Background(), path, map[string]string{
		"SerilogVersion":  "2.5.0",
		"targetFramework": "net461",
	})
	require.NoError(t, err)
	require.Len(t, info.Frameworks, 1)
	assert.Equal(t, "net461", info.Frameworks[0].TargetFramework)
	want := map[string]string{"Newtonsoft.Json": "10.0.3", "Serilog": "2.5.0"}
	if diff := cmp.Diff(want, referenceVersions(info.Frameworks[0])); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePropertyBag(t *testing.T) {
	got, err := ParsePropertyBag("Configuration=Release; KoreBuildVersion = 2.1.0;;")
	require.NoError(t, err)
	want := map[string]string{"Configuration": "Release", "KoreBuildVersion": "2.1.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}

	got, err = ParsePropertyBag("Configuration=Debug;configuration=Release")
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]string{"Configuration": "Release"}, got); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}

	_, err = ParsePropertyBag("novalue")
	require.Error(t, err)
}
