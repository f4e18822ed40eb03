package adapters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

const patcherProject = `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <PackageReference Include="Attr.Package" Version="1.0.0" />
    <PackageReference Include="Element.Package">
      <Version>2.0.0</Version>
    </PackageReference>
    <PackageReference Include="Bare.Package" />
    <PackageReference Include="Other.Package" Version="9.9.9" />
  </ItemGroup>
</Project>
`

func writeTempFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProjectFilePatcherPlansAllChangeKinds(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "App.csproj", patcherProject)
	patcher := NewProjectFilePatcher()

	plan, err := patcher.Plan(path, map[string]string{
		"attr.package":    "1.1.0",
		"Element.Package": "2.1.0",
		"Bare.Package":    "3.0.0",
	})
	require.NoError(t, err)

	type summary struct {
		ID       string
		Kind     types.ChangeKind
		OldValue string
		NewValue string
	}
	var got []summary
	for _, change := range plan.Changes {
		got = append(got, summary{change.PackageID, change.Kind, change.OldValue, change.NewValue})
	}
	want := []summary{
		{"Attr.Package", types.ChangeUpdateAttribute, "1.0.0", "1.1.0"},
		{"Element.Package", types.ChangeUpdateElement, "2.0.0", "2.1.0"},
		{"Bare.Package", types.ChangeAddAttribute, "", "3.0.0"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("planned changes mismatch (-want +got):\n%s", diff)
	}

	result, err := patcher.Apply(plan)
	require.NoError(t, err)
	assert.True(t, result.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `<PackageReference Include="Attr.Package" Version="1.1.0" />`)
	assert.Contains(t, text, `<Version>2.1.0</Version>`)
	assert.Contains(t, text, `<PackageReference Include="Bare.Package" Version="3.0.0" />`)
	assert.Contains(t, text, `<PackageReference Include="Other.Package" Version="9.9.9" />`)
}

func TestProjectFilePatcherIsIdempotent(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "App.csproj", patcherProject)
	patcher := NewProjectFilePatcher()
	versions := map[string]string{"Attr.Package": "1.1.0", "Bare.Package": "3.0.0"}

	plan, err := patcher.Plan(path, versions)
	require.NoError(t, err)
	_, err = patcher.Apply(plan)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	before, err := os.Stat(path)
	require.NoError(t, err)

	second, err := patcher.Plan(path, versions)
	require.NoError(t, err)
	assert.True(t, second.UpToDate())

	result, err := patcher.Apply(second)
	require.NoError(t, err)
	assert.True(t, result.UpToDate)
	assert.False(t, result.Written)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, before.ModTime().Equal(after.ModTime()))
}

func TestProjectFilePatcherKeepsByteOrderMark(t *testing.T) {
	content := "\xEF\xBB\xBF" + `<Project><ItemGroup><PackageReference Include="A" Version="1.0.0" /></ItemGroup></Project>`
	path := writeTempFile(t, t.TempDir(), "Bom.csproj", content)
	patcher := NewProjectFilePatcher()

	plan, err := patcher.Plan(path, map[string]string{"A": "2.0.0"})
	require.NoError(t, err)
	_, err = patcher.Apply(plan)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\xEF\xBB\xBF"+`<Project><ItemGroup><PackageReference Include="A" Version="2.0.0" /></ItemGroup></Project>`, string(data))
}

func TestProjectFilePatcherRejectsStalePlan(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "App.csproj", patcherProject)
	patcher := NewProjectFilePatcher()

	plan, err := patcher.Plan(path, map[string]string{"Attr.Package": "1.1.0"})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)

	edited := `<Project><ItemGroup><PackageReference Include="Attr.Package" Version="7.0.0" /></ItemGroup></Project>`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	_, err = patcher.Apply(plan)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestProjectFilePatcherMalformedProject(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "Bad.csproj", `<Project><ItemGroup>`)
	_, err := NewProjectFilePatcher().Plan(path, map[string]string{"A": "1.0.0"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
