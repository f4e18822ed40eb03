package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korebuild-tools/tests/testutil"
)

func runVersionTool(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command("go", append([]string{"run", "./cmd/version-tool"}, args...)...)
	cmd.Dir = testutil.RepoRoot(t)
	cmd.Env = append(os.Environ(), "GO111MODULE=on", "NO_COLOR=1")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func writeRepositories(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteFile(t, root, "Common/src/Common.nuspec", testutil.Nuspec("Contoso.Common", "1.0.0", ""))
	testutil.WriteFile(t, root, "Mvc/src/Mvc.nuspec", testutil.Nuspec("Contoso.Mvc", "2.0.0",
		`<dependency id="Contoso.Common" version="1.0.0" />`))
	return root
}

func TestVersionToolListE2E(t *testing.T) {
	root := writeRepositories(t)

	out, err := runVersionTool(t, "--root", root, "list")
	require.NoError(t, err, out)

	common := strings.Index(out, "Contoso.Common 1.0.0")
	mvc := strings.Index(out, "Contoso.Mvc 2.0.0")
	require.GreaterOrEqual(t, common, 0, out)
	require.GreaterOrEqual(t, mvc, 0, out)
	assert.Less(t, common, mvc, "producers are listed before consumers")
}

func TestVersionToolUpdateDependencyE2E(t *testing.T) {
	root := writeRepositories(t)

	out, err := runVersionTool(t, "--root", root, "--matching", `^Contoso\.Common$`, "update-dependency", "1.0.1")
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(root, "Mvc", "src", "Mvc.nuspec"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `<dependency id="Contoso.Common" version="1.0.1" />`)

	out, err = runVersionTool(t, "--root", root, "--matching", `^Contoso\.Common$`, "update-dependency", "1.0.1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "no changes")
}

func TestVersionToolCycleExitCodeE2E(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "A/src/A.nuspec", testutil.Nuspec("A", "1.0.0", `<dependency id="B" version="1.0.0" />`))
	testutil.WriteFile(t, root, "B/src/B.nuspec", testutil.Nuspec("B", "1.0.0", `<dependency id="A" version="1.0.0" />`))

	out, err := runVersionTool(t, "--root", root, "list")
	require.Error(t, err, out)
	assert.Contains(t, out, "KRB4001")
}
