package adapters

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=korebuild",
		"GIT_AUTHOR_EMAIL=dev@example.com",
		"GIT_COMMITTER_NAME=korebuild",
		"GIT_COMMITTER_EMAIL=dev@example.com",
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
}

func TestGitStatusAdapterHasLocalChanges(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	writeTempFile(t, dir, "README.md", "hello")
	writeTempFile(t, dir, "src/Contoso.Common.nuspec", "<package />")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "init")

	adapter := NewGitStatusAdapter()
	changed, err := adapter.HasLocalChanges(dir)
	require.NoError(t, err)
	assert.False(t, changed)

	writeTempFile(t, dir, "README.md", "changed")
	writeTempFile(t, dir, "notes/todo.txt", "untracked")
	changed, err = adapter.HasLocalChanges(dir)
	require.NoError(t, err)
	assert.False(t, changed, "non-manifest changes do not count")

	writeTempFile(t, dir, "src/Contoso.Common.nuspec", "<package></package>")
	changed, err = adapter.HasLocalChanges(dir)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestGitStatusAdapterScopesToRepositoryDirectory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	writeTempFile(t, dir, "A/src/A.nuspec", "<package />")
	writeTempFile(t, dir, "A/README.md", "a")
	writeTempFile(t, dir, "B/src/B.nuspec", "<package />")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "init")

	adapter := NewGitStatusAdapter()
	writeTempFile(t, dir, "A/README.md", "edited")
	for _, repo := range []string{"A", "B"} {
		changed, err := adapter.HasLocalChanges(filepath.Join(dir, repo))
		require.NoError(t, err)
		assert.False(t, changed, repo)
	}

	writeTempFile(t, dir, "A/src/A.nuspec", "<package></package>")
	changed, err := adapter.HasLocalChanges(filepath.Join(dir, "A"))
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = adapter.HasLocalChanges(filepath.Join(dir, "B"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestIsManifestStatusLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{" M A/src/A.nuspec", true},
		{"?? src/New.NUSPEC", true},
		{"R  old.txt -> src/A.nuspec", true},
		{` M "src/with space.nuspec"`, true},
		{" M README.md", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isManifestStatusLine(tt.line), tt.line)
	}
}

func TestGitStatusAdapterNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", dir)
	_, err := NewGitStatusAdapter().HasLocalChanges(dir)
	require.Error(t, err)
}
