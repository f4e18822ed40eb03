package adapters

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/shared"
)

type GitStatusAdapter struct{}

func NewGitStatusAdapter() GitStatusAdapter {
	return GitStatusAdapter{}
}

// HasLocalChanges reports whether any package manifest under repoPath is
// modified, staged or untracked. Other files, and sibling directories that
// share the same git tree, do not count.
func (a GitStatusAdapter) HasLocalChanges(repoPath string) (bool, error) {
	cmd := exec.Command("git", "status", "--porcelain", "--untracked-files=all", "--", ".")
	cmd.Dir = repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%s: git status failed", repoPath)).
			WithCause(shared.CommandError(output, err))
	}
	for _, line := range strings.Split(string(output), "\n") {
		if isManifestStatusLine(line) {
			return true, nil
		}
	}
	return false, nil
}

// isManifestStatusLine reads one porcelain v1 entry ("XY path" or
// "XY old -> new") and reports whether it names a nuspec.
func isManifestStatusLine(line string) bool {
	if len(line) < 4 {
		return false
	}
	path := line[3:]
	if _, renamed, ok := strings.Cut(path, " -> "); ok {
		path = renamed
	}
	path = strings.Trim(strings.TrimSpace(path), `"`)
	return strings.HasSuffix(strings.ToLower(path), ".nuspec")
}

var _ ports.GitStatusPort = GitStatusAdapter{}
