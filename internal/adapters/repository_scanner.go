package adapters

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// manifestDirs are the repository subdirectories searched for nuspecs.
var manifestDirs = []string{"src", "shared", "build", "pkg"}

// RepositoryScanner treats every directory directly under the root as a
// repository and reads the nuspec manifests it produces.
type RepositoryScanner struct{}

func NewRepositoryScanner() RepositoryScanner {
	return RepositoryScanner{}
}

func (s RepositoryScanner) Scan(root string) ([]*types.Repository, error) {
	if root == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("repository root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid repository root").
			WithCause(err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: repository root not found", abs)).
			WithCause(err)
	}

	var repos []*types.Repository
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		repo := types.NewRepository(entry.Name(), filepath.Join(abs, entry.Name()))
		paths, err := findNuspecs(repo.Path)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			continue
		}
		for _, path := range paths {
			spec, err := ReadNuspecFile(path)
			if err != nil {
				return nil, err
			}
			repo.Manifests = append(repo.Manifests, spec)
		}
		repos = append(repos, repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

func findNuspecs(repoPath string) ([]string, error) {
	var paths []string
	for _, dir := range manifestDirs {
		base := filepath.Join(repoPath, dir)
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != base && shouldSkipRepositoryDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".nuspec") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to scan %s", base)).
				WithCause(err)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func shouldSkipRepositoryDir(name string) bool {
	switch strings.ToLower(name) {
	case "bin", "obj", ".git", "node_modules", "artifacts":
		return true
	default:
		return false
	}
}

var _ ports.RepositoryScannerPort = RepositoryScanner{}
