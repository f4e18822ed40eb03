package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// Push uploads packages one at a time. Directories contribute every .nupkg
// directly inside them; symbol packages are skipped.
func (s Service) Push(ctx context.Context, req PushRequest) (PushResult, error) {
	packages, err := expandPackages(req.Paths)
	if err != nil {
		return PushResult{}, err
	}
	if len(packages) == 0 {
		return PushResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no packages to push")
	}
	result := PushResult{}
	for _, pkg := range packages {
		if err := s.Feed.Push(ctx, pkg); err != nil {
			return result, err
		}
		log.Ctx(ctx).Info().Str("package", pkg).Msg("package pushed")
		result.Pushed = append(result.Pushed, pkg)
	}
	return result, nil
}

func expandPackages(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("package path not found: " + path).
				WithCause(err)
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to list " + path).
				WithCause(err)
		}
		var found []string
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".nupkg") || strings.HasSuffix(strings.ToLower(name), ".symbols.nupkg") {
				continue
			}
			found = append(found, filepath.Join(path, name))
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
