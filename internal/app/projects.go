package app

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"korebuild-tools/internal/types"
)

// LoadProjects evaluates every project named directly or through a solution.
// Evaluations run in parallel up to the configured worker count; the first
// failure cancels the rest. Results follow input order.
func (s Service) LoadProjects(ctx context.Context, inputs ProjectInputs) ([]types.ProjectInfo, error) {
	paths, err := s.expandInputs(inputs.Paths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one solution or project is required")
	}

	results := make([]types.ProjectInfo, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers())
	for i, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			info, err := s.Projects.ReadProject(groupCtx, path, inputs.Properties)
			if err != nil {
				return err
			}
			results[i] = info
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeCanceled).
				WithMsg("project evaluation canceled").
				WithCause(ctx.Err())
		}
		return nil, err
	}
	for _, info := range results {
		assert.NotEmpty(ctx, info.FullPath, "evaluated project must have a path")
	}
	log.Ctx(ctx).Debug().Int("projects", len(results)).Msg("projects loaded")
	return results, nil
}

func (s Service) workers() int {
	if s.Config.Workers > 0 {
		return s.Config.Workers
	}
	return runtime.NumCPU()
}

// expandInputs replaces solutions with their projects and drops duplicates.
func (s Service) expandInputs(inputs []string) ([]string, error) {
	seen := map[string]struct{}{}
	var paths []string
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid project path").
				WithCause(err)
		}
		if _, ok := seen[abs]; ok {
			return nil
		}
		seen[abs] = struct{}{}
		paths = append(paths, abs)
		return nil
	}
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.EqualFold(filepath.Ext(input), ".sln") {
			if err := add(input); err != nil {
				return nil, err
			}
			continue
		}
		projects, err := s.Solutions.ReadSolution(input)
		if err != nil {
			return nil, err
		}
		for _, project := range projects {
			if err := add(project); err != nil {
				return nil, err
			}
		}
	}
	return paths, nil
}
