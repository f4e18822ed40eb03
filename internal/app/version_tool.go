package app

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

// packageMatcher is the OR of the --matching expressions; no expression
// matches everything.
type packageMatcher []*regexp.Regexp

func compileMatcher(patterns []string) (packageMatcher, error) {
	var out packageMatcher
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid --matching expression %q", pattern)).
				WithCause(err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (m packageMatcher) Match(id string) bool {
	if len(m) == 0 {
		return true
	}
	for _, re := range m {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}

// scanRepositories scans the root and builds the graph over every
// repository; the returned slice is narrowed to the --path filter.
func (s Service) scanRepositories(filter RepositoryFilter) (*core.RepositoryGraph, []*types.Repository, error) {
	root := strings.TrimSpace(filter.Root)
	if root == "" {
		root = "."
	}
	repos, err := s.Repositories.Scan(root)
	if err != nil {
		return nil, nil, err
	}
	graph, err := core.BuildGraph(repos)
	if err != nil {
		s.Logger.LogError(types.CodeRepositoryCycle, root, err.Error())
		return nil, nil, err
	}
	selected, err := selectRepositories(graph.Sorted(), filter.Paths)
	if err != nil {
		return nil, nil, err
	}
	return graph, selected, nil
}

func selectRepositories(repos []*types.Repository, paths []string) ([]*types.Repository, error) {
	if len(paths) == 0 {
		return repos, nil
	}
	var out []*types.Repository
	for _, want := range paths {
		abs, _ := filepath.Abs(want)
		found := false
		for _, repo := range repos {
			if strings.EqualFold(repo.Name, want) || repo.Path == abs {
				out = append(out, repo)
				found = true
				break
			}
		}
		if !found {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("repository %s not found", want))
		}
	}
	return out, nil
}

// ListPackages lists produced packages in patch order.
func (s Service) ListPackages(ctx context.Context, filter RepositoryFilter) ([]PackageListing, error) {
	match, err := compileMatcher(filter.Matching)
	if err != nil {
		return nil, err
	}
	_, repos, err := s.scanRepositories(filter)
	if err != nil {
		return nil, err
	}
	var out []PackageListing
	for _, repo := range repos {
		for _, manifest := range repo.Manifests {
			if !match.Match(manifest.ID) {
				continue
			}
			out = append(out, PackageListing{Repository: repo.Name, PackageID: manifest.ID, Version: manifest.Version, Manifest: manifest.Path})
		}
	}
	return out, nil
}

// ListDependencies lists every dependency declaration whose id matches.
func (s Service) ListDependencies(ctx context.Context, filter RepositoryFilter) ([]DependencyListing, error) {
	match, err := compileMatcher(filter.Matching)
	if err != nil {
		return nil, err
	}
	_, repos, err := s.scanRepositories(filter)
	if err != nil {
		return nil, err
	}
	var out []DependencyListing
	for _, repo := range repos {
		for _, manifest := range repo.Manifests {
			for _, group := range manifest.Groups {
				for _, dep := range group.Dependencies {
					if !match.Match(dep.ID) {
						continue
					}
					out = append(out, DependencyListing{
						Repository:      repo.Name,
						Manifest:        manifest.Path,
						PackageID:       dep.ID,
						TargetFramework: group.TargetFramework,
						VersionRange:    dep.VersionRange,
					})
				}
			}
		}
	}
	return out, nil
}

// UpdateVersion sets the version of every matching produced package.
func (s Service) UpdateVersion(ctx context.Context, filter RepositoryFilter, version string) (UpdateResult, error) {
	if err := requireVersion(version); err != nil {
		return UpdateResult{}, err
	}
	match, err := compileMatcher(filter.Matching)
	if err != nil {
		return UpdateResult{}, err
	}
	_, repos, err := s.scanRepositories(filter)
	if err != nil {
		return UpdateResult{}, err
	}
	return s.applyManifestEdits(ctx, core.PlanVersionUpdate(repos, match.Match, version))
}

// UpdateDependency sets the version of every matching dependency.
func (s Service) UpdateDependency(ctx context.Context, filter RepositoryFilter, version string) (UpdateResult, error) {
	if err := requireRange(version); err != nil {
		return UpdateResult{}, err
	}
	match, err := compileMatcher(filter.Matching)
	if err != nil {
		return UpdateResult{}, err
	}
	_, repos, err := s.scanRepositories(filter)
	if err != nil {
		return UpdateResult{}, err
	}
	return s.applyManifestEdits(ctx, core.PlanDependencyUpdate(repos, match.Match, version))
}

// UpdatePatch bumps packages of locally modified repositories according to
// the patch configuration and cascades the bumps through the graph in patch
// order. Planning completes before any manifest is written.
func (s Service) UpdatePatch(ctx context.Context, filter RepositoryFilter, configPath string) (UpdatePatchResult, error) {
	if strings.TrimSpace(configPath) == "" {
		return UpdatePatchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("patch config path is required")
	}
	config, err := s.PatchConfigs.LoadPatchConfig(configPath)
	if err != nil {
		return UpdatePatchResult{}, err
	}
	graph, repos, err := s.scanRepositories(filter)
	if err != nil {
		return UpdatePatchResult{}, err
	}

	result := UpdatePatchResult{}
	modified := map[string]bool{}
	for _, repo := range repos {
		changed, err := s.Git.HasLocalChanges(repo.Path)
		if err != nil {
			return result, err
		}
		if changed {
			modified[repo.Name] = true
			result.Modified = append(result.Modified, repo.Name)
		}
	}
	log.Ctx(ctx).Debug().Strs("modified", result.Modified).Msg("repositories with local changes")

	plan, err := core.PlanPatch(graph, config, modified)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeFailedPrecondition {
			s.Logger.LogError(types.CodePatchRuleMissing, configPath, err.Error())
		}
		return result, err
	}
	applied, err := s.applyManifestEdits(ctx, plan.Edits)
	result.Bumps = plan.Bumps
	result.Edits = applied.Edits
	result.Writes = applied.Writes
	if err != nil {
		return result, err
	}
	return result, nil
}

func (s Service) applyManifestEdits(ctx context.Context, edits []types.ManifestEdit) (UpdateResult, error) {
	result := UpdateResult{Edits: edits}
	if len(edits) == 0 {
		log.Ctx(ctx).Info().Msg("no manifest changes")
		return result, nil
	}
	writes, err := s.Nuspecs.ApplyEdits(edits)
	result.Writes = writes
	if err != nil {
		return result, err
	}
	sort.Slice(result.Writes, func(i, j int) bool { return result.Writes[i].Path < result.Writes[j].Path })
	return result, nil
}

func requireVersion(version string) error {
	if strings.TrimSpace(version) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("version is required")
	}
	if _, err := core.ParseVersion(version); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid version %q", version)).
			WithCause(err)
	}
	return nil
}

func requireRange(value string) error {
	if strings.TrimSpace(value) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("version is required")
	}
	if _, err := core.ParseVersionRange(value); err != nil {
		return err
	}
	return nil
}
