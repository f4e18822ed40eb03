package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/adapters"
	"korebuild-tools/internal/policies"
	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// ApplyPolicies runs the policy pipeline over the given projects. Every
// policy completes before anything is written; the targets extensions (and
// the optional bill of materials) are written last.
func (s Service) ApplyPolicies(ctx context.Context, req ApplyPoliciesRequest) (ApplyPoliciesResult, error) {
	policyPath := strings.TrimSpace(req.PolicyFile)
	if policyPath == "" {
		return ApplyPoliciesResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("policy file is required")
	}
	file, err := s.PolicyFiles.LoadPolicies(policyPath)
	if err != nil {
		s.Logger.LogError(fileErrorCode(err), policyPath, err.Error())
		return ApplyPoliciesResult{}, err
	}
	resolved, err := s.Registry.Resolve(file.Policies, s.Logger)
	if err != nil {
		return ApplyPoliciesResult{}, err
	}
	projects, err := s.LoadProjects(ctx, req.Inputs)
	if err != nil {
		return ApplyPoliciesResult{}, err
	}

	solutionDir := req.SolutionDirectory
	if solutionDir == "" {
		solutionDir = filepath.Dir(projects[0].FullPath)
	}
	restore, err := s.resolveRestore(ctx, solutionDir, req.Restore)
	if err != nil {
		s.Logger.LogError(fileErrorCode(err), restore.ConfigFile, err.Error())
		return ApplyPoliciesResult{}, err
	}
	lineups := s.Lineups
	if source, ok := lineups.(ports.RestoreLineupSourcePort); ok {
		lineups = source.ForRestore(restore)
	}
	pc := policies.NewContext(solutionDir, projects, restore, s.Config, s.Logger, lineups)
	if err := policies.NewEngine(resolved).Apply(ctx, pc); err != nil {
		return ApplyPoliciesResult{}, err
	}

	result := ApplyPoliciesResult{Edits: pc.Edits.All()}
	for _, policy := range resolved {
		result.Policies = append(result.Policies, policy.Name())
	}
	byProject := pc.Edits.ByProject()
	sources := pc.Edits.RestoreSources()
	for _, project := range projects {
		write, err := s.Targets.Write(project.FullPath, byProject[project.FullPath], sources)
		if err != nil {
			return result, err
		}
		result.Writes = append(result.Writes, write)
		if write.Written {
			log.Ctx(ctx).Info().Str("path", write.Path).Msg("targets extension written")
		} else {
			log.Ctx(ctx).Debug().Str("path", write.Path).Msg("targets extension up to date")
		}
	}
	if req.BOMPath != "" {
		if err := s.BOMWriter.WriteBOM(req.BOMPath, buildBOM(projects, pc.Edits)); err != nil {
			return result, err
		}
	}
	s.Logger.LogMessage(fmt.Sprintf("applied %d policies, %d edit(s) across %d project(s)", len(resolved), len(result.Edits), len(projects)))
	return result, nil
}

// resolveRestore anchors relative restore paths at the solution directory and
// appends the sources and packages folder of the NuGet.config, if any.
// Explicit settings come first and win.
func (s Service) resolveRestore(ctx context.Context, solutionDir string, restore types.RestoreConfig) (types.RestoreConfig, error) {
	anchor := func(path string) string {
		path = strings.TrimSpace(path)
		if path == "" || adapters.IsRemoteSource(path) || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(solutionDir, path)
	}
	out := types.RestoreConfig{
		PackagesPath: anchor(restore.PackagesPath),
		ConfigFile:   anchor(restore.ConfigFile),
	}
	for _, source := range restore.Sources {
		if source = anchor(source); source != "" {
			out.Sources = append(out.Sources, source)
		}
	}
	if out.ConfigFile == "" || s.NuGetConfigs == nil {
		return out, nil
	}
	fromFile, err := s.NuGetConfigs.ReadNuGetConfig(out.ConfigFile)
	if err != nil {
		return out, err
	}
	for _, source := range fromFile.Sources {
		if !containsFold(out.Sources, source) {
			out.Sources = append(out.Sources, source)
		}
	}
	if out.PackagesPath == "" {
		out.PackagesPath = fromFile.PackagesPath
	}
	log.Ctx(ctx).Debug().Str("config", out.ConfigFile).Strs("sources", out.Sources).Msg("restore configuration resolved")
	return out, nil
}

func containsFold(values []string, value string) bool {
	for _, existing := range values {
		if strings.EqualFold(strings.TrimRight(existing, "/"), strings.TrimRight(value, "/")) {
			return true
		}
	}
	return false
}

// buildBOM lists, per project, the version every reference resolves to once
// the policy edits are taken into account.
func buildBOM(projects []types.ProjectInfo, edits *policies.EditSet) []types.BOMArtifact {
	artifacts := make([]types.BOMArtifact, 0, len(projects))
	for _, project := range projects {
		name := strings.TrimSuffix(filepath.Base(project.FullPath), filepath.Ext(project.FullPath))
		artifact := types.BOMArtifact{ID: name}
		for _, fw := range project.Frameworks {
			for _, ref := range fw.Dependencies {
				version := ref.Version
				if edit, ok := edits.Get(project.FullPath, fw.TargetFramework, ref.ID); ok {
					version = edit.Version
				}
				if version == "" {
					continue
				}
				artifact.Dependencies = append(artifact.Dependencies, types.BOMDependency{
					ID:              ref.ID,
					Version:         version,
					TargetFramework: fw.TargetFramework,
				})
			}
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts
}
