package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

// GenerateManifest records a variable for every literal package version the
// projects use. Conflicting versions are fatal. With RewriteProjects the
// references are switched to $(Variable) once the manifest is saved.
func (s Service) GenerateManifest(ctx context.Context, req GenerateManifestRequest) (GenerateManifestResult, error) {
	path := strings.TrimSpace(req.ManifestPath)
	if path == "" {
		return GenerateManifestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest path is required")
	}
	projects, err := s.LoadProjects(ctx, req.Inputs)
	if err != nil {
		return GenerateManifestResult{}, err
	}
	if _, err := s.reportConflicts(projects); err != nil {
		return GenerateManifestResult{}, err
	}

	file, err := s.loadOrCreateManifest(path)
	if err != nil {
		return GenerateManifestResult{}, err
	}
	file.HasVersionsPropertyGroup = true
	file.SetOverrideImport(req.OverrideImport)

	rewrites := map[string]map[string]string{}
	for _, project := range projects {
		for _, fw := range project.Frameworks {
			for _, ref := range sortedDependencies(fw) {
				version := strings.TrimSpace(ref.Version)
				if !isLiteralVersion(ref, version) {
					continue
				}
				name := core.VariableName(ref.ID, req.VariableOverrides)
				if !file.Set(name, version) {
					if current, _ := file.Get(name); current.Value != version {
						s.Logger.LogWarning(types.CodeReadOnlyVariable, path,
							fmt.Sprintf("variable %s is pinned to %s; %s uses %s", name, current.Value, project.FullPath, version))
					}
				}
				if rewrites[project.FullPath] == nil {
					rewrites[project.FullPath] = map[string]string{}
				}
				rewrites[project.FullPath][ref.ID] = core.VariableReference(name)
			}
		}
	}

	var plans []types.PatchPlan
	if req.RewriteProjects {
		for _, project := range projects {
			if len(rewrites[project.FullPath]) == 0 {
				continue
			}
			plan, err := s.Patcher.Plan(project.FullPath, rewrites[project.FullPath])
			if err != nil {
				return GenerateManifestResult{}, err
			}
			plans = append(plans, plan)
		}
	}

	result := GenerateManifestResult{Variables: file.Variables()}
	result.Manifest, err = s.Manifests.Save(path, file.Manifest())
	if err != nil {
		return result, err
	}
	for _, plan := range plans {
		write, err := s.Patcher.Apply(plan)
		if err != nil {
			return result, err
		}
		if write.UpToDate {
			log.Ctx(ctx).Info().Str("path", plan.Path).Msg("skipped, already up to date")
		}
		result.Projects = append(result.Projects, write)
	}
	s.Logger.LogMessage(fmt.Sprintf("manifest %s holds %d variable(s)", path, len(result.Variables)))
	return result, nil
}

// UpgradeManifest moves every writable variable to the version the lineups
// agree on. Pinned variables are reported (KRB3006) and variables with no
// lineup package are reported (KRB3005); neither is fatal.
func (s Service) UpgradeManifest(ctx context.Context, req UpgradeManifestRequest) (UpgradeManifestResult, error) {
	path := strings.TrimSpace(req.ManifestPath)
	if path == "" {
		return UpgradeManifestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest path is required")
	}
	if len(req.Lineups) == 0 {
		return UpgradeManifestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one lineup is required")
	}
	manifest, err := s.Manifests.Load(path)
	if err != nil {
		s.Logger.LogError(fileErrorCode(err), path, err.Error())
		return UpgradeManifestResult{}, err
	}
	file := core.FromManifest(manifest)
	if !file.HasVersionsPropertyGroup {
		s.Logger.LogWarning(types.CodeMissingVersionsGroup, path, `manifest has no "Package Versions" property group`)
	}

	source := core.NewPackageVersionSource(s.Config.Precedence)
	for _, ref := range req.Lineups {
		groups, err := s.Lineups.DependencyGroups(ctx, ref)
		if err != nil {
			return UpgradeManifestResult{}, err
		}
		if err := source.AddPackagesFromLineup(ref.ID, ref.Version, groups); err != nil {
			return UpgradeManifestResult{}, err
		}
	}
	packageByVariable := map[string]string{}
	for _, id := range source.PackageIDs() {
		packageByVariable[strings.ToLower(core.VariableName(id, req.VariableOverrides))] = id
	}

	result := UpgradeManifestResult{}
	for _, variable := range file.Variables() {
		id, ok := packageByVariable[strings.ToLower(variable.Name)]
		if !ok {
			s.Logger.LogWarning(types.CodeVariableNotInLineup, path,
				fmt.Sprintf("variable %s does not match any package in the lineups", variable.Name))
			continue
		}
		version, ok := source.TryGetAnyPackageVersion(id)
		if !ok {
			s.Logger.LogWarning(types.CodeVariableNotInLineup, path,
				fmt.Sprintf("lineups give %s no single version; %s left at %s", id, variable.Name, variable.Value))
			continue
		}
		if variable.Value == version {
			continue
		}
		if variable.IsReadOnly {
			s.Logger.LogWarning(types.CodeReadOnlyVariable, path,
				fmt.Sprintf("variable %s is pinned to %s; lineup version %s not applied", variable.Name, variable.Value, version))
			continue
		}
		if file.Update(variable.Name, version) {
			updated, _ := file.Get(variable.Name)
			result.Updated = append(result.Updated, updated)
		}
	}
	result.Manifest, err = s.Manifests.Save(path, file.Manifest())
	if err != nil {
		return result, err
	}
	s.Logger.LogMessage(fmt.Sprintf("updated %d variable(s) in %s", len(result.Updated), path))
	return result, nil
}

func (s Service) loadOrCreateManifest(path string) (*core.DependencyVersionsFile, error) {
	manifest, err := s.Manifests.Load(path)
	if err == nil {
		return core.FromManifest(manifest), nil
	}
	if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
		return core.NewDependencyVersionsFile(), nil
	}
	s.Logger.LogError(types.CodeMalformedFile, path, err.Error())
	return nil, err
}

func isLiteralVersion(ref types.PackageReferenceInfo, version string) bool {
	if version == "" || ref.IsImplicitlyDefined || core.IsFloatingVersion(version) {
		return false
	}
	_, variable := core.ReferencedVariable(version)
	return !variable
}

func sortedDependencies(fw types.ProjectFrameworkInfo) []types.PackageReferenceInfo {
	out := make([]types.PackageReferenceInfo, 0, len(fw.Dependencies))
	for _, ref := range fw.Dependencies {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].ID) < strings.ToLower(out[j].ID)
	})
	return out
}
