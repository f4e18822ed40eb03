package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/types"
)

// PatchResult is the outcome of planning; nothing has been written yet.
type PatchResult struct {
	Edits []types.ManifestEdit
	Bumps []types.PackageBump
}

type compiledRule struct {
	rule    types.PatchRule
	pattern *regexp.Regexp
}

func compileRules(rules []types.PatchRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	var errs []error
	for _, rule := range rules {
		pattern, err := regexp.Compile(rule.Match)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", rule.Match, err))
			continue
		}
		if strings.TrimSpace(rule.NewVersion) == "" {
			errs = append(errs, fmt.Errorf("rule %q: new_version is required", rule.Match))
			continue
		}
		out = append(out, compiledRule{rule: rule, pattern: pattern})
	}
	if len(errs) > 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid patch configuration").
			WithCause(errors.Join(errs...))
	}
	return out, nil
}

func (r compiledRule) matches(packageID string, version string) bool {
	if !r.pattern.MatchString(packageID) {
		return false
	}
	return r.rule.CurrentVersion == "" || NormalizeVersion(r.rule.CurrentVersion) == NormalizeVersion(version)
}

// PlanPatch walks repositories in patch order. A repository that has local
// changes, or received a dependency update earlier in the walk, bumps every
// produced package a rule licenses; each bump is then substituted into the
// dependency lists of every manifest in the graph. A produced package of a
// dirty repository that nothing licenses would be left behind its bumped
// dependencies, so every such package is collected and reported together.
func PlanPatch(g *RepositoryGraph, config types.PatchConfig, modified map[string]bool) (PatchResult, error) {
	rules, err := compileRules(config.Rules)
	if err != nil {
		return PatchResult{}, err
	}
	listed := map[string]types.PatchPackage{}
	for _, pkg := range config.Packages {
		listed[strings.ToLower(pkg.Name)] = pkg
	}

	dirty := map[string]bool{}
	for name, changed := range modified {
		dirty[name] = changed
	}
	bumped := map[string]bool{}
	result := PatchResult{}
	var missing []string

	for _, repo := range g.Sorted() {
		if !dirty[repo.Name] {
			continue
		}
		for mi := range repo.Manifests {
			manifest := &repo.Manifests[mi]
			key := strings.ToLower(manifest.ID)
			if manifest.ID == "" || bumped[key] {
				continue
			}
			newVersion, ok := licensedVersion(rules, listed, manifest)
			if !ok {
				missing = append(missing, fmt.Sprintf("%s %s (%s)", manifest.ID, manifest.Version, repo.Name))
				continue
			}
			bumped[key] = true
			oldVersion := manifest.Version
			result.Bumps = append(result.Bumps, types.PackageBump{
				Repository: repo.Name,
				PackageID:  manifest.ID,
				OldVersion: oldVersion,
				NewVersion: newVersion,
			})
			result.Edits = append(result.Edits, types.ManifestEdit{
				Path:       manifest.Path,
				Kind:       types.ManifestEditPackageVersion,
				PackageID:  manifest.ID,
				OldVersion: oldVersion,
				NewVersion: newVersion,
			})
			manifest.Version = newVersion
			for _, edit := range substituteDependency(g, manifest.ID, oldVersion, newVersion) {
				result.Edits = append(result.Edits, edit.ManifestEdit)
				dirty[edit.repository] = true
			}
		}
	}
	if len(missing) > 0 {
		return PatchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no patch rule matches: %s", strings.Join(missing, ", ")))
	}
	return result, nil
}

func versionMatches(want string, have string) bool {
	return want == "" || NormalizeVersion(want) == NormalizeVersion(have)
}

// licensedVersion returns the new version for manifest: an explicit
// new_version on a listed package, otherwise the first matching rule.
func licensedVersion(rules []compiledRule, listed map[string]types.PatchPackage, manifest *types.Nuspec) (string, bool) {
	if pkg, ok := listed[strings.ToLower(manifest.ID)]; ok && pkg.NewVersion != "" && versionMatches(pkg.CurrentVersion, manifest.Version) {
		return pkg.NewVersion, true
	}
	for _, rule := range rules {
		if rule.matches(manifest.ID, manifest.Version) {
			return rule.rule.NewVersion, true
		}
	}
	return "", false
}

type repositoryEdit struct {
	types.ManifestEdit
	repository string
}

// substituteDependency rewrites oldVersion to newVersion in every dependency
// on packageID across the whole graph, not only along edges.
func substituteDependency(g *RepositoryGraph, packageID string, oldVersion string, newVersion string) []repositoryEdit {
	var edits []repositoryEdit
	for _, repo := range g.Repos {
		for mi := range repo.Manifests {
			manifest := &repo.Manifests[mi]
			for gi := range manifest.Groups {
				deps := manifest.Groups[gi].Dependencies
				for di := range deps {
					if !strings.EqualFold(deps[di].ID, packageID) {
						continue
					}
					current := deps[di].VersionRange
					updated, changed := ReplaceVersionToken(current, oldVersion, newVersion)
					if !changed {
						continue
					}
					deps[di].VersionRange = updated
					edits = append(edits, repositoryEdit{
						ManifestEdit: types.ManifestEdit{
							Path:       manifest.Path,
							Kind:       types.ManifestEditDependencyVersion,
							PackageID:  deps[di].ID,
							OldVersion: current,
							NewVersion: updated,
						},
						repository: repo.Name,
					})
				}
			}
		}
	}
	return edits
}

// ReplaceVersionToken substitutes newVersion for every whole occurrence of
// oldVersion in a version or range ("[2.0.0, 3.0.0)"). Tokens compare as
// normalized versions, so 1.0 matches 1.0.0; 1.0.0 inside 11.0.0 is not an
// occurrence.
func ReplaceVersionToken(text string, oldVersion string, newVersion string) (string, bool) {
	if strings.TrimSpace(oldVersion) == "" {
		return text, false
	}
	want := NormalizeVersion(oldVersion)
	var b strings.Builder
	changed := false
	start := 0
	for start <= len(text) {
		end := start
		for end < len(text) && !isRangeDelimiter(text[end]) {
			end++
		}
		token := text[start:end]
		if token != "" && NormalizeVersion(token) == want {
			b.WriteString(newVersion)
			changed = true
		} else {
			b.WriteString(token)
		}
		if end < len(text) {
			b.WriteByte(text[end])
		}
		start = end + 1
	}
	return b.String(), changed
}

func isRangeDelimiter(c byte) bool {
	switch c {
	case '[', ']', '(', ')', ',', ' ', '\t':
		return true
	}
	return false
}

// PlanVersionUpdate sets the version of every produced package selected by
// match to version.
func PlanVersionUpdate(repos []*types.Repository, match func(string) bool, version string) []types.ManifestEdit {
	var edits []types.ManifestEdit
	for _, repo := range repos {
		for mi := range repo.Manifests {
			manifest := &repo.Manifests[mi]
			if !match(manifest.ID) || manifest.Version == version {
				continue
			}
			edits = append(edits, types.ManifestEdit{
				Path:       manifest.Path,
				Kind:       types.ManifestEditPackageVersion,
				PackageID:  manifest.ID,
				OldVersion: manifest.Version,
				NewVersion: version,
			})
			manifest.Version = version
		}
	}
	return edits
}

// PlanDependencyUpdate sets the version of every dependency selected by match
// to version, whatever its current text.
func PlanDependencyUpdate(repos []*types.Repository, match func(string) bool, version string) []types.ManifestEdit {
	var edits []types.ManifestEdit
	for _, repo := range repos {
		for mi := range repo.Manifests {
			manifest := &repo.Manifests[mi]
			for gi := range manifest.Groups {
				deps := manifest.Groups[gi].Dependencies
				for di := range deps {
					if !match(deps[di].ID) || deps[di].VersionRange == version {
						continue
					}
					edits = append(edits, types.ManifestEdit{
						Path:       manifest.Path,
						Kind:       types.ManifestEditDependencyVersion,
						PackageID:  deps[di].ID,
						OldVersion: deps[di].VersionRange,
						NewVersion: version,
					})
					deps[di].VersionRange = version
				}
			}
		}
	}
	return edits
}
