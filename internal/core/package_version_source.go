package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/types"
)

type registration struct {
	packageID string
	entry     types.LineupPackageVersion
	framework Framework
	version   string
}

// PackageVersionSource answers "which version does the lineup set approve for
// this package on this framework". It is built once per policy run.
type PackageVersionSource struct {
	precedence  types.LineupPrecedence
	packages    map[string][]registration
	ambiguities map[string]types.LineupAmbiguity
}

func NewPackageVersionSource(precedence types.LineupPrecedence) *PackageVersionSource {
	if precedence == "" {
		precedence = types.PrecedenceLastWins
	}
	return &PackageVersionSource{
		precedence:  precedence,
		packages:    map[string][]registration{},
		ambiguities: map[string]types.LineupAmbiguity{},
	}
}

// AddPackagesFromLineup registers every dependency of every group. A group
// with an unparseable framework or range rejects the whole lineup.
func (s *PackageVersionSource) AddPackagesFromLineup(lineupName string, lineupVersion string, groups []types.PackageDependencyGroup) error {
	pending := make([]registration, 0)
	for _, group := range groups {
		framework, err := ParseFramework(group.TargetFramework)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("lineup %s %s: invalid framework %q", lineupName, lineupVersion, group.TargetFramework)).
				WithCause(err)
		}
		for _, dep := range group.Dependencies {
			id := strings.TrimSpace(dep.ID)
			if id == "" {
				continue
			}
			version := ""
			if strings.TrimSpace(dep.VersionRange) != "" {
				r, err := ParseVersionRange(dep.VersionRange)
				if err != nil {
					return errbuilder.New().
						WithCode(errbuilder.CodeInvalidArgument).
						WithMsg(fmt.Sprintf("lineup %s %s: package %s", lineupName, lineupVersion, id)).
						WithCause(err)
				}
				version = r.MinVersion
			}
			pending = append(pending, registration{
				packageID: id,
				entry: types.LineupPackageVersion{
					LineupName:      lineupName,
					LineupVersion:   lineupVersion,
					TargetFramework: framework.String(),
					VersionRange:    dep.VersionRange,
				},
				framework: framework,
				version:   version,
			})
		}
	}
	for _, reg := range pending {
		key := strings.ToLower(reg.packageID)
		s.packages[key] = append(s.packages[key], reg)
	}
	return nil
}

// TryGetPackageVersion returns the version of the nearest compatible framework
// group. Registrations without a version never match.
func (s *PackageVersionSource) TryGetPackageVersion(packageID string, project Framework) (string, bool) {
	regs := s.versioned(packageID)
	if len(regs) == 0 {
		return "", false
	}
	frameworks := make([]Framework, len(regs))
	for i, reg := range regs {
		frameworks[i] = reg.framework
	}
	idx, ok := GetNearest(project, frameworks)
	if !ok {
		return "", false
	}
	nearest := frameworks[idx]
	tied := make([]registration, 0, 1)
	for _, reg := range regs {
		if reg.framework.Equals(nearest) {
			tied = append(tied, reg)
		}
	}
	return s.pick(packageID, project, tied)
}

// TryGetAnyPackageVersion returns a version only when every registration of
// the package agrees on it.
func (s *PackageVersionSource) TryGetAnyPackageVersion(packageID string) (string, bool) {
	regs := s.versioned(packageID)
	if len(regs) == 0 {
		return "", false
	}
	for _, reg := range regs[1:] {
		if reg.version != regs[0].version {
			return "", false
		}
	}
	return regs[0].version, true
}

func (s *PackageVersionSource) versioned(packageID string) []registration {
	all := s.packages[strings.ToLower(strings.TrimSpace(packageID))]
	out := make([]registration, 0, len(all))
	for _, reg := range all {
		if reg.version != "" {
			out = append(out, reg)
		}
	}
	return out
}

func (s *PackageVersionSource) pick(packageID string, project Framework, tied []registration) (string, bool) {
	switch s.precedence {
	case types.PrecedenceFirstWins:
		return tied[0].version, true
	case types.PrecedenceStrict:
		for _, reg := range tied[1:] {
			if reg.version != tied[0].version {
				s.recordAmbiguity(packageID, project, tied)
				return "", false
			}
		}
		return tied[0].version, true
	default:
		return tied[len(tied)-1].version, true
	}
}

func (s *PackageVersionSource) recordAmbiguity(packageID string, project Framework, tied []registration) {
	key := strings.ToLower(packageID) + "|" + project.String()
	if _, ok := s.ambiguities[key]; ok {
		return
	}
	candidates := make([]types.LineupPackageVersion, len(tied))
	for i, reg := range tied {
		candidates[i] = reg.entry
	}
	s.ambiguities[key] = types.LineupAmbiguity{
		PackageID:       tied[0].packageID,
		TargetFramework: project.String(),
		Candidates:      candidates,
	}
}

// Ambiguities lists the disagreements seen under strict precedence, sorted by
// package id then framework.
func (s *PackageVersionSource) Ambiguities() []types.LineupAmbiguity {
	out := make([]types.LineupAmbiguity, 0, len(s.ambiguities))
	for _, ambiguity := range s.ambiguities {
		out = append(out, ambiguity)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PackageID != out[j].PackageID {
			return out[i].PackageID < out[j].PackageID
		}
		return out[i].TargetFramework < out[j].TargetFramework
	})
	return out
}

// PackageIDs returns every registered id in first-seen casing, sorted.
func (s *PackageVersionSource) PackageIDs() []string {
	out := make([]string, 0, len(s.packages))
	for _, regs := range s.packages {
		out = append(out, regs[0].packageID)
	}
	sort.Strings(out)
	return out
}
