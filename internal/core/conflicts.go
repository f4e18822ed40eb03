package core

import (
	"fmt"
	"sort"
	"strings"

	"korebuild-tools/internal/types"
)

// ConflictReport is the outcome of a conflict scan. Conflicts are fatal,
// floating references are warnings.
type ConflictReport struct {
	Conflicts []types.VersionConflict
	Floating  []types.FloatingReference
}

func (r ConflictReport) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

type conflictBucket struct {
	id         string
	references map[types.ConflictReference]struct{}
	versions   map[string]struct{}
}

// DetectConflicts compares the literal versions every project assigns to each
// package. References carrying NoWarn KRB3001, implicit references, variable
// references and floating versions take no part in the comparison.
func DetectConflicts(projects []types.ProjectInfo) ConflictReport {
	buckets := map[string]*conflictBucket{}
	floating := map[types.FloatingReference]struct{}{}
	for _, project := range projects {
		for _, fw := range project.Frameworks {
			for _, ref := range fw.Dependencies {
				version := strings.TrimSpace(ref.Version)
				if version == "" || ref.IsImplicitlyDefined {
					continue
				}
				if _, ok := ReferencedVariable(version); ok {
					continue
				}
				if IsFloatingVersion(version) {
					floating[types.FloatingReference{PackageID: ref.ID, ProjectPath: project.FullPath, Version: version}] = struct{}{}
					continue
				}
				if ref.Suppresses(types.CodeVersionConflict) {
					continue
				}
				key := strings.ToLower(ref.ID)
				bucket, ok := buckets[key]
				if !ok {
					bucket = &conflictBucket{
						id:         ref.ID,
						references: map[types.ConflictReference]struct{}{},
						versions:   map[string]struct{}{},
					}
					buckets[key] = bucket
				}
				bucket.references[types.ConflictReference{ProjectPath: project.FullPath, Version: version}] = struct{}{}
				bucket.versions[NormalizeVersion(version)] = struct{}{}
			}
		}
	}

	report := ConflictReport{}
	for _, bucket := range buckets {
		if len(bucket.versions) < 2 {
			continue
		}
		refs := make([]types.ConflictReference, 0, len(bucket.references))
		for ref := range bucket.references {
			refs = append(refs, ref)
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].ProjectPath != refs[j].ProjectPath {
				return refs[i].ProjectPath < refs[j].ProjectPath
			}
			return refs[i].Version < refs[j].Version
		})
		report.Conflicts = append(report.Conflicts, types.VersionConflict{PackageID: bucket.id, References: refs})
	}
	sort.Slice(report.Conflicts, func(i, j int) bool {
		return strings.ToLower(report.Conflicts[i].PackageID) < strings.ToLower(report.Conflicts[j].PackageID)
	})
	for ref := range floating {
		report.Floating = append(report.Floating, ref)
	}
	sort.Slice(report.Floating, func(i, j int) bool {
		if report.Floating[i].PackageID != report.Floating[j].PackageID {
			return report.Floating[i].PackageID < report.Floating[j].PackageID
		}
		return report.Floating[i].ProjectPath < report.Floating[j].ProjectPath
	})
	return report
}

// FormatConflict renders one conflict the way it is logged:
// "Conflicting versions of Foo: a.csproj (1.0.0), b.csproj (2.0.0)".
func FormatConflict(conflict types.VersionConflict) string {
	parts := make([]string, 0, len(conflict.References))
	for _, ref := range conflict.References {
		parts = append(parts, fmt.Sprintf("%s (%s)", ref.ProjectPath, ref.Version))
	}
	return fmt.Sprintf("Conflicting versions of %s: %s", conflict.PackageID, strings.Join(parts, ", "))
}
