package types

type PackageDependency struct {
	ID           string
	VersionRange string
}

// PackageDependencyGroup is the set of dependencies a package declares for a
// single target framework. An empty TargetFramework is framework-agnostic.
type PackageDependencyGroup struct {
	TargetFramework string
	Dependencies    []PackageDependency
}

// LineupRef identifies a lineup package by id and version.
type LineupRef struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

func (r LineupRef) String() string {
	return r.ID + "/" + r.Version
}

// LineupPackageVersion is one registration of a package inside a lineup.
type LineupPackageVersion struct {
	LineupName      string
	LineupVersion   string
	TargetFramework string
	VersionRange    string
}

// Nuspec is the subset of a package manifest the tools care about.
type Nuspec struct {
	Path    string
	ID      string
	Version string
	Groups  []PackageDependencyGroup
}

// LineupAmbiguity records disagreeing lineups under strict precedence.
type LineupAmbiguity struct {
	PackageID       string
	TargetFramework string
	Candidates      []LineupPackageVersion
}
