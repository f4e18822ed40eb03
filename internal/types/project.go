package types

// PackageReferenceInfo is one PackageReference as seen by design-time evaluation.
type PackageReferenceInfo struct {
	ID                  string
	Version             string
	IsImplicitlyDefined bool
	NoWarn              []string
}

func (r PackageReferenceInfo) Suppresses(code ErrorCode) bool {
	for _, entry := range r.NoWarn {
		if entry == string(code) {
			return true
		}
	}
	return false
}

type ProjectFrameworkInfo struct {
	TargetFramework string
	Dependencies    map[string]PackageReferenceInfo
}

// ProjectInfo is a read-only snapshot of a project. Policies never mutate it;
// they record PackageVersionEdit values instead.
type ProjectInfo struct {
	FullPath   string
	Frameworks []ProjectFrameworkInfo
}

// RestoreConfig is the NuGet restore configuration shared by the pipeline.
type RestoreConfig struct {
	Sources      []string
	PackagesPath string
	ConfigFile   string
}

// PackageVersionEdit is a planned version assignment for one project/framework.
type PackageVersionEdit struct {
	ProjectPath         string
	TargetFramework     string
	PackageID           string
	Version             string
	IsImplicitlyDefined bool
	Source              string
}

// VersionConflict names every project/version pair of a package that is
// referenced with more than one literal version.
type VersionConflict struct {
	PackageID  string
	References []ConflictReference
}

type ConflictReference struct {
	ProjectPath string
	Version     string
}

// FloatingReference is a PackageReference whose version floats (1.0.*).
type FloatingReference struct {
	PackageID   string
	ProjectPath string
	Version     string
}
