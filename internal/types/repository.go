package types

// Repository is a node of the cross-repository dependency graph. Dependents
// holds indices into the owning graph's repository slice.
type Repository struct {
	Name                string
	Path                string
	Order               int
	Packages            map[string]struct{}
	PackageDependencies map[string]struct{}
	Dependents          []int
	Manifests           []Nuspec
}

func NewRepository(name string, path string) *Repository {
	return &Repository{
		Name:                name,
		Path:                path,
		Packages:            map[string]struct{}{},
		PackageDependencies: map[string]struct{}{},
	}
}

// PatchRule licenses a bump of every package matching Match from
// CurrentVersion to NewVersion.
type PatchRule struct {
	Match          string `yaml:"match"`
	CurrentVersion string `yaml:"current_version"`
	NewVersion     string `yaml:"new_version"`
}

type PatchPackage struct {
	Name           string `yaml:"name"`
	CurrentVersion string `yaml:"current_version"`
	NewVersion     string `yaml:"new_version,omitempty"`
}

type PatchConfig struct {
	Rules    []PatchRule    `yaml:"rules"`
	Packages []PatchPackage `yaml:"packages,omitempty"`
}

// ManifestEdit is a planned textual change to a nuspec manifest.
type ManifestEdit struct {
	Path       string
	Kind       ManifestEditKind
	PackageID  string
	OldVersion string
	NewVersion string
}

// PackageBump records a produced package moved to a new version.
type PackageBump struct {
	Repository string
	PackageID  string
	OldVersion string
	NewVersion string
}
