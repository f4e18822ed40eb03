package ports

import "korebuild-tools/internal/types"

// ProjectPatcherPort plans and applies PackageReference version changes.
// Apply never writes when the plan is empty.
type ProjectPatcherPort interface {
	Plan(path string, versions map[string]string) (types.PatchPlan, error)
	Apply(plan types.PatchPlan) (types.WriteResult, error)
}

// TargetsExtensionPort renders the policy edits of one project into its
// generated targets file.
type TargetsExtensionPort interface {
	Write(projectPath string, edits []types.PackageVersionEdit, restoreSources []string) (types.WriteResult, error)
}

type ManifestPort interface {
	Load(path string) (types.VersionManifest, error)
	Save(path string, manifest types.VersionManifest) (types.WriteResult, error)
}
