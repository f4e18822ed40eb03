package app

import (
	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

// ProjectInputs names the solutions and projects to evaluate together with
// the global properties every evaluation starts from.
type ProjectInputs struct {
	Paths      []string
	Properties map[string]string
}

type ApplyPoliciesRequest struct {
	Inputs            ProjectInputs
	PolicyFile        string
	SolutionDirectory string
	Restore           types.RestoreConfig
	BOMPath           string
}

type ApplyPoliciesResult struct {
	Policies []string
	Edits    []types.PackageVersionEdit
	Writes   []types.WriteResult
}

type CheckConflictsRequest struct {
	Inputs ProjectInputs
}

type CheckConflictsResult struct {
	Report core.ConflictReport
}

type GenerateManifestRequest struct {
	Inputs            ProjectInputs
	ManifestPath      string
	VariableOverrides map[string]string
	RewriteProjects   bool
	OverrideImport    string
}

type GenerateManifestResult struct {
	Variables []types.VersionVariable
	Manifest  types.WriteResult
	Projects  []types.WriteResult
}

type UpgradeManifestRequest struct {
	ManifestPath      string
	Lineups           []types.LineupRef
	VariableOverrides map[string]string
}

type UpgradeManifestResult struct {
	Updated  []types.VersionVariable
	Manifest types.WriteResult
}

type PushRequest struct {
	Paths []string
}

type PushResult struct {
	Pushed []string
}

// RepositoryFilter narrows the version tool to repositories (by name or
// path) and packages (by regular expression). Empty lists select everything.
type RepositoryFilter struct {
	Root     string
	Paths    []string
	Matching []string
}

type PackageListing struct {
	Repository string
	PackageID  string
	Version    string
	Manifest   string
}

type DependencyListing struct {
	Repository      string
	Manifest        string
	PackageID       string
	TargetFramework string
	VersionRange    string
}

type UpdateResult struct {
	Edits  []types.ManifestEdit
	Writes []types.WriteResult
}

type UpdatePatchResult struct {
	Modified []string
	Bumps    []types.PackageBump
	Edits    []types.ManifestEdit
	Writes   []types.WriteResult
}
