package ports

import "korebuild-tools/internal/types"

// RepositoryScannerPort discovers repositories under a root and reads their
// package manifests.
type RepositoryScannerPort interface {
	Scan(root string) ([]*types.Repository, error)
}

// NuspecEditorPort applies planned manifest edits. Edits for the same file
// are applied together in a single write.
type NuspecEditorPort interface {
	ApplyEdits(edits []types.ManifestEdit) ([]types.WriteResult, error)
}

type GitStatusPort interface {
	HasLocalChanges(repoPath string) (bool, error)
}
