package ports

import "korebuild-tools/internal/types"

type PolicyFilePort interface {
	LoadPolicies(path string) (types.PolicyFile, error)
}

type PatchConfigPort interface {
	LoadPatchConfig(path string) (types.PatchConfig, error)
}
