package ports

import "korebuild-tools/internal/types"

type BOMPort interface {
	WriteBOM(path string, artifacts []types.BOMArtifact) error
}
