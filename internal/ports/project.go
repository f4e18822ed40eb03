package ports

import (
	"context"

	"korebuild-tools/internal/types"
)

// ProjectReaderPort performs a design-time evaluation of one project file.
// Properties are global properties seeded before evaluation.
type ProjectReaderPort interface {
	ReadProject(ctx context.Context, path string, properties map[string]string) (types.ProjectInfo, error)
}

// SolutionReaderPort lists the project files referenced by a solution.
type SolutionReaderPort interface {
	ReadSolution(path string) ([]string, error)
}
