package ports

import (
	"context"

	"korebuild-tools/internal/types"
)

// LineupSourcePort returns the dependency groups a lineup package declares.
type LineupSourcePort interface {
	DependencyGroups(ctx context.Context, lineup types.LineupRef) ([]types.PackageDependencyGroup, error)
}

// RestoreLineupSourcePort is a lineup source that can also search the
// restore locations of a single run.
type RestoreLineupSourcePort interface {
	LineupSourcePort
	ForRestore(restore types.RestoreConfig) LineupSourcePort
}

// NuGetConfigPort reads restore sources and the packages folder from a
// NuGet.config file.
type NuGetConfigPort interface {
	ReadNuGetConfig(path string) (types.RestoreConfig, error)
}

// FeedPort talks to a NuGet v3 feed.
type FeedPort interface {
	Download(ctx context.Context, id string, version string) ([]byte, error)
	Push(ctx context.Context, packagePath string) error
}
