package policies

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

// PinnedVersionPolicy assigns fixed versions to named packages. Like the
// lineup policy it leaves explicitly versioned references alone.
type PinnedVersionPolicy struct {
	Packages map[string]string
}

func newPinnedVersionPolicy(node *yaml.Node) (Policy, error) {
	var settings struct {
		Packages map[string]string `yaml:"packages"`
	}
	if err := node.Decode(&settings); err != nil {
		return nil, err
	}
	if len(settings.Packages) == 0 {
		return nil, fmt.Errorf("packages must not be empty")
	}
	packages := make(map[string]string, len(settings.Packages))
	for id, version := range settings.Packages {
		if _, err := core.ParseVersion(version); err != nil {
			return nil, fmt.Errorf("package %s: %w", id, err)
		}
		packages[strings.ToLower(id)] = core.NormalizeVersion(version)
	}
	return &PinnedVersionPolicy{Packages: packages}, nil
}

func (p *PinnedVersionPolicy) Name() string {
	return TypePinnedVersion
}

func (p *PinnedVersionPolicy) Apply(_ context.Context, pc *Context) error {
	for _, project := range pc.Projects {
		for _, fw := range project.Frameworks {
			for _, ref := range sortedReferences(fw) {
				version, ok := p.Packages[strings.ToLower(ref.ID)]
				if !ok || !pinnable(ref) {
					continue
				}
				pc.Edits.Set(types.PackageVersionEdit{
					ProjectPath:         project.FullPath,
					TargetFramework:     fw.TargetFramework,
					PackageID:           ref.ID,
					Version:             version,
					IsImplicitlyDefined: true,
					Source:              TypePinnedVersion,
				})
			}
		}
	}
	return nil
}
