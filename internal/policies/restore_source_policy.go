package policies

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AdditionalRestoreSourcePolicy adds feeds to every project's restore sources.
// Relative folders are anchored at the solution directory; sources the
// restore already uses are not added again.
type AdditionalRestoreSourcePolicy struct {
	Sources []string
}

func newAdditionalRestoreSourcePolicy(node *yaml.Node) (Policy, error) {
	var settings struct {
		Sources []string `yaml:"sources"`
	}
	if err := node.Decode(&settings); err != nil {
		return nil, err
	}
	if len(settings.Sources) == 0 {
		return nil, fmt.Errorf("sources must not be empty")
	}
	for _, source := range settings.Sources {
		if strings.Contains(source, "://") {
			if _, err := url.Parse(source); err != nil {
				return nil, fmt.Errorf("source %q: %w", source, err)
			}
		}
	}
	return &AdditionalRestoreSourcePolicy{Sources: settings.Sources}, nil
}

func (p *AdditionalRestoreSourcePolicy) Name() string {
	return TypeAdditionalRestoreSource
}

func (p *AdditionalRestoreSourcePolicy) Apply(_ context.Context, pc *Context) error {
	configured := map[string]struct{}{}
	for _, source := range pc.Restore.Sources {
		configured[sourceKey(source)] = struct{}{}
	}
	for _, source := range p.Sources {
		source = strings.TrimSpace(source)
		if !strings.Contains(source, "://") && !filepath.IsAbs(source) && pc.SolutionDirectory != "" {
			source = filepath.Join(pc.SolutionDirectory, source)
		}
		if _, ok := configured[sourceKey(source)]; ok {
			continue
		}
		pc.Edits.AddRestoreSource(source)
	}
	return nil
}

func sourceKey(source string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(source), "/\\"))
}
