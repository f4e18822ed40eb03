package policies

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

type disallowedRule struct {
	ID       string `yaml:"id"`
	Versions string `yaml:"versions"`
}

// DisallowedVersionPolicy fails when any reference, after the edits of the
// preceding policies, resolves to a version inside a banned range. Every
// offender is logged before the policy fails.
type DisallowedVersionPolicy struct {
	ranges map[string][]types.VersionRange
}

func newDisallowedVersionPolicy(node *yaml.Node) (Policy, error) {
	var settings struct {
		Packages []disallowedRule `yaml:"packages"`
	}
	if err := node.Decode(&settings); err != nil {
		return nil, err
	}
	if len(settings.Packages) == 0 {
		return nil, fmt.Errorf("packages must not be empty")
	}
	policy := &DisallowedVersionPolicy{ranges: map[string][]types.VersionRange{}}
	for _, rule := range settings.Packages {
		if strings.TrimSpace(rule.ID) == "" {
			return nil, fmt.Errorf("disallowed entry without id")
		}
		r, err := core.ParseVersionRange(rule.Versions)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", rule.ID, err)
		}
		key := strings.ToLower(rule.ID)
		policy.ranges[key] = append(policy.ranges[key], r)
	}
	return policy, nil
}

func (p *DisallowedVersionPolicy) Name() string {
	return TypeDisallowedVersion
}

func (p *DisallowedVersionPolicy) Apply(_ context.Context, pc *Context) error {
	violations := 0
	for _, project := range pc.Projects {
		for _, fw := range project.Frameworks {
			for _, ref := range sortedReferences(fw) {
				ranges, ok := p.ranges[strings.ToLower(ref.ID)]
				if !ok {
					continue
				}
				version := pc.effectiveVersion(project, fw.TargetFramework, ref)
				if _, err := core.ParseVersion(version); err != nil {
					continue
				}
				for _, r := range ranges {
					inside, err := core.RangeSatisfies(r, version)
					if err != nil || !inside {
						continue
					}
					violations++
					pc.Logger.LogError(types.CodeDisallowedVersion, project.FullPath,
						fmt.Sprintf("%s %s (%s) is disallowed by range %s", ref.ID, version, fw.TargetFramework, r.Raw))
					break
				}
			}
		}
	}
	if violations > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%d disallowed package version(s) referenced", violations))
	}
	return nil
}
