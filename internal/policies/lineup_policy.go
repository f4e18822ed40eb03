package policies

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

type lineupSettings struct {
	Precedence types.LineupPrecedence `yaml:"precedence"`
	Lineups    []types.LineupRef      `yaml:"lineups"`
}

// LineupPolicy pins every reference that has no explicit version (or an
// implicitly defined one) to the version its lineups approve for the
// reference's framework.
type LineupPolicy struct {
	Precedence types.LineupPrecedence
	Lineups    []types.LineupRef
}

func newLineupPolicy(node *yaml.Node) (Policy, error) {
	var settings lineupSettings
	if err := node.Decode(&settings); err != nil {
		return nil, err
	}
	if len(settings.Lineups) == 0 {
		return nil, fmt.Errorf("at least one lineup is required")
	}
	for _, ref := range settings.Lineups {
		if strings.TrimSpace(ref.ID) == "" || strings.TrimSpace(ref.Version) == "" {
			return nil, fmt.Errorf("lineup entries need id and version")
		}
	}
	switch settings.Precedence {
	case "", types.PrecedenceLastWins, types.PrecedenceFirstWins, types.PrecedenceStrict:
	default:
		return nil, fmt.Errorf("unknown precedence %q", settings.Precedence)
	}
	return &LineupPolicy{Precedence: settings.Precedence, Lineups: settings.Lineups}, nil
}

func (p *LineupPolicy) Name() string {
	refs := make([]string, len(p.Lineups))
	for i, ref := range p.Lineups {
		refs[i] = ref.String()
	}
	return TypeLineup + "(" + strings.Join(refs, ",") + ")"
}

func (p *LineupPolicy) Apply(ctx context.Context, pc *Context) error {
	precedence := p.Precedence
	if precedence == "" {
		precedence = pc.Config.Precedence
	}
	source := core.NewPackageVersionSource(precedence)
	for _, ref := range p.Lineups {
		groups, err := pc.Lineups.DependencyGroups(ctx, ref)
		if err != nil {
			return err
		}
		if err := source.AddPackagesFromLineup(ref.ID, ref.Version, groups); err != nil {
			return err
		}
		log.Ctx(ctx).Debug().Str("lineup", ref.String()).Int("groups", len(groups)).Msg("lineup loaded")
	}
	pc.Versions = source

	pinned := 0
	for _, project := range pc.Projects {
		for _, fw := range project.Frameworks {
			framework, err := core.ParseFramework(fw.TargetFramework)
			if err != nil {
				return err
			}
			for _, ref := range sortedReferences(fw) {
				if !pinnable(ref) {
					continue
				}
				version, ok := source.TryGetPackageVersion(ref.ID, framework)
				if !ok {
					continue
				}
				pc.Edits.Set(types.PackageVersionEdit{
					ProjectPath:         project.FullPath,
					TargetFramework:     fw.TargetFramework,
					PackageID:           ref.ID,
					Version:             version,
					IsImplicitlyDefined: true,
					Source:              TypeLineup,
				})
				pinned++
			}
		}
	}
	if ambiguities := source.Ambiguities(); len(ambiguities) > 0 {
		parts := make([]string, 0, len(ambiguities))
		for _, ambiguity := range ambiguities {
			candidates := make([]string, 0, len(ambiguity.Candidates))
			for _, candidate := range ambiguity.Candidates {
				candidates = append(candidates, fmt.Sprintf("%s/%s=%s", candidate.LineupName, candidate.LineupVersion, candidate.VersionRange))
			}
			parts = append(parts, fmt.Sprintf("%s (%s): %s", ambiguity.PackageID, ambiguity.TargetFramework, strings.Join(candidates, ", ")))
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("lineups disagree under strict precedence: " + strings.Join(parts, "; "))
	}
	pc.Logger.LogMessage(fmt.Sprintf("lineup policy pinned %d package reference(s)", pinned))
	return nil
}
