package policies

import (
	"context"
	"sort"
	"strings"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// Policy is one step of the pipeline. Policies never touch the project
// snapshots; they record edits in Context.Edits.
type Policy interface {
	Name() string
	Apply(ctx context.Context, pc *Context) error
}

// Context is the state shared by every policy of one run.
type Context struct {
	SolutionDirectory string
	Projects          []types.ProjectInfo
	Restore           types.RestoreConfig
	Config            types.EngineConfig
	Logger            ports.BuildLoggerPort
	Lineups           ports.LineupSourcePort
	Edits             *EditSet

	// Versions is populated by the lineup policy and read by later stages.
	Versions *core.PackageVersionSource
}

func NewContext(solutionDir string, projects []types.ProjectInfo, restore types.RestoreConfig, config types.EngineConfig, logger ports.BuildLoggerPort, lineups ports.LineupSourcePort) *Context {
	return &Context{
		SolutionDirectory: solutionDir,
		Projects:          projects,
		Restore:           restore,
		Config:            config,
		Logger:            logger,
		Lineups:           lineups,
		Edits:             NewEditSet(),
	}
}

type editKey struct {
	project   string
	framework string
	packageID string
}

// EditSet collects planned version assignments. A later Set for the same
// project, framework and package replaces the earlier one.
type EditSet struct {
	edits   map[editKey]types.PackageVersionEdit
	sources []string
}

func NewEditSet() *EditSet {
	return &EditSet{edits: map[editKey]types.PackageVersionEdit{}}
}

func keyOf(edit types.PackageVersionEdit) editKey {
	return editKey{
		project:   edit.ProjectPath,
		framework: strings.ToLower(edit.TargetFramework),
		packageID: strings.ToLower(edit.PackageID),
	}
}

func (s *EditSet) Set(edit types.PackageVersionEdit) {
	s.edits[keyOf(edit)] = edit
}

func (s *EditSet) Get(projectPath string, framework string, packageID string) (types.PackageVersionEdit, bool) {
	edit, ok := s.edits[editKey{project: projectPath, framework: strings.ToLower(framework), packageID: strings.ToLower(packageID)}]
	return edit, ok
}

func (s *EditSet) Len() int {
	return len(s.edits)
}

// All returns every edit ordered by project, framework and package id.
func (s *EditSet) All() []types.PackageVersionEdit {
	out := make([]types.PackageVersionEdit, 0, len(s.edits))
	for _, edit := range s.edits {
		out = append(out, edit)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := keyOf(out[i]), keyOf(out[j])
		if a.project != b.project {
			return a.project < b.project
		}
		if a.framework != b.framework {
			return a.framework < b.framework
		}
		return a.packageID < b.packageID
	})
	return out
}

// ByProject groups All() by project path.
func (s *EditSet) ByProject() map[string][]types.PackageVersionEdit {
	out := map[string][]types.PackageVersionEdit{}
	for _, edit := range s.All() {
		out[edit.ProjectPath] = append(out[edit.ProjectPath], edit)
	}
	return out
}

// AddRestoreSource records an extra restore feed once.
func (s *EditSet) AddRestoreSource(source string) {
	source = strings.TrimSpace(source)
	if source == "" {
		return
	}
	for _, existing := range s.sources {
		if strings.EqualFold(existing, source) {
			return
		}
	}
	s.sources = append(s.sources, source)
}

func (s *EditSet) RestoreSources() []string {
	return append([]string{}, s.sources...)
}

// effectiveVersion is the version a reference ends up with after the edits
// recorded so far.
func (pc *Context) effectiveVersion(project types.ProjectInfo, framework string, ref types.PackageReferenceInfo) string {
	if edit, ok := pc.Edits.Get(project.FullPath, framework, ref.ID); ok {
		return edit.Version
	}
	return ref.Version
}

// sortedReferences returns a framework's references ordered by id.
func sortedReferences(fw types.ProjectFrameworkInfo) []types.PackageReferenceInfo {
	refs := make([]types.PackageReferenceInfo, 0, len(fw.Dependencies))
	for _, ref := range fw.Dependencies {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return strings.ToLower(refs[i].ID) < strings.ToLower(refs[j].ID)
	})
	return refs
}

// pinnable reports whether a policy may assign a version to ref: it has no
// version or its version was implicitly defined.
func pinnable(ref types.PackageReferenceInfo) bool {
	return strings.TrimSpace(ref.Version) == "" || ref.IsImplicitlyDefined
}
