package core

import (
	"sort"
	"strings"

	"korebuild-tools/internal/types"
)

// DependencyVersionsFile is the in-memory form of a version manifest.
// Variables keep the casing of their first write and serialize sorted.
type DependencyVersionsFile struct {
	HasVersionsPropertyGroup bool

	overrideImport string
	variables      map[string]*types.VersionVariable
}

func NewDependencyVersionsFile() *DependencyVersionsFile {
	return &DependencyVersionsFile{variables: map[string]*types.VersionVariable{}}
}

func variableKey(name string) string {
	return strings.ToLower(name)
}

// Set adds or overwrites a writable variable. It returns false, leaving the
// value unchanged, when the existing variable is read-only.
func (f *DependencyVersionsFile) Set(name string, value string) bool {
	key := variableKey(name)
	if existing, ok := f.variables[key]; ok {
		if existing.IsReadOnly {
			return false
		}
		existing.Value = value
		return true
	}
	f.variables[key] = &types.VersionVariable{Name: name, Value: value}
	return true
}

// Update overwrites an existing writable variable. Unknown and read-only
// names are left alone.
func (f *DependencyVersionsFile) Update(name string, value string) bool {
	existing, ok := f.variables[variableKey(name)]
	if !ok || existing.IsReadOnly {
		return false
	}
	existing.Value = value
	return true
}

// AddPinned records a read-only variable, replacing any writable one.
func (f *DependencyVersionsFile) AddPinned(name string, value string) {
	key := variableKey(name)
	if existing, ok := f.variables[key]; ok {
		existing.Value = value
		existing.IsReadOnly = true
		return
	}
	f.variables[key] = &types.VersionVariable{Name: name, Value: value, IsReadOnly: true}
}

func (f *DependencyVersionsFile) Get(name string) (types.VersionVariable, bool) {
	existing, ok := f.variables[variableKey(name)]
	if !ok {
		return types.VersionVariable{}, false
	}
	return *existing, true
}

func (f *DependencyVersionsFile) Len() int {
	return len(f.variables)
}

// Variables returns every variable sorted by name.
func (f *DependencyVersionsFile) Variables() []types.VersionVariable {
	out := make([]types.VersionVariable, 0, len(f.variables))
	for _, variable := range f.variables {
		out = append(out, *variable)
	}
	sort.Slice(out, func(i, j int) bool {
		left, right := variableKey(out[i].Name), variableKey(out[j].Name)
		if left != right {
			return left < right
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SetOverrideImport records the externally supplied override file. Only the
// first non-empty path is kept so the import is emitted once.
func (f *DependencyVersionsFile) SetOverrideImport(path string) {
	if f.overrideImport != "" || strings.TrimSpace(path) == "" {
		return
	}
	f.overrideImport = strings.TrimSpace(path)
}

func (f *DependencyVersionsFile) OverrideImport() string {
	return f.overrideImport
}

// FromManifest rebuilds the model from its persisted form. Later duplicates
// overwrite earlier ones the same way Set does.
func FromManifest(manifest types.VersionManifest) *DependencyVersionsFile {
	f := NewDependencyVersionsFile()
	f.HasVersionsPropertyGroup = manifest.HasVersionsPropertyGroup
	f.SetOverrideImport(manifest.OverrideImport)
	for _, variable := range manifest.Variables {
		if variable.IsReadOnly {
			f.AddPinned(variable.Name, variable.Value)
			continue
		}
		f.Set(variable.Name, variable.Value)
	}
	return f
}

// Manifest returns the persisted form with variables sorted.
func (f *DependencyVersionsFile) Manifest() types.VersionManifest {
	return types.VersionManifest{
		Variables:                f.Variables(),
		HasVersionsPropertyGroup: f.HasVersionsPropertyGroup,
		OverrideImport:           f.overrideImport,
	}
}
