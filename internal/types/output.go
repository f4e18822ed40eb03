package types

// PlannedChange is one edit to a project file, computed before any write.
type PlannedChange struct {
	PackageID string
	Kind      ChangeKind
	OldValue  string
	NewValue  string
	Offset    int
	End       int
}

type PatchPlan struct {
	Path    string
	Changes []PlannedChange
}

func (p PatchPlan) UpToDate() bool {
	return len(p.Changes) == 0
}

// WriteResult reports whether a file was written or left alone.
type WriteResult struct {
	Path     string
	Written  bool
	UpToDate bool
}

type BOMArtifact struct {
	ID           string
	Version      string
	Dependencies []BOMDependency
}

type BOMDependency struct {
	ID              string
	Version         string
	TargetFramework string
}
