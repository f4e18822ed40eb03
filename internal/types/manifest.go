package types

// VersionVariable is one named version in a manifest. Names compare
// case-insensitively.
type VersionVariable struct {
	Name       string
	Value      string
	IsReadOnly bool
}

// VersionManifest is the persisted form of a version manifest: variables in
// serialization order plus the document-level flags.
type VersionManifest struct {
	Variables                []VersionVariable
	HasVersionsPropertyGroup bool
	OverrideImport           string
}
