package adapters

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

type nuspecDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

type nuspecGroup struct {
	TargetFramework string             `xml:"targetFramework,attr"`
	Dependencies    []nuspecDependency `xml:"dependency"`
}

type nuspecDocument struct {
	Metadata struct {
		ID           string `xml:"id"`
		Version      string `xml:"version"`
		Dependencies struct {
			Groups []nuspecGroup       `xml:"group"`
			Flat   []nuspecDependency `xml:"dependency"`
		} `xml:"dependencies"`
	} `xml:"metadata"`
}

// ParseNuspec reads package id, version and dependency groups from a nuspec.
// Dependencies outside any group form the framework-agnostic group.
func ParseNuspec(path string, data []byte) (types.Nuspec, error) {
	var doc nuspecDocument
	if err := xml.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return types.Nuspec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: malformed nuspec", path)).
			WithCause(err)
	}
	spec := types.Nuspec{
		Path:    path,
		ID:      strings.TrimSpace(doc.Metadata.ID),
		Version: strings.TrimSpace(doc.Metadata.Version),
	}
	if len(doc.Metadata.Dependencies.Flat) > 0 {
		spec.Groups = append(spec.Groups, toDependencyGroup("", doc.Metadata.Dependencies.Flat))
	}
	for _, group := range doc.Metadata.Dependencies.Groups {
		spec.Groups = append(spec.Groups, toDependencyGroup(group.TargetFramework, group.Dependencies))
	}
	return spec, nil
}

func toDependencyGroup(framework string, deps []nuspecDependency) types.PackageDependencyGroup {
	group := types.PackageDependencyGroup{TargetFramework: strings.TrimSpace(framework)}
	for _, dep := range deps {
		group.Dependencies = append(group.Dependencies, types.PackageDependency{
			ID:           strings.TrimSpace(dep.ID),
			VersionRange: strings.TrimSpace(dep.Version),
		})
	}
	return group
}

func ReadNuspecFile(path string) (types.Nuspec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Nuspec{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: nuspec not found", path)).
			WithCause(err)
	}
	return ParseNuspec(path, data)
}

var (
	nuspecVersionElement = regexp.MustCompile(`(?s)(<version>)(\s*)([^<]*?)(\s*</version>)`)
	nuspecDependencyTag  = regexp.MustCompile(`<dependency\s[^>]*>`)
	tagIDAttribute       = regexp.MustCompile(`\sid\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	tagVersionAttribute  = regexp.MustCompile(`\sversion\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// NuspecEditor applies planned manifest edits as textual substitutions so
// the rest of each file is left byte for byte.
type NuspecEditor struct{}

func NewNuspecEditor() NuspecEditor {
	return NuspecEditor{}
}

// ApplyEdits groups edits per file, applies all of them in memory and only
// then writes. A package-version edit whose old value is no longer present
// fails the whole batch before anything is written, as does a dependency edit
// that matches no <dependency> element.
func (e NuspecEditor) ApplyEdits(edits []types.ManifestEdit) ([]types.WriteResult, error) {
	byPath := map[string][]types.ManifestEdit{}
	var paths []string
	for _, edit := range edits {
		if _, ok := byPath[edit.Path]; !ok {
			paths = append(paths, edit.Path)
		}
		byPath[edit.Path] = append(byPath[edit.Path], edit)
	}
	sort.Strings(paths)

	type pending struct {
		path     string
		original []byte
		updated  []byte
		mode     os.FileMode
	}
	var planned []pending
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("%s: nuspec not found", path)).
				WithCause(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("%s: failed to stat nuspec", path)).
				WithCause(err)
		}
		updated := data
		for _, edit := range byPath[path] {
			switch edit.Kind {
			case types.ManifestEditPackageVersion:
				next, ok := replacePackageVersion(updated, edit.OldVersion, edit.NewVersion)
				if !ok {
					return nil, errbuilder.New().
						WithCode(errbuilder.CodeFailedPrecondition).
						WithMsg(fmt.Sprintf("%s: version %s of %s not found", path, edit.OldVersion, edit.PackageID))
				}
				updated = next
			case types.ManifestEditDependencyVersion:
				next, ok := replaceDependencyVersion(updated, edit.PackageID, edit.OldVersion, edit.NewVersion)
				if !ok {
					return nil, errbuilder.New().
						WithCode(errbuilder.CodeFailedPrecondition).
						WithMsg(fmt.Sprintf("%s: dependency %s %s not found", path, edit.PackageID, edit.OldVersion))
				}
				updated = next
			default:
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("unknown manifest edit kind %q", edit.Kind))
			}
		}
		planned = append(planned, pending{path: path, original: data, updated: updated, mode: info.Mode().Perm()})
	}

	results := make([]types.WriteResult, 0, len(planned))
	for _, p := range planned {
		if bytes.Equal(p.original, p.updated) {
			results = append(results, types.WriteResult{Path: p.path, UpToDate: true})
			continue
		}
		if err := os.WriteFile(p.path, p.updated, p.mode); err != nil {
			return results, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("%s: failed to write nuspec", p.path)).
				WithCause(err)
		}
		results = append(results, types.WriteResult{Path: p.path, Written: true})
	}
	return results, nil
}

// replacePackageVersion rewrites the first <version> element, which in a
// nuspec is the package's own version under <metadata>.
func replacePackageVersion(data []byte, oldVersion string, newVersion string) ([]byte, bool) {
	loc := nuspecVersionElement.FindSubmatchIndex(data)
	if loc == nil {
		return nil, false
	}
	current := string(data[loc[6]:loc[7]])
	if current == newVersion {
		return data, true
	}
	if current != oldVersion {
		return nil, false
	}
	out := append([]byte{}, data[:loc[6]]...)
	out = append(out, escapeXML(newVersion)...)
	return append(out, data[loc[7]:]...), true
}

// replaceDependencyVersion rewrites the version attribute of every
// <dependency> on packageID still at oldVersion. It reports false when no
// dependency on packageID is at oldVersion or newVersion.
func replaceDependencyVersion(data []byte, packageID string, oldVersion string, newVersion string) ([]byte, bool) {
	found := false
	out := nuspecDependencyTag.ReplaceAllFunc(data, func(tag []byte) []byte {
		idStart, idEnd, ok := attributeValue(tagIDAttribute, tag)
		if !ok || !strings.EqualFold(strings.TrimSpace(string(tag[idStart:idEnd])), packageID) {
			return tag
		}
		start, end, ok := attributeValue(tagVersionAttribute, tag)
		if !ok {
			return tag
		}
		switch strings.TrimSpace(string(tag[start:end])) {
		case newVersion:
			found = true
			return tag
		case oldVersion:
			found = true
		default:
			return tag
		}
		replaced := append([]byte{}, tag[:start]...)
		replaced = append(replaced, escapeXML(newVersion)...)
		return append(replaced, tag[end:]...)
	})
	return out, found
}

// attributeValue returns the bounds of the value matched by re, whichever
// quote style the attribute uses.
func attributeValue(re *regexp.Regexp, tag []byte) (int, int, bool) {
	loc := re.FindSubmatchIndex(tag)
	switch {
	case loc == nil:
		return 0, 0, false
	case loc[2] >= 0:
		return loc[2], loc[3], true
	default:
		return loc[4], loc[5], true
	}
}

var _ ports.NuspecEditorPort = NuspecEditor{}
