package adapters

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

const (
	labelVersions       = "Package Versions"
	labelVersionsAuto   = "Package Versions: Auto"
	labelVersionsPinned = "Package Versions: Pinned"
)

// ManifestFileAdapter persists version manifests as MSBuild property files:
// writable variables under "Package Versions" (or "Package Versions: Auto"
// when read from there), read-only ones under "Package Versions: Pinned".
type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

func (a ManifestFileAdapter) Load(path string) (types.VersionManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.VersionManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: version manifest not found", path)).
			WithCause(err)
	}
	root, err := parseXMLTree(bytes.TrimPrefix(data, utf8BOM))
	if err != nil {
		return types.VersionManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: malformed version manifest", path)).
			WithCause(err)
	}

	manifest := types.VersionManifest{}
	for _, node := range root.Children {
		switch {
		case node.Is("PropertyGroup"):
			label, _ := node.Attr("Label")
			label = strings.TrimSpace(label)
			var readOnly bool
			switch {
			case strings.EqualFold(label, labelVersions):
				manifest.HasVersionsPropertyGroup = true
			case strings.EqualFold(label, labelVersionsAuto):
			case strings.EqualFold(label, labelVersionsPinned):
				readOnly = true
			default:
				continue
			}
			for _, prop := range node.Children {
				manifest.Variables = append(manifest.Variables, types.VersionVariable{
					Name:       prop.Name,
					Value:      strings.TrimSpace(prop.Text),
					IsReadOnly: readOnly,
				})
			}
		case node.Is("Import"):
			if project, ok := node.Attr("Project"); ok && manifest.OverrideImport == "" {
				manifest.OverrideImport = strings.TrimSpace(project)
			}
		}
	}
	return manifest, nil
}

// Save writes the manifest only when the content changed. An existing file
// keeps every node it had: only the version property groups are rewritten in
// place, and missing groups or the override import are inserted where they
// take effect (versions before the import, pinned values after it).
func (a ManifestFileAdapter) Save(path string, manifest types.VersionManifest) (types.WriteResult, error) {
	var content []byte
	existing, err := os.ReadFile(path)
	if err == nil {
		content, err = spliceManifest(existing, manifest)
		if err != nil {
			return types.WriteResult{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s: malformed version manifest", path)).
				WithCause(err)
		}
		if bytes.Equal(existing, content) {
			return types.WriteResult{Path: path, UpToDate: true}, nil
		}
	} else {
		content = renderManifest(manifest)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create manifest directory").
			WithCause(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s: failed to write version manifest", path)).
			WithCause(err)
	}
	return types.WriteResult{Path: path, Written: true}, nil
}

func renderManifest(manifest types.VersionManifest) []byte {
	groups := groupVariables(manifest.Variables, nil)
	var b strings.Builder
	b.WriteString("<Project>\n")
	if manifest.HasVersionsPropertyGroup || len(groups[labelVersions]) > 0 {
		b.WriteString("  " + renderGroup(groupOpenTag(labelVersions), "  ", groups[labelVersions]) + "\n")
	}
	if manifest.OverrideImport != "" {
		b.WriteString("  " + renderImport(manifest.OverrideImport) + "\n")
	}
	if len(groups[labelVersionsPinned]) > 0 {
		b.WriteString("  " + renderGroup(groupOpenTag(labelVersionsPinned), "  ", groups[labelVersionsPinned]) + "\n")
	}
	b.WriteString("</Project>\n")
	return []byte(b.String())
}

// groupVariables buckets variables by the label they serialize under. A
// writable variable stays in the "Auto" group when it was read from one.
func groupVariables(variables []types.VersionVariable, auto map[string]bool) map[string][]types.VersionVariable {
	out := map[string][]types.VersionVariable{}
	for _, variable := range variables {
		switch {
		case variable.IsReadOnly:
			out[labelVersionsPinned] = append(out[labelVersionsPinned], variable)
		case auto[strings.ToLower(variable.Name)]:
			out[labelVersionsAuto] = append(out[labelVersionsAuto], variable)
		default:
			out[labelVersions] = append(out[labelVersions], variable)
		}
	}
	return out
}

func groupOpenTag(label string) string {
	return fmt.Sprintf("<PropertyGroup Label=\"%s\">", label)
}

func renderGroup(openTag string, indent string, variables []types.VersionVariable) string {
	var b strings.Builder
	b.WriteString(openTag)
	b.WriteString("\n")
	for _, variable := range variables {
		fmt.Fprintf(&b, "%s  <%s>%s</%s>\n", indent, variable.Name, escapeXML(variable.Value), variable.Name)
	}
	b.WriteString(indent)
	b.WriteString("</PropertyGroup>")
	return b.String()
}

func renderImport(project string) string {
	escaped := escapeXML(project)
	return fmt.Sprintf("<Import Project=\"%s\" Condition=\" Exists('%s') \" />", escaped, escaped)
}

// manifestGroup is a top-level version property group located in the source.
type manifestGroup struct {
	label  string
	start  int
	tagEnd int
	end    int
	names  []string
}

type manifestImport struct {
	start   int
	project string
}

type manifestLayout struct {
	groups  []manifestGroup
	imports []manifestImport
	rootEnd int
}

func versionGroupLabel(start xml.StartElement) string {
	for _, attr := range start.Attr {
		if !strings.EqualFold(attr.Name.Local, "Label") {
			continue
		}
		for _, label := range []string{labelVersions, labelVersionsAuto, labelVersionsPinned} {
			if strings.EqualFold(strings.TrimSpace(attr.Value), label) {
				return label
			}
		}
	}
	return ""
}

func scanManifest(body []byte) (manifestLayout, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	layout := manifestLayout{rootEnd: -1}
	var current *manifestGroup
	depth := 0
	for {
		before := int(decoder.InputOffset())
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return manifestLayout{}, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 2 && strings.EqualFold(t.Name.Local, "PropertyGroup"):
				if label := versionGroupLabel(t); label != "" {
					current = &manifestGroup{label: label, start: before, tagEnd: int(decoder.InputOffset())}
				}
			case depth == 2 && strings.EqualFold(t.Name.Local, "Import"):
				project := ""
				for _, attr := range t.Attr {
					if strings.EqualFold(attr.Name.Local, "Project") {
						project = strings.TrimSpace(attr.Value)
					}
				}
				layout.imports = append(layout.imports, manifestImport{start: before, project: project})
			case depth == 3 && current != nil:
				current.names = append(current.names, t.Name.Local)
			}
		case xml.EndElement:
			if depth == 2 && current != nil {
				current.end = int(decoder.InputOffset())
				layout.groups = append(layout.groups, *current)
				current = nil
			}
			if depth == 1 {
				layout.rootEnd = before
			}
			depth--
		}
	}
	if layout.rootEnd < 0 {
		return manifestLayout{}, fmt.Errorf("document has no root element")
	}
	return layout, nil
}

type manifestSplice struct {
	start int
	end   int
	text  string
}

// lineIndent returns the whitespace between the start of the line and pos,
// or "" when other content precedes pos on that line.
func lineIndent(body []byte, pos int) string {
	i := pos
	for i > 0 && (body[i-1] == ' ' || body[i-1] == '\t') {
		i--
	}
	if i > 0 && body[i-1] != '\n' {
		return ""
	}
	return string(body[i:pos])
}

// insertBefore places element on its own line ahead of the node at pos,
// indented like that node, or one level deeper ahead of a closing tag.
func insertBefore(body []byte, pos int, element string) manifestSplice {
	indent := lineIndent(body, pos)
	lineStart := pos - len(indent)
	if lineStart > 0 && body[lineStart-1] != '\n' {
		return manifestSplice{start: pos, end: pos, text: element}
	}
	if bytes.HasPrefix(body[pos:], []byte("</")) {
		indent += "  "
	}
	return manifestSplice{start: lineStart, end: lineStart, text: indent + element + "\n"}
}

func spliceManifest(data []byte, manifest types.VersionManifest) ([]byte, error) {
	base := 0
	if bytes.HasPrefix(data, utf8BOM) {
		base = len(utf8BOM)
	}
	body := data[base:]
	layout, err := scanManifest(body)
	if err != nil {
		return nil, err
	}

	auto := map[string]bool{}
	first := map[string]manifestGroup{}
	for _, group := range layout.groups {
		if group.label == labelVersionsAuto {
			for _, name := range group.names {
				auto[strings.ToLower(name)] = true
			}
		}
	}
	groups := groupVariables(manifest.Variables, auto)

	var splices []manifestSplice
	for _, group := range layout.groups {
		if _, seen := first[group.label]; seen {
			// Later groups with the same label are folded into the first.
			end := group.end
			if end < len(body) && body[end] == '\n' {
				end++
			}
			splices = append(splices, manifestSplice{start: group.start - len(lineIndent(body, group.start)), end: end})
			continue
		}
		first[group.label] = group
		openTag := string(body[group.start:group.tagEnd])
		if group.tagEnd == group.end {
			openTag = groupOpenTag(group.label)
		}
		splices = append(splices, manifestSplice{
			start: group.start,
			end:   group.end,
			text:  renderGroup(openTag, lineIndent(body, group.start), groups[group.label]),
		})
	}

	if _, ok := first[labelVersions]; !ok && (manifest.HasVersionsPropertyGroup || len(groups[labelVersions]) > 0) {
		element := renderGroup(groupOpenTag(labelVersions), "  ", groups[labelVersions])
		autoGroup, hasAuto := first[labelVersionsAuto]
		switch {
		case hasAuto:
			indent := lineIndent(body, autoGroup.start)
			element = renderGroup(groupOpenTag(labelVersions), indent, groups[labelVersions])
			splices = append(splices, manifestSplice{start: autoGroup.end, end: autoGroup.end, text: "\n" + indent + element})
		case len(layout.imports) > 0:
			splices = append(splices, insertBefore(body, layout.imports[0].start, element))
		default:
			anchor := layout.rootEnd
			if pinned, ok := first[labelVersionsPinned]; ok {
				anchor = pinned.start
			}
			splices = append(splices, insertBefore(body, anchor, element))
		}
	}
	if manifest.OverrideImport != "" && !hasImport(layout.imports, manifest.OverrideImport) {
		anchor := layout.rootEnd
		if pinned, ok := first[labelVersionsPinned]; ok {
			anchor = pinned.start
		}
		splices = append(splices, insertBefore(body, anchor, renderImport(manifest.OverrideImport)))
	}
	if _, ok := first[labelVersionsPinned]; !ok && len(groups[labelVersionsPinned]) > 0 {
		element := renderGroup(groupOpenTag(labelVersionsPinned), "  ", groups[labelVersionsPinned])
		splices = append(splices, insertBefore(body, layout.rootEnd, element))
	}

	sort.SliceStable(splices, func(i, j int) bool {
		return splices[i].start < splices[j].start
	})
	var out bytes.Buffer
	out.Write(data[:base])
	cursor := 0
	for _, splice := range splices {
		out.Write(body[cursor:splice.start])
		out.WriteString(splice.text)
		cursor = splice.end
	}
	out.Write(body[cursor:])
	return out.Bytes(), nil
}

func hasImport(imports []manifestImport, project string) bool {
	for _, existing := range imports {
		if strings.EqualFold(existing.project, strings.TrimSpace(project)) {
			return true
		}
	}
	return false
}

var _ ports.ManifestPort = ManifestFileAdapter{}
