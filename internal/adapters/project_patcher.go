package adapters

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

var (
	utf8BOM          = []byte{0xEF, 0xBB, 0xBF}
	versionAttribute = regexp.MustCompile(`(?i)\sVersion\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// ProjectFilePatcher rewrites PackageReference versions in place. Changes are
// planned as byte ranges over the original file so formatting survives.
type ProjectFilePatcher struct{}

func NewProjectFilePatcher() ProjectFilePatcher {
	return ProjectFilePatcher{}
}

// Plan computes the changes needed to give every PackageReference named in
// versions (case-insensitive ids) the mapped version. References already at
// that exact text produce no change.
func (p ProjectFilePatcher) Plan(path string, versions map[string]string) (types.PatchPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PatchPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: project file not found", path)).
			WithCause(err)
	}
	wanted := make(map[string]string, len(versions))
	for id, version := range versions {
		wanted[strings.ToLower(id)] = version
	}
	changes, err := planChanges(data, wanted)
	if err != nil {
		return types.PatchPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: malformed project file", path)).
			WithCause(err)
	}
	return types.PatchPlan{Path: path, Changes: changes}, nil
}

func planChanges(data []byte, wanted map[string]string) ([]types.PlannedChange, error) {
	base := 0
	body := data
	if bytes.HasPrefix(body, utf8BOM) {
		base = len(utf8BOM)
		body = body[base:]
	}
	decoder := xml.NewDecoder(bytes.NewReader(body))
	var changes []types.PlannedChange
	for {
		before := int(decoder.InputOffset())
		token, err := decoder.Token()
		if err == io.EOF {
			return changes, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "PackageReference") {
			continue
		}
		id := referenceID(start)
		target, ok := wanted[strings.ToLower(id)]
		if !ok {
			continue
		}
		tagEnd := int(decoder.InputOffset())
		tag := body[before:tagEnd]
		change, err := planReference(decoder, body, tag, before, id, target)
		if err != nil {
			return nil, err
		}
		if change == nil || change.OldValue == change.NewValue {
			continue
		}
		change.Offset += base
		change.End += base
		changes = append(changes, *change)
	}
}

func referenceID(start xml.StartElement) string {
	for _, attr := range start.Attr {
		if strings.EqualFold(attr.Name.Local, "Include") || strings.EqualFold(attr.Name.Local, "Update") {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}

// planReference inspects one PackageReference: the Version attribute wins,
// then a <Version> child, otherwise a Version attribute is added to the tag.
func planReference(decoder *xml.Decoder, body []byte, tag []byte, tagStart int, id string, target string) (*types.PlannedChange, error) {
	if loc := versionAttribute.FindSubmatchIndex(tag); loc != nil {
		valueStart, valueEnd := loc[2], loc[3]
		if valueStart < 0 {
			valueStart, valueEnd = loc[4], loc[5]
		}
		if err := decoder.Skip(); err != nil {
			return nil, err
		}
		return &types.PlannedChange{
			PackageID: id,
			Kind:      types.ChangeUpdateAttribute,
			OldValue:  string(tag[valueStart:valueEnd]),
			NewValue:  target,
			Offset:    tagStart + valueStart,
			End:       tagStart + valueEnd,
		}, nil
	}

	selfClosing := bytes.HasSuffix(bytes.TrimSpace(tag), []byte("/>"))
	depth := 0
	for done := false; !done; {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 && strings.EqualFold(t.Name.Local, "Version") {
				return versionElement(decoder, body, id, target)
			}
		case xml.EndElement:
			if depth == 0 {
				done = true
				continue
			}
			depth--
		}
	}

	insertAt := bytes.LastIndexByte(tag, '>')
	if selfClosing {
		insertAt = bytes.LastIndex(tag, []byte("/>"))
	}
	for insertAt > 0 && isSpace(tag[insertAt-1]) {
		insertAt--
	}
	return &types.PlannedChange{
		PackageID: id,
		Kind:      types.ChangeAddAttribute,
		NewValue:  target,
		Offset:    tagStart + insertAt,
		End:       tagStart + insertAt,
	}, nil
}

// versionElement reads the text of a <Version> child whose start tag was just
// consumed, then skips to the end of the enclosing PackageReference.
func versionElement(decoder *xml.Decoder, body []byte, id string, target string) (*types.PlannedChange, error) {
	textStart := int(decoder.InputOffset())
	textEnd := textStart
	for {
		before := int(decoder.InputOffset())
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		if _, ok := token.(xml.CharData); ok {
			continue
		}
		if _, ok := token.(xml.EndElement); ok {
			textEnd = before
			break
		}
		return nil, fmt.Errorf("package %s: unexpected markup inside <Version>", id)
	}
	if err := decoder.Skip(); err != nil {
		return nil, err
	}
	return &types.PlannedChange{
		PackageID: id,
		Kind:      types.ChangeUpdateElement,
		OldValue:  string(body[textStart:textEnd]),
		NewValue:  target,
		Offset:    textStart,
		End:       textEnd,
	}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Apply splices the planned changes into the file. An empty plan is reported
// as up to date without touching the file.
func (p ProjectFilePatcher) Apply(plan types.PatchPlan) (types.WriteResult, error) {
	if plan.UpToDate() {
		return types.WriteResult{Path: plan.Path, UpToDate: true}, nil
	}
	data, err := os.ReadFile(plan.Path)
	if err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: project file not found", plan.Path)).
			WithCause(err)
	}
	changes := append([]types.PlannedChange{}, plan.Changes...)
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Offset > changes[j].Offset
	})
	out := append([]byte{}, data...)
	for _, change := range changes {
		if change.Offset < 0 || change.End > len(out) || change.Offset > change.End {
			return types.WriteResult{}, stalePlanError(plan.Path, change)
		}
		replacement := escapeXML(change.NewValue)
		if change.Kind == types.ChangeAddAttribute {
			replacement = fmt.Sprintf(` Version="%s"`, replacement)
		} else if string(out[change.Offset:change.End]) != change.OldValue {
			return types.WriteResult{}, stalePlanError(plan.Path, change)
		}
		out = append(out[:change.Offset], append([]byte(replacement), out[change.End:]...)...)
	}
	if bytes.Equal(out, data) {
		return types.WriteResult{Path: plan.Path, UpToDate: true}, nil
	}
	info, err := os.Stat(plan.Path)
	if err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s: failed to stat project file", plan.Path)).
			WithCause(err)
	}
	if err := os.WriteFile(plan.Path, out, info.Mode().Perm()); err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s: failed to write project file", plan.Path)).
			WithCause(err)
	}
	return types.WriteResult{Path: plan.Path, Written: true}, nil
}

func stalePlanError(path string, change types.PlannedChange) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("%s: file changed after planning the %s change of %s", path, change.Kind, change.PackageID))
}

func escapeXML(value string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(value))
	return buf.String()
}

var _ ports.ProjectPatcherPort = ProjectFilePatcher{}
