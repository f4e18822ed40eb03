package adapters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

const targetsExtensionSuffix = ".korebuild.g.targets"

// TargetsExtensionWriter renders policy edits into obj/<project>.korebuild.g.targets,
// the writable document NuGet restore imports next to the project.
type TargetsExtensionWriter struct{}

func NewTargetsExtensionWriter() TargetsExtensionWriter {
	return TargetsExtensionWriter{}
}

func TargetsExtensionPath(projectPath string) string {
	return filepath.Join(filepath.Dir(projectPath), "obj", filepath.Base(projectPath)+targetsExtensionSuffix)
}

func (w TargetsExtensionWriter) Write(projectPath string, edits []types.PackageVersionEdit, restoreSources []string) (types.WriteResult, error) {
	path := TargetsExtensionPath(projectPath)
	content := renderTargetsExtension(edits, restoreSources)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return types.WriteResult{Path: path, UpToDate: true}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create obj directory").
			WithCause(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return types.WriteResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s: failed to write targets extension", path)).
			WithCause(err)
	}
	return types.WriteResult{Path: path, Written: true}, nil
}

func renderTargetsExtension(edits []types.PackageVersionEdit, restoreSources []string) []byte {
	byFramework := map[string][]types.PackageVersionEdit{}
	for _, edit := range edits {
		byFramework[edit.TargetFramework] = append(byFramework[edit.TargetFramework], edit)
	}
	frameworks := make([]string, 0, len(byFramework))
	for fw := range byFramework {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)

	var b strings.Builder
	b.WriteString("<!-- Generated by korebuild-tools. Changes are overwritten. -->\n")
	b.WriteString("<Project>\n")
	if len(restoreSources) > 0 {
		sources := make([]string, len(restoreSources))
		for i, source := range restoreSources {
			sources[i] = escapeXML(source)
		}
		b.WriteString("  <PropertyGroup>\n")
		fmt.Fprintf(&b, "    <RestoreAdditionalProjectSources>$(RestoreAdditionalProjectSources);%s</RestoreAdditionalProjectSources>\n", strings.Join(sources, ";"))
		b.WriteString("  </PropertyGroup>\n")
	}
	for _, fw := range frameworks {
		group := byFramework[fw]
		sort.Slice(group, func(i, j int) bool {
			return strings.ToLower(group[i].PackageID) < strings.ToLower(group[j].PackageID)
		})
		fmt.Fprintf(&b, "  <ItemGroup Condition=\" '$(TargetFramework)' == '%s' \">\n", escapeXML(fw))
		for _, edit := range group {
			implicit := ""
			if edit.IsImplicitlyDefined {
				implicit = ` IsImplicitlyDefined="true"`
			}
			fmt.Fprintf(&b, "    <PackageReference Update=\"%s\" Version=\"%s\"%s />\n", escapeXML(edit.PackageID), escapeXML(edit.Version), implicit)
		}
		b.WriteString("  </ItemGroup>\n")
	}
	b.WriteString("</Project>\n")
	return []byte(b.String())
}

var _ ports.TargetsExtensionPort = TargetsExtensionWriter{}
