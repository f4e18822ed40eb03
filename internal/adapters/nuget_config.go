package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// NuGetConfigReader reads the restore settings of a NuGet.config: enabled
// package sources in declaration order and the globalPackagesFolder.
type NuGetConfigReader struct{}

func NewNuGetConfigReader() NuGetConfigReader {
	return NuGetConfigReader{}
}

func (r NuGetConfigReader) ReadNuGetConfig(path string) (types.RestoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RestoreConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: NuGet.config not found", path)).
			WithCause(err)
	}
	root, err := parseXMLTree(data)
	if err != nil || !root.Is("configuration") {
		if err == nil {
			err = fmt.Errorf("root element is <%s>, expected <configuration>", root.Name)
		}
		return types.RestoreConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: malformed NuGet.config", path)).
			WithCause(err)
	}

	dir := filepath.Dir(path)
	disabled := map[string]bool{}
	if section, ok := root.Child("disabledPackageSources"); ok {
		for _, entry := range section.Children {
			key, _ := entry.Attr("key")
			value, _ := entry.Attr("value")
			if entry.Is("add") && isTrue(value) {
				disabled[strings.ToLower(strings.TrimSpace(key))] = true
			}
		}
	}

	config := types.RestoreConfig{ConfigFile: path}
	type source struct{ key, value string }
	var sources []source
	if section, ok := root.Child("packageSources"); ok {
		for _, entry := range section.Children {
			switch {
			case entry.Is("clear"):
				sources = nil
			case entry.Is("add"):
				key, _ := entry.Attr("key")
				value, _ := entry.Attr("value")
				if strings.TrimSpace(value) != "" {
					sources = append(sources, source{key: strings.TrimSpace(key), value: strings.TrimSpace(value)})
				}
			}
		}
	}
	for _, s := range sources {
		if disabled[strings.ToLower(s.key)] {
			continue
		}
		config.Sources = append(config.Sources, resolveConfigPath(dir, s.value))
	}
	if section, ok := root.Child("config"); ok {
		for _, entry := range section.Children {
			key, _ := entry.Attr("key")
			if entry.Is("add") && strings.EqualFold(strings.TrimSpace(key), "globalPackagesFolder") {
				value, _ := entry.Attr("value")
				config.PackagesPath = resolveConfigPath(dir, strings.TrimSpace(value))
			}
		}
	}
	return config, nil
}

// resolveConfigPath anchors relative local paths at dir; feed URLs are kept.
func resolveConfigPath(dir string, value string) string {
	if value == "" || IsRemoteSource(value) || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(dir, value)
}

var _ ports.NuGetConfigPort = NuGetConfigReader{}
