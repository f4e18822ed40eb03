package adapters

import (
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// ConfigFileAdapter loads the YAML policy file and patch configuration.
type ConfigFileAdapter struct{}

func NewConfigFileAdapter() ConfigFileAdapter {
	return ConfigFileAdapter{}
}

func (a ConfigFileAdapter) LoadPolicies(path string) (types.PolicyFile, error) {
	var file types.PolicyFile
	if err := loadYAML(path, "policy file", &file); err != nil {
		return types.PolicyFile{}, err
	}
	for i, descriptor := range file.Policies {
		if descriptor.Type == "" {
			return types.PolicyFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s: policy %d has no type", path, i+1))
		}
	}
	return file, nil
}

func (a ConfigFileAdapter) LoadPatchConfig(path string) (types.PatchConfig, error) {
	var config types.PatchConfig
	if err := loadYAML(path, "patch config", &config); err != nil {
		return types.PatchConfig{}, err
	}
	if len(config.Rules) == 0 && len(config.Packages) == 0 {
		return types.PatchConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: patch config declares no rules", path))
	}
	return config, nil
}

func loadYAML(path string, kind string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s not found: %s", kind, path)).
			WithCause(err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse %s yaml", kind)).
			WithCause(err)
	}
	return nil
}

var (
	_ ports.PolicyFilePort  = ConfigFileAdapter{}
	_ ports.PatchConfigPort = ConfigFileAdapter{}
)
