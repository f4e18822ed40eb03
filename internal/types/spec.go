package types

import (
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyDescriptor is one entry of the policy file. Settings holds the raw
// node so each factory decodes its own shape.
type PolicyDescriptor struct {
	Type     string
	Settings yaml.Node
}

func (d *PolicyDescriptor) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	d.Type = head.Type
	d.Settings = *node
	return nil
}

type PolicyFile struct {
	Policies []PolicyDescriptor `yaml:"policies"`
}

// EngineConfig carries build-wide settings. It is passed explicitly into the
// service and engine; nothing reads them from the environment later.
type EngineConfig struct {
	KoreBuildVersion string
	Precedence       LineupPrecedence
	Workers          int
	NetworkTimeout   time.Duration
	NetworkRetries   int
	LineupFolders    []string
	FeedURL          string
	PushURL          string
	APIKey           string
	CacheDir         string
}
