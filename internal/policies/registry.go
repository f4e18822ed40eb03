package policies

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

const (
	TypeLineup                  = "lineup"
	TypePinnedVersion           = "pinned-version"
	TypeDisallowedVersion       = "disallowed-version"
	TypeAdditionalRestoreSource = "additional-restore-source"
)

// Factory builds a policy from the descriptor's raw YAML node.
type Factory func(settings *yaml.Node) (Policy, error)

type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry knows every built-in policy type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeLineup, newLineupPolicy)
	r.Register(TypePinnedVersion, newPinnedVersionPolicy)
	r.Register(TypeDisallowedVersion, newDisallowedVersionPolicy)
	r.Register(TypeAdditionalRestoreSource, newAdditionalRestoreSourcePolicy)
	return r
}

func (r *Registry) Register(tag string, factory Factory) {
	r.factories[strings.ToLower(strings.TrimSpace(tag))] = factory
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Resolve builds a policy per descriptor, in order. Every unknown type and
// every invalid descriptor is logged before a single error is returned.
func (r *Registry) Resolve(descriptors []types.PolicyDescriptor, logger ports.BuildLoggerPort) ([]Policy, error) {
	out := make([]Policy, 0, len(descriptors))
	var errs []error
	for i, descriptor := range descriptors {
		tag := strings.ToLower(strings.TrimSpace(descriptor.Type))
		factory, ok := r.factories[tag]
		if !ok {
			msg := fmt.Sprintf("policy #%d: unknown policy type %q (known: %s)", i+1, descriptor.Type, strings.Join(r.Types(), ", "))
			logger.LogError(types.CodeUnknownPolicyType, "", msg)
			errs = append(errs, errors.New(msg))
			continue
		}
		settings := descriptor.Settings
		policy, err := factory(&settings)
		if err != nil {
			msg := fmt.Sprintf("policy #%d (%s): %v", i+1, tag, err)
			logger.LogError(types.CodeMalformedFile, "", msg)
			errs = append(errs, errors.New(msg))
			continue
		}
		out = append(out, policy)
	}
	if len(errs) > 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%d policy descriptor(s) could not be resolved", len(errs))).
			WithCause(errors.Join(errs...))
	}
	return out, nil
}
