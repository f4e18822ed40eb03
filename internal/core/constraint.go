package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/types"
)

// ParseVersionRange parses NuGet range syntax:
//
//	1.0.0          minimum, inclusive
//	[1.0.0]        exact
//	[1.0, 2.0)     interval
//	(, 2.0]        upper bound only
//	1.0.*          floating, minimum 1.0.0
func ParseVersionRange(raw string) (types.VersionRange, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return types.VersionRange{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty version range")
	}
	if strings.Contains(value, "*") {
		return parseFloatingRange(value)
	}
	first := value[0]
	if first != '[' && first != '(' {
		min, err := ParseVersion(value)
		if err != nil {
			return types.VersionRange{}, err
		}
		return types.VersionRange{Raw: value, MinVersion: min.String(), MinInclusive: true}, nil
	}
	last := value[len(value)-1]
	if len(value) < 3 || (last != ']' && last != ')') {
		return types.VersionRange{}, invalidRange(raw)
	}
	body := value[1 : len(value)-1]
	r := types.VersionRange{
		Raw:          value,
		MinInclusive: first == '[',
		MaxInclusive: last == ']',
	}
	if !strings.Contains(body, ",") {
		if first != '[' || last != ']' {
			return types.VersionRange{}, invalidRange(raw)
		}
		exact, err := ParseVersion(body)
		if err != nil {
			return types.VersionRange{}, err
		}
		r.MinVersion = exact.String()
		r.MaxVersion = exact.String()
		return r, nil
	}
	bounds := strings.SplitN(body, ",", 2)
	lower := strings.TrimSpace(bounds[0])
	upper := strings.TrimSpace(bounds[1])
	if lower == "" && upper == "" {
		return types.VersionRange{}, invalidRange(raw)
	}
	if lower != "" {
		parsed, err := ParseVersion(lower)
		if err != nil {
			return types.VersionRange{}, err
		}
		r.MinVersion = parsed.String()
	}
	if upper != "" {
		parsed, err := ParseVersion(upper)
		if err != nil {
			return types.VersionRange{}, err
		}
		r.MaxVersion = parsed.String()
	}
	return r, nil
}

func parseFloatingRange(value string) (types.VersionRange, error) {
	if value == "*" {
		return types.VersionRange{Raw: value, Floating: true, MinVersion: "0.0.0", MinInclusive: true}, nil
	}
	if !strings.HasSuffix(value, "*") || strings.Count(value, "*") != 1 {
		return types.VersionRange{}, invalidRange(value)
	}
	prefix := strings.TrimSuffix(strings.TrimSuffix(value, "*"), ".")
	min, err := ParseVersion(prefix)
	if err != nil {
		return types.VersionRange{}, invalidRange(value)
	}
	return types.VersionRange{Raw: value, Floating: true, MinVersion: min.String(), MinInclusive: true}, nil
}

func invalidRange(raw string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid version range %q", raw))
}

// IsFloatingVersion reports whether a reference version floats (1.0.*, *).
func IsFloatingVersion(value string) bool {
	return strings.Contains(value, "*")
}

// RangeSatisfies reports whether version falls inside r.
func RangeSatisfies(r types.VersionRange, version string) (bool, error) {
	return rangeSatisfies(r, version, newVersionCache())
}

func rangeSatisfies(r types.VersionRange, version string, cache *versionCache) (bool, error) {
	if _, err := cache.version(version); err != nil {
		return false, err
	}
	if r.HasMin() {
		cmp := cache.compare(version, r.MinVersion)
		if cmp < 0 || (cmp == 0 && !r.MinInclusive) {
			return false, nil
		}
	}
	if r.HasMax() {
		cmp := cache.compare(version, r.MaxVersion)
		if cmp > 0 || (cmp == 0 && !r.MaxInclusive) {
			return false, nil
		}
	}
	return true, nil
}
