package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

const (
	IdentifierCoreApp   = ".NETCoreApp"
	IdentifierStandard  = ".NETStandard"
	IdentifierFramework = ".NETFramework"
	IdentifierAny       = "Any"
)

// FrameworkVersion is a four part framework version (4.6.1 -> 4.6.1.0).
type FrameworkVersion struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

func (v FrameworkVersion) Compare(other FrameworkVersion) int {
	left := [4]int{v.Major, v.Minor, v.Build, v.Revision}
	right := [4]int{other.Major, other.Minor, other.Build, other.Revision}
	for i := range left {
		if left[i] < right[i] {
			return -1
		}
		if left[i] > right[i] {
			return 1
		}
	}
	return 0
}

func (v FrameworkVersion) String() string {
	if v.Revision > 0 {
		return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
	}
	if v.Build > 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Framework is a parsed target framework moniker.
type Framework struct {
	Identifier string
	Version    FrameworkVersion
	Platform   string
}

// AnyFramework is the framework-agnostic fallback group.
var AnyFramework = Framework{Identifier: IdentifierAny}

func (f Framework) IsAny() bool {
	return f.Identifier == IdentifierAny
}

func (f Framework) Equals(other Framework) bool {
	return strings.EqualFold(f.Identifier, other.Identifier) &&
		f.Version.Compare(other.Version) == 0 &&
		strings.EqualFold(f.Platform, other.Platform)
}

// String returns the short folder name (netcoreapp1.1, net461, net5.0, any).
func (f Framework) String() string {
	var short string
	switch f.Identifier {
	case IdentifierAny:
		return "any"
	case IdentifierCoreApp:
		if f.Version.Major >= 5 {
			short = "net" + f.Version.String()
		} else {
			short = "netcoreapp" + f.Version.String()
		}
	case IdentifierStandard:
		short = "netstandard" + f.Version.String()
	case IdentifierFramework:
		short = "net" + compactVersion(f.Version)
	default:
		short = strings.ToLower(f.Identifier) + f.Version.String()
	}
	if f.Platform != "" {
		short += "-" + strings.ToLower(f.Platform)
	}
	return short
}

var (
	shortNamePattern   = regexp.MustCompile(`^([a-z]+?)([0-9][0-9.]*)?$`)
	fullVersionPattern = regexp.MustCompile(`(?i)version=v?([0-9][0-9.]*)`)
	trailingVersion    = regexp.MustCompile(`^(.*?)([0-9][0-9.]*)$`)
)

var fullNames = map[string]string{
	".netcoreapp":   IdentifierCoreApp,
	".netstandard":  IdentifierStandard,
	".netframework": IdentifierFramework,
}

// ParseFramework parses short monikers (netcoreapp1.1, net461, net5.0),
// full names (.NETCoreApp,Version=v1.1), custom identifiers (aspnetcore2.1)
// and the agnostic forms ("", any, agnostic).
func ParseFramework(raw string) (Framework, error) {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "", "any", "agnostic", "dotnet":
		return AnyFramework, nil
	}
	if strings.HasPrefix(value, ".") || strings.Contains(value, ",") {
		return parseFullFramework(value)
	}
	lower := strings.ToLower(value)
	platform := ""
	if idx := strings.Index(lower, "-"); idx > 0 {
		platform = lower[idx+1:]
		lower = lower[:idx]
	}
	fw, err := parseShortFramework(lower)
	if err != nil {
		return Framework{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid target framework %q", raw)).
			WithCause(err)
	}
	fw.Platform = platform
	return fw, nil
}

// MustParseFramework panics on invalid input; intended for tests and tables.
func MustParseFramework(raw string) Framework {
	fw, err := ParseFramework(raw)
	if err != nil {
		panic(err)
	}
	return fw
}

func parseShortFramework(value string) (Framework, error) {
	switch {
	case strings.HasPrefix(value, "netstandard"):
		version, err := parseDottedVersion(strings.TrimPrefix(value, "netstandard"))
		return Framework{Identifier: IdentifierStandard, Version: version}, err
	case strings.HasPrefix(value, "netcoreapp"):
		version, err := parseDottedVersion(strings.TrimPrefix(value, "netcoreapp"))
		return Framework{Identifier: IdentifierCoreApp, Version: version}, err
	case strings.HasPrefix(value, "net") && isVersionText(strings.TrimPrefix(value, "net")):
		rest := strings.TrimPrefix(value, "net")
		if !strings.Contains(rest, ".") {
			version, err := parseCompactVersion(rest)
			if err != nil {
				return Framework{}, err
			}
			if version.Major >= 5 {
				return Framework{Identifier: IdentifierCoreApp, Version: version}, nil
			}
			return Framework{Identifier: IdentifierFramework, Version: version}, nil
		}
		version, err := parseDottedVersion(rest)
		if err != nil {
			return Framework{}, err
		}
		if version.Major >= 5 {
			return Framework{Identifier: IdentifierCoreApp, Version: version}, nil
		}
		return Framework{Identifier: IdentifierFramework, Version: version}, nil
	}
	match := shortNamePattern.FindStringSubmatch(value)
	if match == nil {
		return Framework{}, fmt.Errorf("unknown framework identifier: %s", value)
	}
	version := FrameworkVersion{}
	if match[2] != "" {
		parsed, err := parseDottedVersion(match[2])
		if err != nil {
			return Framework{}, err
		}
		version = parsed
	}
	return Framework{Identifier: match[1], Version: version}, nil
}

func parseFullFramework(value string) (Framework, error) {
	parts := strings.Split(value, ",")
	name := strings.TrimSpace(parts[0])
	versionText := ""
	if match := fullVersionPattern.FindStringSubmatch(value); match != nil {
		versionText = match[1]
	} else if match := trailingVersion.FindStringSubmatch(name); match != nil {
		name = match[1]
		versionText = match[2]
	}
	identifier, ok := fullNames[strings.ToLower(name)]
	if !ok {
		identifier = strings.ToLower(strings.TrimPrefix(name, "."))
	}
	version := FrameworkVersion{}
	if versionText != "" {
		parsed, err := parseDottedVersion(versionText)
		if err != nil {
			return Framework{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid target framework %q", value)).
				WithCause(err)
		}
		version = parsed
	}
	return Framework{Identifier: identifier, Version: version}, nil
}

func isVersionText(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

func parseDottedVersion(value string) (FrameworkVersion, error) {
	if value == "" {
		return FrameworkVersion{}, fmt.Errorf("missing framework version")
	}
	parts := strings.Split(value, ".")
	if len(parts) > 4 {
		return FrameworkVersion{}, fmt.Errorf("too many version components: %s", value)
	}
	var numbers [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return FrameworkVersion{}, fmt.Errorf("invalid version component %q", part)
		}
		numbers[i] = n
	}
	return FrameworkVersion{Major: numbers[0], Minor: numbers[1], Build: numbers[2], Revision: numbers[3]}, nil
}

// parseCompactVersion reads the .NET Framework digit form: 45 -> 4.5, 461 -> 4.6.1.
func parseCompactVersion(value string) (FrameworkVersion, error) {
	if len(value) < 1 || len(value) > 4 {
		return FrameworkVersion{}, fmt.Errorf("invalid compact version: %s", value)
	}
	var numbers [4]int
	for i, r := range value {
		numbers[i] = int(r - '0')
	}
	return FrameworkVersion{Major: numbers[0], Minor: numbers[1], Build: numbers[2], Revision: numbers[3]}, nil
}

func compactVersion(v FrameworkVersion) string {
	digits := fmt.Sprintf("%d%d", v.Major, v.Minor)
	if v.Build > 0 || v.Revision > 0 {
		digits += strconv.Itoa(v.Build)
	}
	if v.Revision > 0 {
		digits += strconv.Itoa(v.Revision)
	}
	return digits
}

type minorKey struct {
	major int
	minor int
}

var netStandardToCoreApp = map[minorKey]FrameworkVersion{
	{1, 0}: {Major: 1},
	{1, 1}: {Major: 1},
	{1, 2}: {Major: 1},
	{1, 3}: {Major: 1},
	{1, 4}: {Major: 1},
	{1, 5}: {Major: 1},
	{1, 6}: {Major: 1},
	{2, 0}: {Major: 2},
	{2, 1}: {Major: 3},
}

var netStandardToFramework = map[minorKey]FrameworkVersion{
	{1, 0}: {Major: 4, Minor: 5},
	{1, 1}: {Major: 4, Minor: 5},
	{1, 2}: {Major: 4, Minor: 5, Build: 1},
	{1, 3}: {Major: 4, Minor: 6},
	{1, 4}: {Major: 4, Minor: 6, Build: 1},
	{1, 5}: {Major: 4, Minor: 6, Build: 1},
	{1, 6}: {Major: 4, Minor: 6, Build: 1},
	{2, 0}: {Major: 4, Minor: 6, Build: 1},
}

// IsCompatible reports whether assets built for candidate can be consumed by
// a project targeting project.
func IsCompatible(project Framework, candidate Framework) bool {
	if candidate.IsAny() {
		return true
	}
	if project.IsAny() {
		return false
	}
	if candidate.Platform != "" && !strings.EqualFold(candidate.Platform, project.Platform) {
		return false
	}
	if strings.EqualFold(project.Identifier, candidate.Identifier) {
		return candidate.Version.Compare(project.Version) <= 0
	}
	if candidate.Identifier != IdentifierStandard {
		return false
	}
	key := minorKey{candidate.Version.Major, candidate.Version.Minor}
	switch project.Identifier {
	case IdentifierCoreApp:
		minimum, ok := netStandardToCoreApp[key]
		return ok && project.Version.Compare(minimum) >= 0
	case IdentifierFramework:
		minimum, ok := netStandardToFramework[key]
		return ok && project.Version.Compare(minimum) >= 0
	default:
		return false
	}
}

// GetNearest returns the index of the most specific candidate compatible with
// project: same framework family first, then .NET Standard, then the
// agnostic fallback; within a tier the highest version wins and a matching
// platform beats none.
func GetNearest(project Framework, candidates []Framework) (int, bool) {
	best := -1
	for i, candidate := range candidates {
		if !IsCompatible(project, candidate) {
			continue
		}
		if best < 0 || nearer(project, candidate, candidates[best]) {
			best = i
		}
	}
	return best, best >= 0
}

func nearer(project Framework, candidate Framework, current Framework) bool {
	candidateTier := frameworkTier(project, candidate)
	currentTier := frameworkTier(project, current)
	if candidateTier != currentTier {
		return candidateTier < currentTier
	}
	if cmp := candidate.Version.Compare(current.Version); cmp != 0 {
		return cmp > 0
	}
	return candidate.Platform != "" && current.Platform == ""
}

func frameworkTier(project Framework, candidate Framework) int {
	switch {
	case candidate.IsAny():
		return 2
	case strings.EqualFold(project.Identifier, candidate.Identifier):
		return 0
	default:
		return 1
	}
}
