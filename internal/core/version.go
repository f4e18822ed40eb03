package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ZanzyTHEbar/errbuilder-go"
)

// NuGetVersion is a SemVer version with the optional fourth "revision"
// component NuGet still accepts (1.0.0.1).
type NuGetVersion struct {
	sem      *semver.Version
	revision int
}

// ParseVersion parses a NuGet version. Two part versions are accepted and
// widened (1.0 -> 1.0.0); a zero revision is dropped on normalization.
func ParseVersion(raw string) (NuGetVersion, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return NuGetVersion{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty version")
	}
	core, suffix := splitVersionSuffix(value)
	revision := 0
	parts := strings.Split(core, ".")
	if len(parts) == 4 {
		n, err := strconv.Atoi(parts[3])
		if err != nil || n < 0 {
			return NuGetVersion{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid version %q", raw))
		}
		revision = n
		core = strings.Join(parts[:3], ".")
	}
	sem, err := semver.NewVersion(core + suffix)
	if err != nil {
		return NuGetVersion{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid version %q", raw)).
			WithCause(err)
	}
	return NuGetVersion{sem: sem, revision: revision}, nil
}

func splitVersionSuffix(value string) (string, string) {
	idx := strings.IndexAny(value, "-+")
	if idx < 0 {
		return value, ""
	}
	return value[:idx], value[idx:]
}

// Compare returns -1, 0 or 1. Build metadata is ignored.
func (v NuGetVersion) Compare(other NuGetVersion) int {
	if v.sem == nil || other.sem == nil {
		switch {
		case v.sem == nil && other.sem == nil:
			return 0
		case v.sem == nil:
			return -1
		default:
			return 1
		}
	}
	left := semver.New(v.sem.Major(), v.sem.Minor(), v.sem.Patch(), "", "")
	right := semver.New(other.sem.Major(), other.sem.Minor(), other.sem.Patch(), "", "")
	if cmp := left.Compare(right); cmp != 0 {
		return cmp
	}
	if v.revision != other.revision {
		if v.revision < other.revision {
			return -1
		}
		return 1
	}
	return comparePrerelease(v.sem.Prerelease(), other.sem.Prerelease())
}

func comparePrerelease(a string, b string) int {
	a1 := semver.New(0, 0, 0, a, "")
	b1 := semver.New(0, 0, 0, b, "")
	return a1.Compare(b1)
}

// String returns the normalized form: major.minor.patch[.revision][-pre].
func (v NuGetVersion) String() string {
	if v.sem == nil {
		return ""
	}
	out := fmt.Sprintf("%d.%d.%d", v.sem.Major(), v.sem.Minor(), v.sem.Patch())
	if v.revision > 0 {
		out += fmt.Sprintf(".%d", v.revision)
	}
	if pre := v.sem.Prerelease(); pre != "" {
		out += "-" + pre
	}
	return out
}

func (v NuGetVersion) IsPrerelease() bool {
	return v.sem != nil && v.sem.Prerelease() != ""
}

// NormalizeVersion returns the normalized text of raw, or raw unchanged when
// it is not a parseable version (MSBuild property references, for example).
func NormalizeVersion(raw string) string {
	parsed, err := ParseVersion(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return parsed.String()
}

// versionCache memoizes parsed versions while a range or policy evaluates
// many candidates.
type versionCache struct {
	parsed map[string]NuGetVersion
}

func newVersionCache() *versionCache {
	return &versionCache{parsed: map[string]NuGetVersion{}}
}

func (c *versionCache) version(value string) (NuGetVersion, error) {
	if parsed, ok := c.parsed[value]; ok {
		return parsed, nil
	}
	parsed, err := ParseVersion(value)
	if err != nil {
		return NuGetVersion{}, err
	}
	c.parsed[value] = parsed
	return parsed, nil
}

// compare returns 0 when either side fails to parse.
func (c *versionCache) compare(a string, b string) int {
	v1, err := c.version(a)
	if err != nil {
		return 0
	}
	v2, err := c.version(b)
	if err != nil {
		return 0
	}
	return v1.Compare(v2)
}
