package types

// VersionRange is a parsed NuGet version range such as "1.0.0",
// "[1.0.0, 2.0.0)" or "[1.2.3]". Empty bounds are open.
type VersionRange struct {
	Raw          string
	MinVersion   string
	MaxVersion   string
	MinInclusive bool
	MaxInclusive bool
	Floating     bool
}

func (r VersionRange) HasMin() bool {
	return r.MinVersion != ""
}

func (r VersionRange) HasMax() bool {
	return r.MaxVersion != ""
}
