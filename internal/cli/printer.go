package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"korebuild-tools/internal/app"
	"korebuild-tools/internal/types"
)

// printer writes version-tool results. Colors are dropped automatically when
// the output is not a terminal.
type printer struct {
	out        io.Writer
	repository *color.Color
	pkg        *color.Color
	version    *color.Color
	changed    *color.Color
	skipped    *color.Color
}

func newPrinter(out io.Writer) printer {
	return printer{
		out:        out,
		repository: color.New(color.FgBlue, color.Bold),
		pkg:        color.New(color.Bold),
		version:    color.New(color.FgGreen),
		changed:    color.New(color.FgYellow, color.Bold),
		skipped:    color.New(color.FgMagenta),
	}
}

func (p printer) Packages(listings []app.PackageListing) {
	current := ""
	for _, listing := range listings {
		if listing.Repository != current {
			current = listing.Repository
			fmt.Fprintln(p.out, p.repository.Sprint(current))
		}
		fmt.Fprintf(p.out, "  %s %s\n", p.pkg.Sprint(listing.PackageID), p.version.Sprint(listing.Version))
	}
}

func (p printer) Dependencies(listings []app.DependencyListing) {
	current := ""
	for _, listing := range listings {
		if listing.Manifest != current {
			current = listing.Manifest
			fmt.Fprintf(p.out, "%s %s\n", p.repository.Sprint(listing.Repository), listing.Manifest)
		}
		framework := listing.TargetFramework
		if framework == "" {
			framework = "any"
		}
		fmt.Fprintf(p.out, "  %s %s (%s)\n", p.pkg.Sprint(listing.PackageID), p.version.Sprint(listing.VersionRange), framework)
	}
}

func (p printer) Bumps(modified []string, bumps []types.PackageBump) {
	for _, name := range modified {
		fmt.Fprintf(p.out, "%s has local changes\n", p.repository.Sprint(name))
	}
	for _, bump := range bumps {
		fmt.Fprintf(p.out, "%s %s -> %s (%s)\n", p.pkg.Sprint(bump.PackageID), bump.OldVersion, p.version.Sprint(bump.NewVersion), bump.Repository)
	}
}

func (p printer) Writes(edits []types.ManifestEdit, writes []types.WriteResult) {
	if len(edits) == 0 {
		fmt.Fprintln(p.out, p.skipped.Sprint("no changes"))
		return
	}
	for _, write := range writes {
		if write.UpToDate {
			fmt.Fprintf(p.out, "%s %s\n", p.skipped.Sprint("up to date"), write.Path)
			continue
		}
		fmt.Fprintf(p.out, "%s %s\n", p.changed.Sprint("updated"), write.Path)
	}
}
