package adapters

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/shared"
	"korebuild-tools/internal/types"
)

// LineupSource resolves lineup packages from local folders, then from a
// download cache, then from each feed in turn. Downloads are cached for later
// runs.
type LineupSource struct {
	Folders  []string
	CacheDir string
	Feeds    []ports.FeedPort
	// FeedFor opens a remote restore source; nil leaves remote sources unused.
	FeedFor func(source string) ports.FeedPort
}

func NewLineupSource(folders []string, cacheDir string, feed ports.FeedPort) LineupSource {
	source := LineupSource{Folders: folders, CacheDir: cacheDir}
	if feed != nil {
		source.Feeds = []ports.FeedPort{feed}
	}
	return source
}

// ForRestore extends the lookup with the restore configuration: the packages
// path and local sources are searched as folders after the configured ones,
// remote sources are tried as feeds after the configured feed.
func (s LineupSource) ForRestore(restore types.RestoreConfig) ports.LineupSourcePort {
	out := s
	out.Folders = append([]string{}, s.Folders...)
	out.Feeds = append([]ports.FeedPort{}, s.Feeds...)
	if path := strings.TrimSpace(restore.PackagesPath); path != "" {
		out.Folders = append(out.Folders, path)
	}
	for _, source := range restore.Sources {
		source = strings.TrimSpace(source)
		switch {
		case source == "":
		case IsRemoteSource(source):
			if s.FeedFor != nil {
				out.Feeds = append(out.Feeds, s.FeedFor(source))
			}
		default:
			out.Folders = append(out.Folders, source)
		}
	}
	return out
}

// IsRemoteSource reports whether a restore source is a feed URL rather than a
// local folder.
func IsRemoteSource(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (s LineupSource) DependencyGroups(ctx context.Context, ref types.LineupRef) ([]types.PackageDependencyGroup, error) {
	if strings.TrimSpace(ref.ID) == "" || strings.TrimSpace(ref.Version) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("lineup id and version are required")
	}
	spec, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(spec.ID, ref.ID) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: manifest declares package %s, expected %s", spec.Path, spec.ID, ref.ID))
	}
	return spec.Groups, nil
}

func (s LineupSource) find(ctx context.Context, ref types.LineupRef) (types.Nuspec, error) {
	id := shared.NormalizePackageID(ref.ID)
	version := strings.ToLower(strings.TrimSpace(ref.Version))
	archiveNames := []string{ref.ID + "." + ref.Version + ".nupkg", id + "." + version + ".nupkg"}

	for _, folder := range s.Folders {
		for _, name := range archiveNames {
			path := filepath.Join(folder, name)
			if fileExists(path) {
				log.Ctx(ctx).Debug().Str("lineup", ref.String()).Str("path", path).Msg("lineup found in folder")
				return readNupkgFile(path, ref.ID)
			}
		}
		for _, dir := range []string{filepath.Join(folder, ref.ID, ref.Version), filepath.Join(folder, id, version)} {
			for _, name := range []string{ref.ID + ".nuspec", id + ".nuspec"} {
				path := filepath.Join(dir, name)
				if fileExists(path) {
					log.Ctx(ctx).Debug().Str("lineup", ref.String()).Str("path", path).Msg("lineup found expanded")
					return ReadNuspecFile(path)
				}
			}
		}
	}

	cached := ""
	if s.CacheDir != "" {
		cached = filepath.Join(s.CacheDir, id+"."+version+".nupkg")
		if fileExists(cached) {
			return readNupkgFile(cached, ref.ID)
		}
	}
	if len(s.Feeds) == 0 {
		return types.Nuspec{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("lineup %s not found in %s", ref, strings.Join(s.Folders, ", ")))
	}
	data, err := s.download(ctx, ref)
	if err != nil {
		return types.Nuspec{}, err
	}
	if cached != "" {
		if err := os.MkdirAll(s.CacheDir, 0755); err == nil {
			if err := os.WriteFile(cached, data, 0644); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("path", cached).Msg("failed to cache lineup package")
			}
		}
	}
	return readNupkg(ref.ID+"."+ref.Version+".nupkg", data, ref.ID)
}

// download tries each feed in order. Cancellation stops the walk; any other
// failure moves on to the next feed and the last failure is returned.
func (s LineupSource) download(ctx context.Context, ref types.LineupRef) ([]byte, error) {
	var lastErr error
	for i, feed := range s.Feeds {
		data, err := feed.Download(ctx, ref.ID, ref.Version)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		log.Ctx(ctx).Debug().Err(err).Str("lineup", ref.String()).Int("feed", i).Msg("lineup not available from feed")
		lastErr = err
	}
	return nil, lastErr
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readNupkgFile(path string, id string) (types.Nuspec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Nuspec{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: package not readable", path)).
			WithCause(err)
	}
	return readNupkg(path, data, id)
}

// readNupkg extracts <id>.nuspec from the root of a package archive.
func readNupkg(name string, data []byte, id string) (types.Nuspec, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.Nuspec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: not a package archive", name)).
			WithCause(err)
	}
	want := id + ".nuspec"
	for _, file := range archive.File {
		if strings.Contains(file.Name, "/") || !strings.EqualFold(file.Name, want) {
			continue
		}
		reader, err := file.Open()
		if err != nil {
			return types.Nuspec{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s: unreadable manifest", name)).
				WithCause(err)
		}
		content, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return types.Nuspec{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s: unreadable manifest", name)).
				WithCause(err)
		}
		return ParseNuspec(name+"!"+file.Name, content)
	}
	return types.Nuspec{}, errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("%s: archive has no %s at its root", name, want))
}

var _ ports.RestoreLineupSourcePort = LineupSource{}
