package app

import (
	"korebuild-tools/internal/adapters"
	"korebuild-tools/internal/policies"
	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

type Service struct {
	Config       types.EngineConfig
	Logger       ports.BuildLoggerPort
	Projects     ports.ProjectReaderPort
	Solutions    ports.SolutionReaderPort
	PolicyFiles  ports.PolicyFilePort
	PatchConfigs ports.PatchConfigPort
	Patcher      ports.ProjectPatcherPort
	Targets      ports.TargetsExtensionPort
	Manifests    ports.ManifestPort
	Lineups      ports.LineupSourcePort
	NuGetConfigs ports.NuGetConfigPort
	Feed         ports.FeedPort
	Repositories ports.RepositoryScannerPort
	Nuspecs      ports.NuspecEditorPort
	Git          ports.GitStatusPort
	BOMWriter    ports.BOMPort
	Registry     *policies.Registry
}

// NewService wires the filesystem, XML and feed adapters. The engine
// configuration is fixed for the lifetime of the service.
func NewService(config types.EngineConfig, logger ports.BuildLoggerPort) Service {
	feed := adapters.NewFeedClient(config.FeedURL, config.PushURL, config.APIKey, config.NetworkTimeout, config.NetworkRetries)
	configFiles := adapters.NewConfigFileAdapter()
	var lineupFeed ports.FeedPort
	if config.FeedURL != "" {
		lineupFeed = feed
	}
	lineups := adapters.NewLineupSource(config.LineupFolders, config.CacheDir, lineupFeed)
	lineups.FeedFor = func(source string) ports.FeedPort {
		return adapters.NewFeedClient(source, "", "", config.NetworkTimeout, config.NetworkRetries)
	}
	return Service{
		Config:       config,
		Logger:       logger,
		Projects:     adapters.NewProjectReaderAdapter(),
		Solutions:    adapters.NewSolutionReaderAdapter(),
		PolicyFiles:  configFiles,
		PatchConfigs: configFiles,
		Patcher:      adapters.NewProjectFilePatcher(),
		Targets:      adapters.NewTargetsExtensionWriter(),
		Manifests:    adapters.NewManifestFileAdapter(),
		Lineups:      lineups,
		NuGetConfigs: adapters.NewNuGetConfigReader(),
		Feed:         feed,
		Repositories: adapters.NewRepositoryScanner(),
		Nuspecs:      adapters.NewNuspecEditor(),
		Git:          adapters.NewGitStatusAdapter(),
		BOMWriter:    adapters.NewBOMWriterAdapter(config.KoreBuildVersion),
		Registry:     policies.DefaultRegistry(),
	}
}
