package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"korebuild-tools/internal/types"
)

type loggedEntry struct {
	Level   string
	Code    types.ErrorCode
	File    string
	Message string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []loggedEntry
}

func (l *recordingLogger) LogMessage(message string) {
	l.add(loggedEntry{Level: "info", Message: message})
}

func (l *recordingLogger) LogWarning(code types.ErrorCode, file string, message string) {
	l.add(loggedEntry{Level: "warn", Code: code, File: file, Message: message})
}

func (l *recordingLogger) LogError(code types.ErrorCode, file string, message string) {
	l.add(loggedEntry{Level: "error", Code: code, File: file, Message: message})
}

func (l *recordingLogger) HasLoggedErrors() bool {
	return len(l.codes("error")) > 0
}

func (l *recordingLogger) add(entry loggedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *recordingLogger) codes(level string) []types.ErrorCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.ErrorCode
	for _, entry := range l.entries {
		if entry.Level == level {
			out = append(out, entry.Code)
		}
	}
	return out
}

func (l *recordingLogger) messages(code types.ErrorCode) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, entry := range l.entries {
		if entry.Code == code {
			out = append(out, entry.Message)
		}
	}
	return out
}

type fakeGit struct {
	changed map[string]bool
}

func (g fakeGit) HasLocalChanges(repoPath string) (bool, error) {
	return g.changed[filepath.Base(repoPath)], nil
}

type fakeFeed struct {
	pushed []string
}

func (f *fakeFeed) Download(ctx context.Context, id string, version string) ([]byte, error) {
	return nil, os.ErrNotExist
}

func (f *fakeFeed) Push(ctx context.Context, packagePath string) error {
	f.pushed = append(f.pushed, filepath.Base(packagePath))
	return nil
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newTestService(t *testing.T, lineupFolder string) (Service, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	svc := NewService(types.EngineConfig{
		Workers:       2,
		Precedence:    types.PrecedenceLastWins,
		LineupFolders: []string{lineupFolder},
	}, logger)
	return svc, logger
}

const lineupSpec = `<package><metadata><id>Contoso.Lineup</id><version>2.1.0</version>
<dependencies>
  <group targetFramework="netcoreapp2.0">
    <dependency id="Serilog" version="2.6.0" />
    <dependency id="Newtonsoft.Json" version="10.0.3" />
  </group>
  <group targetFramework="netstandard2.0">
    <dependency id="Serilog" version="2.5.0" />
  </group>
</dependencies></metadata></package>`

func writeLineup(t *testing.T, dir string) string {
	t.Helper()
	folder := filepath.Join(dir, "lineups")
	writeFile(t, folder, "contoso.lineup/2.1.0/contoso.lineup.nuspec", lineupSpec)
	return folder
}

func projectXML(framework string, refs string) string {
	return `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>` + framework + `</TargetFramework>
  </PropertyGroup>
  <ItemGroup>
` + refs + `
  </ItemGroup>
</Project>
`
}
