package policies

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"korebuild-tools/internal/types"
)

type recordedLog struct {
	Level   string
	Code    types.ErrorCode
	File    string
	Message string
}

type fakeLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *fakeLogger) LogMessage(message string) {
	l.add(recordedLog{Level: "info", Message: message})
}

func (l *fakeLogger) LogWarning(code types.ErrorCode, file string, message string) {
	l.add(recordedLog{Level: "warn", Code: code, File: file, Message: message})
}

func (l *fakeLogger) LogError(code types.ErrorCode, file string, message string) {
	l.add(recordedLog{Level: "error", Code: code, File: file, Message: message})
}

func (l *fakeLogger) HasLoggedErrors() bool {
	return len(l.codes("error")) > 0
}

func (l *fakeLogger) add(entry recordedLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *fakeLogger) codes(level string) []types.ErrorCode {
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

type fakeLineups map[string][]types.PackageDependencyGroup

func (f fakeLineups) DependencyGroups(_ context.Context, ref types.LineupRef) ([]types.PackageDependencyGroup, error) {
	groups, ok := f[ref.String()]
	if !ok {
		return nil, fmt.Errorf("lineup %s not found", ref)
	}
	return groups, nil
}

func descriptors(t *testing.T, doc string) []types.PolicyDescriptor {
	t.Helper()
	var file types.PolicyFile
	require.NoError(t, yaml.Unmarshal([]byte(doc), &file))
	return file.Policies
}

func testProject(path string, framework string, refs ...types.PackageReferenceInfo) types.ProjectInfo {
	deps := map[string]types.PackageReferenceInfo{}
	for _, ref := range refs {
		deps[ref.ID] = ref
	}
	return types.ProjectInfo{
		FullPath:   path,
		Frameworks: []types.ProjectFrameworkInfo{{TargetFramework: framework, Dependencies: deps}},
	}
}

func newTestContext(logger *fakeLogger, lineups fakeLineups, projects ...types.ProjectInfo) *Context {
	return NewContext("/src", projects, types.RestoreConfig{}, types.EngineConfig{Precedence: types.PrecedenceLastWins}, logger, lineups)
}
