package adapters

import (
	"sync"

	"github.com/rs/zerolog"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// BuildLoggerAdapter forwards build diagnostics to zerolog and remembers
// whether any error was logged.
type BuildLoggerAdapter struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	errors   int
	warnings int
}

func NewBuildLoggerAdapter(logger zerolog.Logger) *BuildLoggerAdapter {
	return &BuildLoggerAdapter{logger: logger}
}

func (a *BuildLoggerAdapter) LogMessage(message string) {
	a.logger.Info().Msg(message)
}

func (a *BuildLoggerAdapter) LogWarning(code types.ErrorCode, file string, message string) {
	a.mu.Lock()
	a.warnings++
	a.mu.Unlock()
	event := a.logger.Warn().Str("code", string(code))
	if file != "" {
		event = event.Str("file", file)
	}
	event.Msg(message)
}

func (a *BuildLoggerAdapter) LogError(code types.ErrorCode, file string, message string) {
	a.mu.Lock()
	a.errors++
	a.mu.Unlock()
	event := a.logger.Error().Str("code", string(code))
	if file != "" {
		event = event.Str("file", file)
	}
	event.Msg(message)
}

func (a *BuildLoggerAdapter) HasLoggedErrors() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errors > 0
}

// Counts returns the number of errors and warnings logged so far.
func (a *BuildLoggerAdapter) Counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errors, a.warnings
}

var _ ports.BuildLoggerPort = (*BuildLoggerAdapter)(nil)
