package ports

import "korebuild-tools/internal/types"

// BuildLoggerPort is the build-engine facing logger. Errors and warnings
// carry a stable KRB code and, when known, the file they refer to.
type BuildLoggerPort interface {
	LogMessage(message string)
	LogWarning(code types.ErrorCode, file string, message string)
	LogError(code types.ErrorCode, file string, message string)
	HasLoggedErrors() bool
}
