// Package shared provides common utility functions used across multiple
// packages in the korebuild-tools codebase.
package shared

import (
	"fmt"
	"strings"
)

// NormalizePackageID lowercases and trims a package id. Package ids compare
// case-insensitively and feeds address them in lower case.
func NormalizePackageID(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, url)
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, strings.TrimSpace(body))
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}
