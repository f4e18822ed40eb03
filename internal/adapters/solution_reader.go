package adapters

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
)

var solutionProjectLine = regexp.MustCompile(`^Project\("\{[^}]+\}"\)\s*=\s*"[^"]*"\s*,\s*"([^"]+)"`)

type SolutionReaderAdapter struct{}

func NewSolutionReaderAdapter() SolutionReaderAdapter {
	return SolutionReaderAdapter{}
}

// ReadSolution returns the absolute paths of the MSBuild projects listed in a
// .sln file, in file order. Solution folders are skipped.
func (a SolutionReaderAdapter) ReadSolution(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: solution file not found", path)).
			WithCause(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid solution path").
			WithCause(err)
	}
	dir := filepath.Dir(abs)
	var projects []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		match := solutionProjectLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if match == nil {
			continue
		}
		rel := filepath.FromSlash(strings.ReplaceAll(match[1], `\`, "/"))
		if !strings.HasSuffix(strings.ToLower(rel), "proj") {
			continue
		}
		projects = append(projects, filepath.Join(dir, rel))
	}
	if err := scanner.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: malformed solution file", path)).
			WithCause(err)
	}
	return projects, nil
}

var _ ports.SolutionReaderPort = SolutionReaderAdapter{}
