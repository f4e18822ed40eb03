package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/core"
	"korebuild-tools/internal/types"
)

// CheckConflicts reports packages referenced with different literal versions
// (KRB3001, fatal) and floating versions (KRB3003, warning).
func (s Service) CheckConflicts(ctx context.Context, req CheckConflictsRequest) (CheckConflictsResult, error) {
	projects, err := s.LoadProjects(ctx, req.Inputs)
	if err != nil {
		return CheckConflictsResult{}, err
	}
	report, err := s.reportConflicts(projects)
	return CheckConflictsResult{Report: report}, err
}

func (s Service) reportConflicts(projects []types.ProjectInfo) (core.ConflictReport, error) {
	report := core.DetectConflicts(projects)
	for _, floating := range report.Floating {
		s.Logger.LogWarning(types.CodeFloatingVersion, floating.ProjectPath,
			fmt.Sprintf("package %s uses floating version %s", floating.PackageID, floating.Version))
	}
	for _, conflict := range report.Conflicts {
		s.Logger.LogError(types.CodeVersionConflict, "", core.FormatConflict(conflict))
	}
	if report.HasConflicts() {
		return report, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%d package(s) are referenced with conflicting versions", len(report.Conflicts)))
	}
	return report, nil
}

// fileErrorCode maps a load failure to the missing or malformed file code.
func fileErrorCode(err error) types.ErrorCode {
	if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
		return types.CodeMissingFile
	}
	return types.CodeMalformedFile
}
