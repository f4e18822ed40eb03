package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"korebuild-tools/internal/app"
)

func newCheckConflictsCommand() *cobra.Command {
	project := projectFlags{}
	cmd := &cobra.Command{
		Use:   "check-conflicts <solution|project>...",
		Short: "Fail when a package is referenced with different versions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckConflicts(cmd.Context(), cmd, args, project)
		},
	}
	project.register(cmd)
	return cmd
}

func runCheckConflicts(ctx context.Context, cmd *cobra.Command, args []string, project projectFlags) error {
	inputs, err := project.inputs(cmd, args)
	if err != nil {
		return err
	}
	service, _, err := newAppService(cmd)
	if err != nil {
		return err
	}
	result, err := service.CheckConflicts(ctx, app.CheckConflictsRequest{Inputs: inputs})
	if err != nil {
		return err
	}
	fmt.Printf("no version conflicts (%d floating reference(s))\n", len(result.Report.Floating))
	return nil
}
