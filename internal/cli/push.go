package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"korebuild-tools/internal/app"
)

func newPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push <package|directory>...",
		Short: "Push packages to the configured feed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), cmd, args)
		},
	}
}

func runPush(ctx context.Context, cmd *cobra.Command, args []string) error {
	service, _, err := newAppService(cmd)
	if err != nil {
		return err
	}
	if service.Config.PushURL == "" {
		return invalidArgument("--push-source (or KOREBUILD_PUSH_SOURCE) is required", nil)
	}
	result, err := service.Push(ctx, app.PushRequest{Paths: args})
	if err != nil {
		return err
	}
	fmt.Printf("pushed %d package(s)\n", len(result.Pushed))
	return nil
}
