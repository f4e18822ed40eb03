package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"korebuild-tools/internal/app"
	"korebuild-tools/internal/types"
)

type applyPoliciesOptions struct {
	Project           projectFlags
	PolicyFile        string
	SolutionDirectory string
	RestoreSources    []string
	PackagesPath      string
	NuGetConfig       string
	BOM               string
}

func newApplyPoliciesCommand() *cobra.Command {
	opts := applyPoliciesOptions{}
	cmd := &cobra.Command{
		Use:   "apply-policies <solution|project>...",
		Short: "Run the policy pipeline and write targets extensions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplyPolicies(cmd.Context(), cmd, args, opts)
		},
	}
	opts.Project.register(cmd)
	cmd.Flags().StringVar(&opts.PolicyFile, "policies", "korebuild-policies.yaml", "Policy file")
	cmd.Flags().StringVar(&opts.SolutionDirectory, "solution-dir", "", "Solution directory (defaults to the first project's directory)")
	cmd.Flags().StringSliceVar(&opts.RestoreSources, "restore-source", nil, "Restore sources")
	cmd.Flags().StringVar(&opts.PackagesPath, "packages-path", "", "Restore packages path")
	cmd.Flags().StringVar(&opts.NuGetConfig, "nuget-config", "", "NuGet.config used by restore")
	cmd.Flags().StringVar(&opts.BOM, "bom", "", "Write a bill of materials to this path")

	_ = viper.BindPFlag("policies", cmd.Flags().Lookup("policies"))
	_ = viper.BindPFlag("solution_dir", cmd.Flags().Lookup("solution-dir"))
	_ = viper.BindPFlag("restore_sources", cmd.Flags().Lookup("restore-source"))
	_ = viper.BindPFlag("packages_path", cmd.Flags().Lookup("packages-path"))
	_ = viper.BindPFlag("nuget_config", cmd.Flags().Lookup("nuget-config"))
	_ = viper.BindPFlag("bom", cmd.Flags().Lookup("bom"))
	return cmd
}

func runApplyPolicies(ctx context.Context, cmd *cobra.Command, args []string, opts applyPoliciesOptions) error {
	inputs, err := opts.Project.inputs(cmd, args)
	if err != nil {
		return err
	}
	service, logger, err := newAppService(cmd)
	if err != nil {
		return err
	}
	result, err := service.ApplyPolicies(ctx, app.ApplyPoliciesRequest{
		Inputs:            inputs,
		PolicyFile:        resolveString(cmd, opts.PolicyFile, "policies", "policies"),
		SolutionDirectory: resolveString(cmd, opts.SolutionDirectory, "solution_dir", "solution-dir"),
		Restore: types.RestoreConfig{
			Sources:      resolveStrings(cmd, opts.RestoreSources, "restore_sources", "restore-source"),
			PackagesPath: resolveString(cmd, opts.PackagesPath, "packages_path", "packages-path"),
			ConfigFile:   resolveString(cmd, opts.NuGetConfig, "nuget_config", "nuget-config"),
		},
		BOMPath: resolveString(cmd, opts.BOM, "bom", "bom"),
	})
	if err != nil {
		return err
	}
	written := 0
	for _, write := range result.Writes {
		if write.Written {
			written++
		}
	}
	fmt.Printf("applied %d policies: %d edit(s), %d of %d targets file(s) written\n",
		len(result.Policies), len(result.Edits), written, len(result.Writes))
	return loggedErrors(logger.HasLoggedErrors())
}
