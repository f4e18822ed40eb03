package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"korebuild-tools/internal/app"
	"korebuild-tools/internal/types"
)

type generateManifestOptions struct {
	Project         projectFlags
	Manifest        string
	Variables       []string
	RewriteProjects bool
	OverrideImport  string
}

func newGenerateManifestCommand() *cobra.Command {
	opts := generateManifestOptions{}
	cmd := &cobra.Command{
		Use:   "generate-manifest <solution|project>...",
		Short: "Record every literal package version in a version manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateManifest(cmd.Context(), cmd, args, opts)
		},
	}
	opts.Project.register(cmd)
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "build/dependencies.props", "Version manifest path")
	cmd.Flags().StringSliceVar(&opts.Variables, "variable", nil, "Variable name override as PackageId=VariableName")
	cmd.Flags().BoolVar(&opts.RewriteProjects, "rewrite-projects", false, "Replace literal versions in projects with $(Variable)")
	cmd.Flags().StringVar(&opts.OverrideImport, "override-import", "", "Props file imported after the generated variables")

	_ = viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("variables", cmd.Flags().Lookup("variable"))
	_ = viper.BindPFlag("rewrite_projects", cmd.Flags().Lookup("rewrite-projects"))
	_ = viper.BindPFlag("override_import", cmd.Flags().Lookup("override-import"))
	return cmd
}

func runGenerateManifest(ctx context.Context, cmd *cobra.Command, args []string, opts generateManifestOptions) error {
	inputs, err := opts.Project.inputs(cmd, args)
	if err != nil {
		return err
	}
	overrides, err := parseVariableOverrides(resolveStrings(cmd, opts.Variables, "variables", "variable"))
	if err != nil {
		return err
	}
	service, logger, err := newAppService(cmd)
	if err != nil {
		return err
	}
	result, err := service.GenerateManifest(ctx, app.GenerateManifestRequest{
		Inputs:            inputs,
		ManifestPath:      resolveString(cmd, opts.Manifest, "manifest", "manifest"),
		VariableOverrides: overrides,
		RewriteProjects:   resolveBool(cmd, opts.RewriteProjects, "rewrite_projects", "rewrite-projects"),
		OverrideImport:    resolveString(cmd, opts.OverrideImport, "override_import", "override-import"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d variable(s)%s\n", result.Manifest.Path, len(result.Variables), upToDateSuffix(result.Manifest))
	for _, write := range result.Projects {
		fmt.Printf("%s%s\n", write.Path, upToDateSuffix(write))
	}
	return loggedErrors(logger.HasLoggedErrors())
}

type upgradeManifestOptions struct {
	Manifest  string
	Lineups   []string
	Variables []string
}

func newUpgradeManifestCommand() *cobra.Command {
	opts := upgradeManifestOptions{}
	cmd := &cobra.Command{
		Use:   "upgrade-manifest",
		Short: "Move manifest variables to the versions the lineups approve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpgradeManifest(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "build/dependencies.props", "Version manifest path")
	cmd.Flags().StringSliceVar(&opts.Lineups, "lineup", nil, "Lineup as id/version (repeatable, later lineups win)")
	cmd.Flags().StringSliceVar(&opts.Variables, "variable", nil, "Variable name override as PackageId=VariableName")

	_ = viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("lineups", cmd.Flags().Lookup("lineup"))
	_ = viper.BindPFlag("variables", cmd.Flags().Lookup("variable"))
	return cmd
}

func runUpgradeManifest(ctx context.Context, cmd *cobra.Command, opts upgradeManifestOptions) error {
	lineups, err := parseLineups(resolveStrings(cmd, opts.Lineups, "lineups", "lineup"))
	if err != nil {
		return err
	}
	overrides, err := parseVariableOverrides(resolveStrings(cmd, opts.Variables, "variables", "variable"))
	if err != nil {
		return err
	}
	service, logger, err := newAppService(cmd)
	if err != nil {
		return err
	}
	result, err := service.UpgradeManifest(ctx, app.UpgradeManifestRequest{
		ManifestPath:      resolveString(cmd, opts.Manifest, "manifest", "manifest"),
		Lineups:           lineups,
		VariableOverrides: overrides,
	})
	if err != nil {
		return err
	}
	for _, variable := range result.Updated {
		fmt.Printf("%s = %s\n", variable.Name, variable.Value)
	}
	fmt.Printf("%s: %d variable(s) updated%s\n", result.Manifest.Path, len(result.Updated), upToDateSuffix(result.Manifest))
	return loggedErrors(logger.HasLoggedErrors())
}

// parseLineups reads id/version pairs.
func parseLineups(values []string) ([]types.LineupRef, error) {
	out := make([]types.LineupRef, 0, len(values))
	for _, value := range values {
		id, ver, ok := strings.Cut(strings.TrimSpace(value), "/")
		if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(ver) == "" {
			return nil, invalidArgument(fmt.Sprintf("invalid lineup %q, expected id/version", value), nil)
		}
		out = append(out, types.LineupRef{ID: strings.TrimSpace(id), Version: strings.TrimSpace(ver)})
	}
	return out, nil
}

func parseVariableOverrides(values []string) (map[string]string, error) {
	out := map[string]string{}
	for _, value := range values {
		id, name, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" {
			return nil, invalidArgument(fmt.Sprintf("invalid variable override %q, expected PackageId=VariableName", value), nil)
		}
		out[strings.TrimSpace(id)] = strings.TrimSpace(name)
	}
	return out, nil
}

func upToDateSuffix(write types.WriteResult) string {
	if write.UpToDate {
		return " (skipped, already up to date)"
	}
	return ""
}
