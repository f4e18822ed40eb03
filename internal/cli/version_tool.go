package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"korebuild-tools/internal/app"
)

// ExecuteVersionTool runs the repository graph tool.
func ExecuteVersionTool() {
	run(newVersionToolCommand())
}

type repositoryFlags struct {
	Root     string
	Paths    []string
	Matching []string
}

func (f *repositoryFlags) filter(cmd *cobra.Command) app.RepositoryFilter {
	return app.RepositoryFilter{
		Root:     resolveString(cmd, f.Root, "root", "root"),
		Paths:    resolveStrings(cmd, f.Paths, "paths", "path"),
		Matching: resolveStrings(cmd, f.Matching, "matching", "matching"),
	}
}

func newVersionToolCommand() *cobra.Command {
	flags := &repositoryFlags{}
	cmd := &cobra.Command{
		Use:           "version-tool",
		Short:         "List and propagate package versions across repositories",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(cmd)
	persistent := cmd.PersistentFlags()
	persistent.StringVar(&flags.Root, "root", ".", "Directory holding the repositories")
	persistent.StringSliceVar(&flags.Paths, "path", nil, "Only these repositories (name or path, repeatable)")
	persistent.StringSliceVar(&flags.Matching, "matching", nil, "Only package ids matching these expressions (repeatable)")
	_ = viper.BindPFlag("root", persistent.Lookup("root"))
	_ = viper.BindPFlag("paths", persistent.Lookup("path"))
	_ = viper.BindPFlag("matching", persistent.Lookup("matching"))

	cmd.AddCommand(newListCommand(flags))
	cmd.AddCommand(newListDependencyCommand(flags))
	cmd.AddCommand(newUpdateVersionCommand(flags))
	cmd.AddCommand(newUpdateDependencyCommand(flags))
	cmd.AddCommand(newUpdatePatchCommand(flags))
	return cmd
}

func newListCommand(flags *repositoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List produced packages in patch order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _, err := newAppService(cmd)
			if err != nil {
				return err
			}
			listings, err := service.ListPackages(cmd.Context(), flags.filter(cmd))
			if err != nil {
				return err
			}
			newPrinter(os.Stdout).Packages(listings)
			return nil
		},
	}
}

func newListDependencyCommand(flags *repositoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-dependency",
		Short: "List dependency declarations of matching packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _, err := newAppService(cmd)
			if err != nil {
				return err
			}
			listings, err := service.ListDependencies(cmd.Context(), flags.filter(cmd))
			if err != nil {
				return err
			}
			newPrinter(os.Stdout).Dependencies(listings)
			return nil
		},
	}
}

func newUpdateVersionCommand(flags *repositoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update-version <version>",
		Short: "Set the version of matching packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, func(service app.Service) (app.UpdateResult, error) {
				return service.UpdateVersion(cmd.Context(), flags.filter(cmd), args[0])
			})
		},
	}
}

func newUpdateDependencyCommand(flags *repositoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update-dependency <version>",
		Short: "Set the dependency version of matching packages in every manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, func(service app.Service) (app.UpdateResult, error) {
				return service.UpdateDependency(cmd.Context(), flags.filter(cmd), args[0])
			})
		},
	}
}

func runUpdate(cmd *cobra.Command, update func(app.Service) (app.UpdateResult, error)) error {
	service, _, err := newAppService(cmd)
	if err != nil {
		return err
	}
	result, err := update(service)
	if err != nil {
		return err
	}
	newPrinter(os.Stdout).Writes(result.Edits, result.Writes)
	return nil
}

func newUpdatePatchCommand(flags *repositoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update-patch <patch-config>",
		Short: "Bump locally modified repositories and cascade to their dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, _, err := newAppService(cmd)
			if err != nil {
				return err
			}
			result, err := service.UpdatePatch(cmd.Context(), flags.filter(cmd), args[0])
			if err != nil {
				return err
			}
			out := newPrinter(os.Stdout)
			out.Bumps(result.Modified, result.Bumps)
			out.Writes(result.Edits, result.Writes)
			return nil
		},
	}
}
