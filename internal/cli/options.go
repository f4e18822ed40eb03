package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"korebuild-tools/internal/adapters"
	"korebuild-tools/internal/app"
)

// Flag values win when set explicitly; otherwise the viper key (config file
// or KOREBUILD_* environment) supplies the value.

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	return viper.GetStringSlice(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		if value != 0 {
			return value
		}
		return viper.GetInt(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}

// projectFlags are shared by every command that evaluates projects.
type projectFlags struct {
	Properties string
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Properties, "property", "p", "", "Global properties as key=value;key=value")
	_ = viper.BindPFlag("properties", cmd.Flags().Lookup("property"))
}

func (f *projectFlags) inputs(cmd *cobra.Command, args []string) (app.ProjectInputs, error) {
	raw := resolveString(cmd, f.Properties, "properties", "property")
	properties, err := adapters.ParsePropertyBag(raw)
	if err != nil {
		return app.ProjectInputs{}, invalidArgument("invalid --property value", err)
	}
	return app.ProjectInputs{Paths: args, Properties: properties}, nil
}
