package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"korebuild-tools/internal/adapters"
	"korebuild-tools/internal/app"
	"korebuild-tools/internal/types"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "KOREBUILD"

type RootConfig struct {
	ConfigFile string
	LogLevel   string
}

// Execute runs the policy and manifest tool.
func Execute() {
	run(newRootCommand())
}

func run(root *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "korebuild-tools",
		Short:         "Apply lineup and version policies to .NET projects",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(cmd)

	cmd.AddCommand(newApplyPoliciesCommand())
	cmd.AddCommand(newCheckConflictsCommand())
	cmd.AddCommand(newGenerateManifestCommand())
	cmd.AddCommand(newUpgradeManifestCommand())
	cmd.AddCommand(newPushCommand())
	return cmd
}

// addGlobalFlags registers the flags shared by both tools and the hook that
// loads configuration before any subcommand runs.
func addGlobalFlags(cmd *cobra.Command) {
	cfg := &RootConfig{}
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(cfg.ConfigFile); err != nil {
			return err
		}
		setupLogging(viper.GetString("log_level"), viper.GetBool("ci"))
		cmd.SetContext(log.Logger.WithContext(cmd.Context()))
		return nil
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("precedence", string(types.PrecedenceLastWins), "Lineup precedence (last-wins, first-wins, strict)")
	flags.Int("workers", 0, "Parallel project evaluations (0 uses the CPU count)")
	flags.Duration("network-timeout", 100*time.Second, "Timeout of one feed request")
	flags.Int("network-retries", 3, "Attempts per feed request")
	flags.StringSlice("lineup-folder", nil, "Folders searched for lineup packages")
	flags.String("feed", "", "Flat container URL of the package feed")
	flags.String("push-source", "", "Push endpoint of the package feed")
	flags.String("api-key", "", "API key used when pushing")
	flags.String("cache-dir", "", "Directory caching downloaded lineups")
	flags.Bool("ci", false, "Running on a build server: JSON logs, no colors")

	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("precedence", flags.Lookup("precedence"))
	_ = viper.BindPFlag("workers", flags.Lookup("workers"))
	_ = viper.BindPFlag("network_timeout", flags.Lookup("network-timeout"))
	_ = viper.BindPFlag("network_retries", flags.Lookup("network-retries"))
	_ = viper.BindPFlag("lineup_folders", flags.Lookup("lineup-folder"))
	_ = viper.BindPFlag("feed", flags.Lookup("feed"))
	_ = viper.BindPFlag("push_source", flags.Lookup("push-source"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("ci", flags.Lookup("ci"))
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("korebuild")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/korebuild")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read korebuild.yaml").
			WithCause(err)
	}
	return nil
}

func setupLogging(level string, ci bool) {
	log.Logger = newLogger(os.Stderr, ci)
	if ci {
		color.NoColor = true
	}
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// newLogger writes human-readable logs, or one JSON object per line on build
// servers where log collectors parse the output.
func newLogger(out io.Writer, ci bool) zerolog.Logger {
	if ci {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}

// engineConfig snapshots the global settings once per command.
func engineConfig() (types.EngineConfig, error) {
	precedence := types.LineupPrecedence(strings.TrimSpace(viper.GetString("precedence")))
	switch precedence {
	case "":
		precedence = types.PrecedenceLastWins
	case types.PrecedenceLastWins, types.PrecedenceFirstWins, types.PrecedenceStrict:
	default:
		return types.EngineConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unknown lineup precedence " + string(precedence))
	}
	return types.EngineConfig{
		KoreBuildVersion: version,
		Precedence:       precedence,
		Workers:          viper.GetInt("workers"),
		NetworkTimeout:   viper.GetDuration("network_timeout"),
		NetworkRetries:   viper.GetInt("network_retries"),
		LineupFolders:    viper.GetStringSlice("lineup_folders"),
		FeedURL:          viper.GetString("feed"),
		PushURL:          viper.GetString("push_source"),
		APIKey:           viper.GetString("api_key"),
		CacheDir:         viper.GetString("cache_dir"),
	}, nil
}

// newAppService builds the service and the build logger whose error count
// decides the exit status of commands that keep going after an error.
func newAppService(cmd *cobra.Command) (app.Service, *adapters.BuildLoggerAdapter, error) {
	config, err := engineConfig()
	if err != nil {
		return app.Service{}, nil, err
	}
	logger := adapters.NewBuildLoggerAdapter(log.Logger)
	if cmd.Context() != nil {
		logger = adapters.NewBuildLoggerAdapter(log.Ctx(cmd.Context()).With().Str("command", cmd.Name()).Logger())
	}
	return app.NewService(config, logger), logger, nil
}

// exitCodeForError maps error codes to process exit codes:
// 2 invalid input, 3 conflict or failed precondition, 4 not found,
// 5 internal, 6 timeout or cancellation, 1 anything else.
func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	log.Error().Err(errors.Unwrap(err)).Msg(errorMessage(err))
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodeFailedPrecondition, errbuilder.CodeAborted, errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeNotFound:
		return 4
	case errbuilder.CodeInternal:
		return 5
	case errbuilder.CodeDeadlineExceeded, errbuilder.CodeCanceled:
		return 6
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
