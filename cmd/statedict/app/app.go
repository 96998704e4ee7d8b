// Package app wires the statedict CLI: configuration, logging and the
// cobra command tree.
package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/born-ml/statedict/internal/config"
	"github.com/born-ml/statedict/internal/logging"
	"github.com/born-ml/statedict/internal/report"
	"github.com/born-ml/statedict/internal/statedict"
)

// App holds the state of one CLI invocation.
type App struct {
	version string
	commit  string
	date    string

	viper      *viper.Viper
	configFile string
	config     *config.Config
	logger     zerolog.Logger
	logOutput  string
	logCloser  io.Closer

	out io.Writer
}

// Option customizes an App.
type Option func(*App)

// WithOutput redirects command output (default stdout).
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithLogOutput sets the log destination: stderr, stdout, discard or a file path.
func WithLogOutput(output string) Option {
	return func(a *App) {
		a.logOutput = output
	}
}

// New creates an App with the given version information.
func New(version, commit, date string, opts ...Option) *App {
	a := &App{
		version:   version,
		commit:    commit,
		date:      date,
		viper:     viper.New(),
		logger:    *logging.Default(),
		logOutput: "stderr",
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs the CLI with args. The log destination opened for the run is
// closed and the previous default logger restored before it returns.
func (a *App) Execute(ctx context.Context, args []string) (err error) {
	previous := *logging.Default()
	defer func() {
		if a.logCloser == nil {
			return
		}
		logging.SetDefault(previous)
		if closeErr := a.logCloser.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		a.logCloser = nil
	}()

	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	return rootCmd.ExecuteContext(ctx)
}

// Logger returns the configured logger.
func (a *App) Logger() *zerolog.Logger {
	return &a.logger
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "statedict",
		Short:   "Reconcile model checkpoints against expected tensor names",
		Version: a.version,
		Long: `statedict lines up the tensors stored in a checkpoint with the names and
shapes a model expects. It renames keys, strips the "module." prefix left by
replicated training, skips excluded names and reports what matches.

Supported files are .safetensors and Born .born checkpoints.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is $HOME/.statedict.yaml)")
	flags.StringP("output", "o", "", "output format: table, json, yaml")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: auto, json, console")
	flags.StringSlice("map", nil, "rename checkpoint key, old=new (repeatable)")
	flags.StringSlice("exclude", nil, "skip expected names containing this substring (repeatable)")
	flags.Bool("keep-unmapped", false, "keep checkpoint keys not mentioned by --map")

	a.bindFlag(rootCmd, config.KeyOutput, "output")
	a.bindFlag(rootCmd, config.KeyLogLevel, "log-level")
	a.bindFlag(rootCmd, config.KeyLogFormat, "log-format")
	a.bindFlag(rootCmd, config.KeyMap, "map")
	a.bindFlag(rootCmd, config.KeyExclude, "exclude")
	a.bindFlag(rootCmd, config.KeyKeepUnmapped, "keep-unmapped")

	rootCmd.SetVersionTemplate("statedict {{.Version}}\n")

	rootCmd.AddCommand(
		a.newInspectCommand(),
		a.newDiffCommand(),
		a.newLoadCommand(),
		a.newVersionCommand(),
	)
	return rootCmd
}

// bindFlag binds a persistent or local flag of cmd to a viper key.
// The flags are defined right above, so a lookup failure is a programming error.
func (a *App) bindFlag(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := a.viper.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// setupCommand loads configuration and installs the logger before any command runs.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.viper, a.configFile)
	if err != nil {
		return err
	}
	a.config = cfg

	a.logger, a.logCloser = logging.NewFromConfig(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  a.logOutput,
		NoColor: os.Getenv("NO_COLOR") != "",
	})
	logging.SetDefault(a.logger)

	a.logger.Debug().
		Str("config_file", cfg.ConfigFile).
		Str("output", cfg.Output).
		Msg("configuration loaded")
	return nil
}

// reconcilerOptions translates the configuration into reconciler options.
func (a *App) reconcilerOptions() []statedict.Option {
	opts := []statedict.Option{
		statedict.WithLogger(a.logger),
		statedict.WithExclude(a.config.Exclude...),
	}
	if len(a.config.NameMap) > 0 {
		opts = append(opts, statedict.WithNameMap(a.config.NameMap))
	}
	if a.config.KeepUnmapped {
		opts = append(opts, statedict.WithKeepUnmapped())
	}
	return opts
}

func (a *App) render(data any) error {
	format, err := report.ParseFormat(a.config.Output)
	if err != nil {
		return err
	}
	return report.Render(a.out, format, data)
}
