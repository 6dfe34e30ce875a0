// Package app assembles cobra commands whose flags are grouped into named
// sections and backed by a viper configuration file and environment.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/term"
)

// RunFunc is the entry point of a command once its options are loaded,
// completed and validated.
type RunFunc func() error

// NamedFlagSetOptions is implemented by the options struct of an App.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from other fields.
	Complete() error

	// Validate reports invalid option combinations.
	Validate() error
}

// App is a command-line application.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	args        cobra.PositionalArgs
	commands    []*cobra.Command
	noConfig    bool

	cmd *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithOptions sets the options loaded before every run.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the root command's entry point.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDescription sets the long help text.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithDefaultValidArgs rejects positional arguments on the root command.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithValidArgs sets a custom positional argument validator.
func WithValidArgs(args cobra.PositionalArgs) Option {
	return func(a *App) { a.args = args }
}

// WithCommands adds subcommands. They share the root's options and flags.
func WithCommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.commands = append(a.commands, cmds...) }
}

// WithoutConfigFlag drops the --config flag.
func WithoutConfigFlag() Option {
	return func(a *App) { a.noConfig = true }
}

// NewApp creates an App with the given binary name and short description.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()
	return a
}

// Command returns the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the root command and exits the process on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	cmd.AddCommand(a.commands...)

	if a.runFunc != nil {
		cmd.RunE = func(*cobra.Command, []string) error {
			return a.runFunc()
		}
	}

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(a.name, namedFlagSets.FlagSet("global"))
	}
	for _, fs := range namedFlagSets.FlagSets {
		cmd.PersistentFlags().AddFlagSet(fs)
	}

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		return a.loadOptions(c)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, cols)

	a.cmd = cmd
}

// loadOptions overlays config file and environment values onto the flags'
// values, then completes and validates the options.
func (a *App) loadOptions(cmd *cobra.Command) error {
	if a.options == nil {
		return nil
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := viper.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode options: %w", err)
	}

	if err := a.options.Complete(); err != nil {
		return err
	}

	return a.options.Validate()
}
