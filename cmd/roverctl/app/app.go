package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roverops/missionctl/cmd/roverctl/app/options"
	"github.com/roverops/missionctl/pkg/app"
	"github.com/roverops/missionctl/pkg/log"
)

const (
	commandName = "roverctl"
	commandDesc = `roverctl starts RoverOps missions and follows them in the terminal.
It renders status, agent activity and mission logs as they stream in,
exports mission reports and can relay mission state to an MQTT broker.`
)

func NewApp() *app.App {
	opts := options.NewOptions()
	application := app.NewApp(
		commandName,
		"Operate RoverOps missions",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithCommands(
			newRunCommand(opts),
			newWatchCommand(opts),
			newStatusCommand(opts),
			newReportCommand(opts),
			newScheduleCommand(opts),
			newTailCommand(opts),
			newAPODCommand(opts),
		),
	)
	return application
}

type commandFunc func(ctx context.Context, cmd *cobra.Command, args []string) error

// runE installs the logger and a signal-bound context around fn. Options are
// loaded by the root command before it runs.
func runE(opts *options.Options, fn commandFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log.Init(opts.Log)
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return fn(ctx, cmd, args)
	}
}
