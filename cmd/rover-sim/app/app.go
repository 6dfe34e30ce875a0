package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/cmd/rover-sim/app/options"
	"github.com/roverops/missionctl/internal/metrics"
	"github.com/roverops/missionctl/internal/simulator"
	"github.com/roverops/missionctl/pkg/app"
	"github.com/roverops/missionctl/pkg/log"
)

const (
	commandName = "rover-sim"
	commandDesc = `rover-sim serves the RoverOps mission REST API and mission stream from
memory. Every mission walks a 20x20 grid towards the position named in its
goal while scripted planner, safety, rover and reporter agents narrate it.`
)

func NewApp() *app.App {
	opts := options.NewSimOptions()
	application := app.NewApp(
		commandName,
		"Launch a local RoverOps mission simulator",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.SimOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, opts)
	}
}

// serve runs the simulator and, when enabled, the metrics endpoint until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, opts *options.SimOptions) error {
	sim := simulator.NewServer(opts.HttpOptions, opts.SimulatorOptions, clock.RealClock{})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sim.Start(ctx)
	})

	if opts.MetricsOptions.Enabled() {
		ms := metrics.NewServer(opts.MetricsOptions)
		g.Go(func() error {
			return ms.Start(ctx)
		})
	}

	log.Info("Mission simulator running", "addr", opts.HttpOptions.Addr)
	return g.Wait()
}
