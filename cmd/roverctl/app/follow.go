package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/roverops/missionctl/cmd/roverctl/app/options"
	"github.com/roverops/missionctl/internal/backend"
	"github.com/roverops/missionctl/internal/console"
	"github.com/roverops/missionctl/internal/dashboard"
	"github.com/roverops/missionctl/internal/metrics"
	"github.com/roverops/missionctl/internal/mission"
	"github.com/roverops/missionctl/internal/relay"
	"github.com/roverops/missionctl/internal/report"
	"github.com/roverops/missionctl/internal/report/storage"
	"github.com/roverops/missionctl/internal/stream"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/mqtt"
	"github.com/roverops/missionctl/pkg/mqtt/topic"
)

const disconnectTimeout = 5 * time.Second

// followFlags are shared by run and watch.
type followFlags struct {
	grid   bool
	export bool
}

func (f *followFlags) addFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&f.grid, "grid", true, "Draw the mission grid in the final summary.")
	fs.BoolVar(&f.export, "export", false, "Export the mission report (see --report.*) once the mission completes.")
}

// follow renders one mission until it settles or ctx is done. begin starts
// or attaches the mission; the metrics endpoint and the MQTT relay run
// alongside when configured.
func follow(ctx context.Context, opts *options.Options, out io.Writer, ff followFlags, begin func(context.Context, *dashboard.Dashboard) error) error {
	api, err := backend.NewClientFromOptions(opts.APIOptions)
	if err != nil {
		return err
	}

	rec := mission.NewReconciler()
	renderer := console.NewRenderer(out, console.WithGrid(ff.grid))
	defer rec.Subscribe(renderer.Render)()

	var d *dashboard.Dashboard
	sc, err := stream.NewClient(stream.NewConfig(opts.StreamOptions),
		stream.WithLogger(log.Logr().WithName("stream")),
		stream.WithStateObserver(func(t stream.Transition) { d.ObserveStream(t) }),
	)
	if err != nil {
		return fmt.Errorf("failed to create stream client: %w", err)
	}
	d = dashboard.New(api, sc, rec)

	var mq mqtt.Client
	if opts.MqttOptions.Enabled() {
		if mq, err = mqtt.NewClient(opts.MqttOptions.ToClientConfig()); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if opts.MetricsOptions.Enabled() {
		ms := metrics.NewServer(opts.MetricsOptions)
		ms.SetReadyCheck(func() bool { return sc.State() == stream.StateOpen })
		g.Go(func() error {
			return ms.Start(ctx)
		})
	}

	if mq != nil {
		rl := relay.New(mq, topic.NewBuilder(opts.MqttOptions.TopicRoot))
		defer rl.Attach(rec)()
		g.Go(func() error {
			if err := mq.Start(ctx); err != nil {
				return fmt.Errorf("failed to start mqtt client: %w", err)
			}
			defer func() {
				dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
				defer dcancel()
				mq.Disconnect(dctx)
			}()
			return rl.Run(ctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		defer d.Stop()

		if err := begin(ctx, d); err != nil {
			return err
		}

		select {
		case <-d.Done():
		case <-ctx.Done():
			return nil
		}
		if err := d.Err(); err != nil {
			return err
		}

		vm := d.View()
		if !ff.export || vm.Status != v1.MissionStatusComplete {
			return nil
		}
		rep, err := d.Report(ctx)
		if err != nil {
			log.Warn("Exporting without backend report", "missionID", vm.MissionID, "err", err)
			rep = nil
		}
		return exportReport(ctx, opts, out, vm, rep)
	})

	return g.Wait()
}

// exportReport builds the document of vm and writes it in every configured
// format, uploading it when object storage is configured.
func exportReport(ctx context.Context, opts *options.Options, out io.Writer, vm mission.ViewModel, rep *v1.MissionReport) error {
	doc, err := report.Build(vm, rep, time.Now())
	if err != nil {
		return err
	}

	var eopts []report.ExporterOption
	if opts.S3Options.Enabled() {
		p, err := storage.NewMinIOProvider(opts.S3Options)
		if err != nil {
			return err
		}
		eopts = append(eopts, report.WithStorage(p, opts.S3Options.PresignExpiry))
	}

	artifacts, err := report.NewExporter(opts.ReportOptions.Dir, eopts...).Export(ctx, doc, opts.Formats)
	if len(artifacts) > 0 {
		t := uitable.New()
		t.AddRow("FORMAT", "PATH", "URL")
		for _, a := range artifacts {
			t.AddRow(a.Format, a.Path, a.URL)
		}
		fmt.Fprintln(out, t)
	}
	return err
}

// isInterrupted reports whether err only reflects the user stopping the
// command.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
