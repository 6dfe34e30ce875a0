package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/roverops/missionctl/cmd/roverctl/app/options"
	"github.com/roverops/missionctl/internal/backend"
	"github.com/roverops/missionctl/internal/console"
	"github.com/roverops/missionctl/internal/dashboard"
	"github.com/roverops/missionctl/internal/mission"
	"github.com/roverops/missionctl/internal/relay"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/mqtt"
	"github.com/roverops/missionctl/pkg/mqtt/topic"
)

func newRunCommand(opts *options.Options) *cobra.Command {
	var ff followFlags
	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Start a mission and follow it until it ends",
		Example: `  roverctl run "Navigate to (10, 5)"
  roverctl run --export --report.formats md,html "Collect samples near the crater"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			err := follow(ctx, opts, cmd.OutOrStdout(), ff, func(ctx context.Context, d *dashboard.Dashboard) error {
				_, err := d.Start(ctx, goal)
				return err
			})
			if isInterrupted(err) {
				return nil
			}
			return err
		}),
	}
	ff.addFlags(cmd.Flags())
	return cmd
}

func newWatchCommand(opts *options.Options) *cobra.Command {
	var ff followFlags
	cmd := &cobra.Command{
		Use:   "watch <mission-id>",
		Short: "Follow a running mission",
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			err := follow(ctx, opts, cmd.OutOrStdout(), ff, func(ctx context.Context, d *dashboard.Dashboard) error {
				return d.Attach(ctx, args[0])
			})
			if isInterrupted(err) {
				return nil
			}
			return err
		}),
	}
	ff.addFlags(cmd.Flags())
	return cmd
}

func newStatusCommand(opts *options.Options) *cobra.Command {
	var grid bool
	cmd := &cobra.Command{
		Use:   "status <mission-id>",
		Short: "Print the current state of a mission",
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			api, err := backend.NewClientFromOptions(opts.APIOptions)
			if err != nil {
				return err
			}
			vm, err := snapshot(ctx, api, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, console.MissionTable(vm))
			if agents := console.AgentTable(vm); agents != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, agents)
			}
			if grid {
				fmt.Fprintln(out)
				fmt.Fprintln(out, console.RenderGrid(vm))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&grid, "grid", false, "Also draw the mission grid.")
	return cmd
}

func newReportCommand(opts *options.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <mission-id>",
		Short: "Export the report of a mission",
		Long: `Export the report of a mission in every format listed by --report.formats
into --report.dir. With --s3.endpoint set the files are also uploaded and a
presigned download URL is printed for each.`,
		Args: cobra.ExactArgs(1),
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			api, err := backend.NewClientFromOptions(opts.APIOptions)
			if err != nil {
				return err
			}
			vm, err := snapshot(ctx, api, args[0])
			if err != nil {
				return err
			}

			rep, err := api.GetMissionReport(ctx, args[0])
			if err != nil {
				if !backend.IsNotFound(err) {
					return err
				}
				log.Warn("Backend has no report for mission, exporting local state only", "missionID", args[0])
				rep = nil
			}
			return exportReport(ctx, opts, cmd.OutOrStdout(), vm, rep)
		}),
	}
	return cmd
}

func newScheduleCommand(opts *options.Options) *cobra.Command {
	var (
		at string
		in time.Duration
	)
	cmd := &cobra.Command{
		Use:   "schedule <goal>",
		Short: "Schedule a mission to start later",
		Example: `  roverctl schedule --in 10m "Navigate to (4, 7)"
  roverctl schedule --at 2026-10-20T09:30:00 "Survey the ridge"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			when, err := scheduleTime(at, in, time.Now())
			if err != nil {
				return err
			}
			api, err := backend.NewClientFromOptions(opts.APIOptions)
			if err != nil {
				return err
			}
			resp, err := api.ScheduleMission(ctx, strings.Join(args, " "), when)
			if err != nil {
				return err
			}

			t := uitable.New()
			t.AddRow("MISSION:", resp.MissionID)
			t.AddRow("STATUS:", resp.Status)
			t.AddRow("SCHEDULED:", resp.ScheduledTime)
			t.AddRow("MESSAGE:", resp.Message)
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		}),
	}
	cmd.Flags().StringVar(&at, "at", "", "Local start time, "+v1.ScheduleTimeLayout+" or RFC 3339.")
	cmd.Flags().DurationVar(&in, "in", 0, "Start after this delay instead of at a fixed time.")
	cmd.MarkFlagsMutuallyExclusive("at", "in")
	cmd.MarkFlagsOneRequired("at", "in")
	return cmd
}

func newTailCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tail [mission-id]",
		Short: "Print mission logs relayed over MQTT",
		Long: `Print the mission log entries another roverctl relays to --mqtt.broker,
for one mission or, without an id, for every mission.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if !opts.MqttOptions.Enabled() {
				return fmt.Errorf("--mqtt.broker is required")
			}
			client, err := mqtt.NewClient(opts.MqttOptions.ToClientConfig())
			if err != nil {
				return err
			}
			if err := client.Start(ctx); err != nil {
				return err
			}
			defer func() {
				dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
				defer cancel()
				client.Disconnect(dctx)
			}()
			if err := client.AwaitConnection(ctx); err != nil {
				return nil
			}

			var missionID string
			if len(args) == 1 {
				missionID = args[0]
			}

			out := cmd.OutOrStdout()
			renderer := console.NewRenderer(out)
			var mu sync.Mutex
			return relay.Tail(ctx, client, topic.NewBuilder(opts.MqttOptions.TopicRoot), missionID, func(m relay.LogMessage) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s %s\n", m.MissionID, renderer.FormatLog(m.LogEntry))
			})
		}),
	}
}

func newAPODCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "apod",
		Short: "Print the astronomy picture of the day",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			api, err := backend.NewClientFromOptions(opts.APIOptions)
			if err != nil {
				return err
			}
			apod, err := api.GetAPOD(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), apodTable(apod))
			return nil
		}),
	}
}

// snapshot fetches a mission and seeds a fresh view model with it.
func snapshot(ctx context.Context, api *backend.Client, missionID string) (mission.ViewModel, error) {
	resp, err := api.GetMission(ctx, missionID)
	if err != nil {
		return mission.ViewModel{}, err
	}
	vm := mission.New(missionID, "")
	if resp.State == nil {
		vm.Status = resp.Status
		return vm, nil
	}
	return mission.Seed(vm, resp.State), nil
}

func scheduleTime(at string, in time.Duration, now time.Time) (time.Time, error) {
	if at == "" {
		if in <= 0 {
			return time.Time{}, fmt.Errorf("--in must be positive")
		}
		return now.Add(in), nil
	}
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		return t.Local(), nil
	}
	t, err := time.ParseInLocation(v1.ScheduleTimeLayout, at, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want %s or RFC 3339", at, v1.ScheduleTimeLayout)
	}
	return t, nil
}

func apodTable(apod v1.APOD) string {
	keys := make([]string, 0, len(apod))
	for k := range apod {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t := uitable.New()
	t.MaxColWidth = 100
	t.Wrap = true
	for _, k := range keys {
		t.AddRow(strings.ToUpper(k)+":", apod[k])
	}
	return t.String()
}
