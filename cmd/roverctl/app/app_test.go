package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/cmd/roverctl/app/options"
	"github.com/roverops/missionctl/internal/backend"
	"github.com/roverops/missionctl/internal/dashboard"
	"github.com/roverops/missionctl/internal/simulator"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	pkgoptions "github.com/roverops/missionctl/pkg/options"
)

func newTestOptions(t *testing.T) *options.Options {
	t.Helper()

	simOpts := pkgoptions.NewSimulatorOptions()
	simOpts.StepInterval = 2 * time.Millisecond
	simOpts.Seed = 11
	sim := simulator.NewServer(pkgoptions.NewHttpOptions(), simOpts, clock.RealClock{})
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(func() {
		sim.Stop()
		srv.Close()
	})

	opts := options.NewOptions()
	opts.APIOptions.URL = srv.URL
	opts.StreamOptions.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	opts.ReportOptions.Dir = t.TempDir()
	return opts
}

func TestFollowRunsMissionAndExports(t *testing.T) {
	opts := newTestOptions(t)
	opts.ReportOptions.Formats = []string{"markdown", "json"}
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	var out bytes.Buffer
	err := follow(context.Background(), opts, &out, followFlags{grid: true, export: true}, func(ctx context.Context, d *dashboard.Dashboard) error {
		_, err := d.Start(ctx, "Navigate to (4, 3)")
		return err
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Mission started: Navigate to (4, 3)")
	assert.Contains(t, text, "Target destination reached!")
	assert.Contains(t, text, "STATUS:")
	assert.Contains(t, text, "complete")
	assert.Contains(t, text, "FORMAT")

	md, err := filepath.Glob(filepath.Join(opts.ReportOptions.Dir, "mission-report-*.md"))
	require.NoError(t, err)
	require.Len(t, md, 1)
	data, err := os.ReadFile(md[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Navigate to (4, 3)")

	js, err := filepath.Glob(filepath.Join(opts.ReportOptions.Dir, "mission-report-*.json"))
	require.NoError(t, err)
	assert.Len(t, js, 1)
}

func TestFollowUnknownMission(t *testing.T) {
	opts := newTestOptions(t)
	require.NoError(t, opts.Complete())

	var out bytes.Buffer
	err := follow(context.Background(), opts, &out, followFlags{}, func(ctx context.Context, d *dashboard.Dashboard) error {
		return d.Attach(ctx, "missing")
	})
	assert.True(t, backend.IsNotFound(err))
}

func TestFollowStopsOnCancel(t *testing.T) {
	opts := newTestOptions(t)
	require.NoError(t, opts.Complete())

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	err := follow(ctx, opts, &out, followFlags{}, func(ctx context.Context, d *dashboard.Dashboard) error {
		_, err := d.Start(ctx, "Navigate to (19, 19)")
		cancel()
		return err
	})
	assert.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	opts := newTestOptions(t)
	api, err := backend.NewClientFromOptions(opts.APIOptions)
	require.NoError(t, err)

	started, err := api.StartMission(context.Background(), "Navigate to (3, 2)")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		vm, err := snapshot(context.Background(), api, started.MissionID)
		return err == nil && vm.Status == v1.MissionStatusComplete
	}, 5*time.Second, 10*time.Millisecond)

	vm, err := snapshot(context.Background(), api, started.MissionID)
	require.NoError(t, err)
	assert.Equal(t, "Navigate to (3, 2)", vm.Goal)
	assert.Equal(t, &v1.Position{X: 3, Y: 2}, vm.RoverPosition)
	assert.Equal(t, 1, vm.TotalSteps)
}

func TestScheduleTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	got, err := scheduleTime("", 10*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), got)

	got, err = scheduleTime("2026-03-01T13:30:00", 0, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 30, 0, 0, time.Local), got)

	got, err = scheduleTime("2026-03-01T13:30:00Z", 0, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC)))

	_, err = scheduleTime("tomorrow", 0, now)
	assert.Error(t, err)
	_, err = scheduleTime("", 0, now)
	assert.Error(t, err)
}

func TestAPODTable(t *testing.T) {
	out := apodTable(v1.APOD{"title": "Orion", "media_type": "image"})
	assert.Less(t, strings.Index(out, "MEDIA_TYPE:"), strings.Index(out, "TITLE:"))
	assert.Contains(t, out, "Orion")
}

func TestCommandTree(t *testing.T) {
	cmd := NewApp().Command()
	for _, name := range []string{"run", "watch", "status", "report", "schedule", "tail", "apod"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("stream.reconnect-delay"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("report.formats"))
}
