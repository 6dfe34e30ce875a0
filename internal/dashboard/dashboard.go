// Package dashboard drives the lifecycle of the mission on screen: it starts
// or attaches to a mission, seeds the reconciler from a snapshot, feeds it
// the mission stream and refreshes snapshot and report once the mission
// completes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/internal/mission"
	"github.com/roverops/missionctl/internal/stream"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000"

var (
	// ErrNoMission is returned when no mission is attached.
	ErrNoMission = errors.New("no active mission")

	// ErrStreamLost is reported by Err once the stream client stopped
	// reconnecting.
	ErrStreamLost = errors.New("mission stream lost")

	// ErrReplaced is returned by Attach when another mission was attached
	// before it finished.
	ErrReplaced = errors.New("mission was replaced")
)

// MissionAPI is the part of the backend REST API the dashboard uses.
type MissionAPI interface {
	StartMission(ctx context.Context, goal string) (*v1.StartMissionResponse, error)
	GetMission(ctx context.Context, missionID string) (*v1.MissionStatusResponse, error)
	GetMissionReport(ctx context.Context, missionID string) (*v1.MissionReport, error)
}

// EventStream is the part of the stream client the dashboard uses.
type EventStream interface {
	Connect(ctx context.Context, missionID string) error
	On(kind stream.Kind, fn stream.HandlerFunc) (unsubscribe func())
	Disconnect()
}

// Dashboard owns the active mission. All methods are safe for concurrent
// use.
type Dashboard struct {
	api    MissionAPI
	stream EventStream
	rec    *mission.Reconciler
	clock  clock.PassiveClock

	// lifecycle orders the stream and reconciler work of attach and
	// release. It is taken before mu.
	lifecycle sync.Mutex

	mu  sync.Mutex
	cur *attachment
}

// attachment is one mission's stay on the dashboard.
type attachment struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
	settle   sync.Once

	mu       sync.Mutex
	err      error
	report   *v1.MissionReport
	unsubs   []func()
	released bool
}

func newAttachment(id string) *attachment {
	ctx, cancel := context.WithCancel(context.Background())
	return &attachment{id: id, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (a *attachment) finish(err error) {
	a.doneOnce.Do(func() {
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
		close(a.done)
	})
}

// Option customizes a Dashboard.
type Option func(*Dashboard)

// WithClock sets the clock used to stamp client-side log entries.
func WithClock(clk clock.PassiveClock) Option {
	return func(d *Dashboard) { d.clock = clk }
}

// New creates a Dashboard that renders into rec.
func New(api MissionAPI, es EventStream, rec *mission.Reconciler, opts ...Option) *Dashboard {
	d := &Dashboard{
		api:    api,
		stream: es,
		rec:    rec,
		clock:  clock.RealClock{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start asks the backend to run goal and attaches to the new mission. A
// failure is also recorded in the view model's log.
func (d *Dashboard) Start(ctx context.Context, goal string) (string, error) {
	resp, err := d.api.StartMission(ctx, goal)
	if err != nil {
		now := d.clock.Now()
		d.rec.AppendLog(mission.LogEntry{
			ID:        "error-" + strconv.FormatInt(now.UnixNano(), 10),
			Timestamp: now.Format(timestampLayout),
			Agent:     v1.AgentSystem,
			Message:   "Failed to start mission: " + err.Error(),
			Level:     v1.LogLevelError,
		})
		return "", err
	}

	log.Info("Mission started", "missionID", resp.MissionID, "goal", goal)
	first := mission.LogEntry{
		ID:        resp.MissionID + "-start",
		Timestamp: d.clock.Now().Format(timestampLayout),
		Agent:     v1.AgentSystem,
		Message:   "Mission started: " + goal,
		Level:     v1.LogLevelInfo,
	}
	return resp.MissionID, d.attach(ctx, resp.MissionID, goal, &first)
}

// Attach follows an existing mission, replacing the current one.
func (d *Dashboard) Attach(ctx context.Context, missionID string) error {
	if missionID == "" {
		return fmt.Errorf("mission id is required")
	}
	return d.attach(ctx, missionID, "", nil)
}

func (d *Dashboard) attach(ctx context.Context, missionID, goal string, first *mission.LogEntry) error {
	att := newAttachment(missionID)
	d.mu.Lock()
	prev := d.cur
	d.cur = att
	d.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	d.lifecycle.Lock()
	if prev != nil {
		d.release(prev)
	}
	if !d.isCurrent(att) {
		d.lifecycle.Unlock()
		return ErrReplaced
	}
	d.rec.Reset(missionID, goal)
	if first != nil {
		d.rec.AppendLog(*first)
	}
	att.addUnsub(d.rec.Subscribe(func(vm mission.ViewModel) { d.observe(att, vm) }))
	d.lifecycle.Unlock()

	// Requests made while attaching end with the attachment.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(att.ctx, cancel)
	defer stop()

	snap, err := d.api.GetMission(ctx, missionID)
	if !d.isCurrent(att) {
		return ErrReplaced
	}
	if err != nil {
		d.detach(att)
		return err
	}

	if err := d.follow(ctx, att, snap.State); err != nil {
		if errors.Is(err, ErrReplaced) {
			return err
		}
		d.detach(att)
		return err
	}
	return nil
}

// follow seeds the reconciler and connects the stream for att. It holds the
// lifecycle lock so a newer attachment cannot be overtaken by a stale one.
func (d *Dashboard) follow(ctx context.Context, att *attachment, state *v1.MissionState) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if !d.isCurrent(att) {
		return ErrReplaced
	}
	if state != nil {
		if err := d.rec.Initialize(state); err != nil {
			log.Warn("Discarding mission snapshot", "missionID", att.id, "err", err)
		}
	}

	att.addUnsub(d.stream.On(stream.KindAny, func(msg *v1.StreamMessage) {
		if d.isCurrent(att) {
			d.rec.Apply(msg)
		}
	}))
	if err := d.stream.Connect(ctx, att.id); err != nil {
		if errors.Is(err, stream.ErrSuperseded) || !d.isCurrent(att) {
			return ErrReplaced
		}
		return err
	}
	if !d.isCurrent(att) {
		return ErrReplaced
	}
	return nil
}

// addUnsub registers fn to run on release. Once released, fn runs at once.
func (a *attachment) addUnsub(fn func()) {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		fn()
		return
	}
	a.unsubs = append(a.unsubs, fn)
	a.mu.Unlock()
}

// observe runs for every view model change of att's mission. Reaching a
// terminal status settles the attachment; complete triggers a refresh.
func (d *Dashboard) observe(att *attachment, vm mission.ViewModel) {
	if vm.MissionID != att.id || !vm.Status.Terminal() {
		return
	}
	att.settle.Do(func() {
		go d.settleAttachment(att, vm.Status)
	})
}

func (d *Dashboard) settleAttachment(att *attachment, status v1.MissionStatus) {
	defer att.finish(nil)

	if status != v1.MissionStatusComplete {
		log.Info("Mission ended", "missionID", att.id, "status", status)
		return
	}

	if snap, err := d.api.GetMission(att.ctx, att.id); err != nil {
		log.Warn("Failed to refresh mission snapshot", "missionID", att.id, "err", err)
	} else if d.isCurrent(att) && snap.State != nil {
		if err := d.rec.Initialize(snap.State); err != nil {
			log.Warn("Discarding mission snapshot", "missionID", att.id, "err", err)
		}
	}

	report, err := d.api.GetMissionReport(att.ctx, att.id)
	if err != nil {
		log.Warn("Failed to fetch mission report", "missionID", att.id, "err", err)
		return
	}
	att.mu.Lock()
	att.report = report
	att.mu.Unlock()
	log.Info("Mission complete", "missionID", att.id, "steps", report.StepsCompleted)
}

// ObserveStream is meant for stream.WithStateObserver. It settles the
// current mission with ErrStreamLost once the client gives up reconnecting.
func (d *Dashboard) ObserveStream(t stream.Transition) {
	if !t.GaveUp() {
		return
	}
	d.mu.Lock()
	att := d.cur
	d.mu.Unlock()

	if att != nil {
		log.Warn("Mission stream lost", "missionID", att.id)
		att.finish(ErrStreamLost)
	}
}

// Stop detaches from the current mission: the stream is closed and Done is
// released. An Attach still in progress returns ErrReplaced. It is a no-op
// without a mission.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	att := d.cur
	d.cur = nil
	d.mu.Unlock()

	if att != nil {
		d.drop(att)
	}
}

func (d *Dashboard) detach(att *attachment) {
	d.mu.Lock()
	if d.cur != att {
		d.mu.Unlock()
		return
	}
	d.cur = nil
	d.mu.Unlock()

	d.drop(att)
}

// drop cancels att first so an in-flight dial gives up the lifecycle lock.
func (d *Dashboard) drop(att *attachment) {
	att.cancel()
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	d.release(att)
}

// release must be called with the lifecycle lock held.
func (d *Dashboard) release(att *attachment) {
	att.mu.Lock()
	if att.released {
		att.mu.Unlock()
		return
	}
	att.released = true
	unsubs := att.unsubs
	att.unsubs = nil
	att.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	d.stream.Disconnect()
	att.cancel()
	att.finish(nil)
}

func (d *Dashboard) isCurrent(att *attachment) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur == att
}

func (d *Dashboard) current() *attachment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur
}

// MissionID returns the id of the attached mission, or "".
func (d *Dashboard) MissionID() string {
	if att := d.current(); att != nil {
		return att.id
	}
	return ""
}

// Done is closed when the attached mission settles: it reached a terminal
// status (after the refresh, for complete), its stream was lost, or it was
// detached. Without a mission the returned channel is already closed.
func (d *Dashboard) Done() <-chan struct{} {
	if att := d.current(); att != nil {
		return att.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Err returns ErrStreamLost if the mission settled because its stream was
// lost, and nil otherwise.
func (d *Dashboard) Err() error {
	att := d.current()
	if att == nil {
		return nil
	}
	att.mu.Lock()
	defer att.mu.Unlock()
	return att.err
}

// View returns the current view model.
func (d *Dashboard) View() mission.ViewModel {
	return d.rec.View()
}

// Report returns the backend report of the attached mission. The report
// fetched on completion is reused.
func (d *Dashboard) Report(ctx context.Context) (*v1.MissionReport, error) {
	att := d.current()
	if att == nil {
		return nil, ErrNoMission
	}

	att.mu.Lock()
	report := att.report
	att.mu.Unlock()
	if report != nil {
		return report, nil
	}
	return d.api.GetMissionReport(ctx, att.id)
}
