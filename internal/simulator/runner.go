package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/internal/metrics"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
)

// Runner plays missions: a scripted exchange between the planner, safety,
// rover and reporter agents followed by one rover update per waypoint.
type Runner struct {
	store    *Store
	out      Broadcaster
	clock    clock.Clock
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a Runner pausing interval between two mission events.
func NewRunner(store *Store, out Broadcaster, clk clock.Clock, interval time.Duration) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:    store,
		out:      out,
		clock:    clk,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the mission in the background.
func (r *Runner) Start(missionID string) {
	r.StartAfter(missionID, 0)
}

// StartAfter runs the mission in the background once delay has elapsed.
func (r *Runner) StartAfter(missionID string, delay time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if delay > 0 {
			select {
			case <-r.ctx.Done():
				return
			case <-r.clock.After(delay):
			}
		}

		if err := r.Run(r.ctx, missionID); err != nil {
			log.Error(err, "Mission run ended early", "missionID", missionID)
		}
	}()
}

// Stop aborts running missions and waits for them to return.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Run plays the mission to completion. A cancelled ctx aborts it.
func (r *Runner) Run(ctx context.Context, missionID string) error {
	st, ok := r.store.Get(missionID)
	if !ok {
		r.out.Broadcast(missionID, &v1.StreamMessage{
			Type:      v1.StreamTypeError,
			MissionID: missionID,
			Message:   "Mission not found",
		})
		return fmt.Errorf("%w: %s", ErrNotFound, missionID)
	}

	metrics.SimulatorMissionsActive.Inc()
	defer metrics.SimulatorMissionsActive.Dec()

	m := &missionRun{Runner: r, ctx: ctx, id: missionID}
	err := m.play(st)
	if err != nil && ctx.Err() != nil {
		m.setStatus(v1.MissionStatusAborted, "Mission aborted", nil)
	}
	return err
}

// missionRun is the state of one Run.
type missionRun struct {
	*Runner
	ctx context.Context
	id  string
}

type line struct {
	agent v1.AgentType
	level v1.LogLevel
	text  string
}

func (m *missionRun) play(st *v1.MissionState) error {
	path := []v1.Position{Start}
	for _, s := range st.Steps {
		path = append(path, *s.TargetPosition)
	}
	from, target := path[0], path[len(path)-1]
	total := len(st.Steps)

	m.setStatus(v1.MissionStatusPlanning, "Mission planning started", map[v1.AgentType]v1.AgentStatus{
		v1.AgentPlanner: v1.AgentStatusPlanning,
	})
	if err := m.sayAll(
		line{v1.AgentPlanner, v1.LogLevelInfo, "Mission received. Analyzing goal..."},
		line{v1.AgentPlanner, v1.LogLevelInfo, "Goal: " + st.Goal},
		line{v1.AgentPlanner, v1.LogLevelSuccess, fmt.Sprintf("Route calculated. %d waypoints identified.", len(path))},
	); err != nil {
		return err
	}

	m.setStatus(v1.MissionStatusPlanning, "", map[v1.AgentType]v1.AgentStatus{
		v1.AgentPlanner: v1.AgentStatusComplete,
		v1.AgentSafety:  v1.AgentStatusValidating,
	})
	if err := m.sayAll(
		line{v1.AgentSafety, v1.LogLevelInfo, "Performing pre-mission safety checks..."},
		line{v1.AgentSafety, v1.LogLevelSuccess, "Terrain analysis: Clear"},
		line{v1.AgentSafety, v1.LogLevelSuccess, "Power levels: Optimal"},
		line{v1.AgentSafety, v1.LogLevelSuccess, "Communication link: Strong"},
	); err != nil {
		return err
	}

	m.setStatus(v1.MissionStatusExecuting, "Mission execution started", map[v1.AgentType]v1.AgentStatus{
		v1.AgentSafety: v1.AgentStatusComplete,
		v1.AgentRover:  v1.AgentStatusExecuting,
	})
	if err := m.sayAll(
		line{v1.AgentRover, v1.LogLevelInfo, "Initializing navigation system..."},
		line{v1.AgentRover, v1.LogLevelInfo, fmt.Sprintf("Starting from position (%d, %d)", from.X, from.Y)},
		line{v1.AgentRover, v1.LogLevelInfo, fmt.Sprintf("Target destination: (%d, %d)", target.X, target.Y)},
		line{v1.AgentRover, v1.LogLevelSuccess, "Mission execution started. Rover is moving..."},
	); err != nil {
		return err
	}

	for i, p := range path[1:] {
		step := i + 1
		if err := m.move(p, step, total); err != nil {
			return err
		}
	}

	if err := m.sayAll(
		line{v1.AgentRover, v1.LogLevelSuccess, "Target destination reached!"},
		line{v1.AgentSafety, v1.LogLevelInfo, "Post-mission diagnostics running..."},
		line{v1.AgentSafety, v1.LogLevelSuccess, "All systems nominal. Mission successful."},
	); err != nil {
		return err
	}

	m.setStatus(v1.MissionStatusExecuting, "", map[v1.AgentType]v1.AgentStatus{
		v1.AgentRover:    v1.AgentStatusComplete,
		v1.AgentReporter: v1.AgentStatusReporting,
	})
	if err := m.sayAll(
		line{v1.AgentReporter, v1.LogLevelInfo, "Collecting mission data..."},
		line{v1.AgentReporter, v1.LogLevelInfo, "Requesting NASA rover imagery..."},
	); err != nil {
		return err
	}

	m.complete(total)
	return nil
}

func (m *missionRun) sayAll(lines ...line) error {
	for _, l := range lines {
		rec, err := m.store.AppendLog(m.id, l.agent, l.level, l.text)
		if err != nil {
			return err
		}
		m.out.Broadcast(m.id, &v1.StreamMessage{
			Type:      v1.StreamTypeLog,
			MissionID: m.id,
			Timestamp: rec.Timestamp,
			Data:      &v1.StreamData{Logs: []v1.MissionLog{rec}},
		})
		if err := m.pause(); err != nil {
			return err
		}
	}
	return nil
}

func (m *missionRun) move(p v1.Position, step, total int) error {
	st, err := m.store.Update(m.id, func(st *v1.MissionState) {
		st.RoverPosition = &p
		st.CurrentStep = step
		st.Steps[step-1].Completed = true
		st.AgentStates[v1.AgentRover] = v1.AgentStatusExecuting
	})
	if err != nil {
		return err
	}

	completed := step
	m.out.Broadcast(m.id, &v1.StreamMessage{
		Type:      v1.StreamTypeUpdate,
		MissionID: m.id,
		Timestamp: st.UpdatedAt,
		Data: &v1.StreamData{
			RoverPosition:  &p,
			CurrentStep:    &step,
			TotalSteps:     &total,
			StepsCompleted: &completed,
			AgentStates:    map[v1.AgentType]v1.AgentStatus{v1.AgentRover: v1.AgentStatusExecuting},
		},
	})
	return m.pause()
}

func (m *missionRun) setStatus(status v1.MissionStatus, message string, agents map[v1.AgentType]v1.AgentStatus) {
	st, err := m.store.Update(m.id, func(st *v1.MissionState) {
		st.Status = status
		for a, s := range agents {
			st.AgentStates[a] = s
		}
	})
	if err != nil {
		return
	}

	m.out.Broadcast(m.id, &v1.StreamMessage{
		Type:      v1.StreamTypeStatus,
		MissionID: m.id,
		Timestamp: st.UpdatedAt,
		Status:    string(status),
		Message:   message,
		Data:      &v1.StreamData{Status: string(status), AgentStates: agents},
	})
}

func (m *missionRun) complete(total int) {
	st, err := m.store.Update(m.id, func(st *v1.MissionState) {
		st.Status = v1.MissionStatusComplete
		for a := range st.AgentStates {
			st.AgentStates[a] = v1.AgentStatusComplete
		}
	})
	if err != nil {
		return
	}

	completed := 0
	for _, s := range st.Steps {
		if s.Completed {
			completed++
		}
	}
	m.out.Broadcast(m.id, &v1.StreamMessage{
		Type:      v1.StreamTypeComplete,
		MissionID: m.id,
		Timestamp: st.UpdatedAt,
		Status:    string(v1.MissionStatusComplete),
		Message:   "Mission completed",
		Data: &v1.StreamData{
			Status:         string(v1.MissionStatusComplete),
			StepsCompleted: &completed,
			TotalSteps:     &total,
			AgentStates:    st.AgentStates,
		},
	})
	log.Info("Mission complete", "missionID", m.id, "steps", completed)
}

func (m *missionRun) pause() error {
	select {
	case <-m.ctx.Done():
		return m.ctx.Err()
	case <-m.clock.After(m.interval):
		return nil
	}
}
