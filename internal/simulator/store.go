package simulator

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

// TimestampLayout matches the backend's ISO-8601 timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// ErrNotFound is returned for an unknown mission id.
var ErrNotFound = errors.New("mission not found")

var agents = []v1.AgentType{v1.AgentPlanner, v1.AgentSafety, v1.AgentRover, v1.AgentReporter}

// Store keeps every mission's state in memory.
type Store struct {
	clock     clock.PassiveClock
	obstacles int

	mu       sync.RWMutex
	rng      *rand.Rand
	missions map[string]*v1.MissionState
	lastLog  map[string]time.Time
}

// NewStore creates an empty Store. obstacles is the number of obstacle
// cells placed off the planned path of each new mission.
func NewStore(clk clock.PassiveClock, rng *rand.Rand, obstacles int) *Store {
	return &Store{
		clock:     clk,
		obstacles: obstacles,
		rng:       rng,
		missions:  make(map[string]*v1.MissionState),
		lastLog:   make(map[string]time.Time),
	}
}

// Create plans a new pending mission for goal.
func (s *Store) Create(goal string) *v1.MissionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := GeneratePath(goal, s.rng)
	target := path[len(path)-1]

	steps := make([]v1.MissionStep, 0, len(path)-1)
	for i, p := range path[1:] {
		steps = append(steps, v1.MissionStep{
			StepNumber:     i + 1,
			Action:         "move",
			TargetPosition: &p,
			Description:    fmt.Sprintf("Move to (%d, %d)", p.X, p.Y),
		})
	}

	states := make(map[v1.AgentType]v1.AgentStatus, len(agents))
	for _, a := range agents {
		states[a] = v1.AgentStatusIdle
	}

	now := s.clock.Now().Format(TimestampLayout)
	start := Start
	st := &v1.MissionState{
		MissionID:     uuid.New().String(),
		Goal:          goal,
		Status:        v1.MissionStatusPending,
		RoverPosition: &start,
		Obstacles:     s.placeObstacles(path),
		GoalPositions: []v1.Position{target},
		Steps:         steps,
		Logs:          []v1.MissionLog{},
		AgentStates:   states,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.missions[st.MissionID] = st
	return cloneState(st)
}

func (s *Store) placeObstacles(path []v1.Position) []v1.Position {
	taken := make(map[v1.Position]bool, len(path)+s.obstacles)
	for _, p := range path {
		taken[p] = true
	}

	free := GridSize*GridSize - len(taken)
	n := min(s.obstacles, free)
	out := make([]v1.Position, 0, n)
	for len(out) < n {
		p := v1.Position{X: s.rng.IntN(GridSize), Y: s.rng.IntN(GridSize)}
		if taken[p] {
			continue
		}
		taken[p] = true
		out = append(out, p)
	}
	return out
}

// Get returns a copy of the mission's state.
func (s *Store) Get(id string) (*v1.MissionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.missions[id]
	if !ok {
		return nil, false
	}
	return cloneState(st), true
}

// Update runs fn on the mission's state and returns a copy of the result.
func (s *Store) Update(id string, fn func(st *v1.MissionState)) (*v1.MissionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(st)
	st.UpdatedAt = s.clock.Now().Format(TimestampLayout)
	return cloneState(st), nil
}

// AppendLog records a log line. Timestamps are strictly increasing per
// mission so that (mission, timestamp) identifies a line.
func (s *Store) AppendLog(id string, agent v1.AgentType, level v1.LogLevel, message string) (v1.MissionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.missions[id]
	if !ok {
		return v1.MissionLog{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	ts := s.clock.Now()
	if last, ok := s.lastLog[id]; ok && !ts.After(last) {
		ts = last.Add(time.Microsecond)
	}
	s.lastLog[id] = ts

	l := v1.MissionLog{
		MissionID: id,
		Timestamp: ts.Format(TimestampLayout),
		AgentType: agent,
		Message:   message,
		Level:     level,
	}
	st.Logs = append(st.Logs, l)
	return l, nil
}

// Len returns the number of missions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.missions)
}

func cloneState(st *v1.MissionState) *v1.MissionState {
	out := *st
	if st.RoverPosition != nil {
		p := *st.RoverPosition
		out.RoverPosition = &p
	}
	out.Obstacles = slices.Clone(st.Obstacles)
	out.GoalPositions = slices.Clone(st.GoalPositions)
	out.Steps = slices.Clone(st.Steps)
	for i := range out.Steps {
		if tp := out.Steps[i].TargetPosition; tp != nil {
			p := *tp
			out.Steps[i].TargetPosition = &p
		}
	}
	out.Logs = slices.Clone(st.Logs)
	out.AgentStates = maps.Clone(st.AgentStates)
	out.NasaImages = slices.Clone(st.NasaImages)
	return &out
}
