// Package mission reconciles REST snapshots and stream messages into a
// single view model per mission.
package mission

import (
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

// LogEntry is one deduplicated line of the mission log.
type LogEntry struct {
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Agent     v1.AgentType `json:"agent"`
	Message   string       `json:"message"`
	Level     v1.LogLevel  `json:"level"`
}

// ViewModel is the client-side aggregate of one mission.
//
// Values are immutable once returned by Reduce, Seed or the Reconciler:
// slices and maps may be shared between successive values and must be
// treated as read-only.
type ViewModel struct {
	MissionID      string                          `json:"mission_id"`
	Goal           string                          `json:"goal"`
	Status         v1.MissionStatus                `json:"status"`
	RoverPosition  *v1.Position                    `json:"rover_position,omitempty"`
	Path           []v1.Position                   `json:"path"`
	Obstacles      []v1.Position                   `json:"obstacles"`
	GoalPositions  []v1.Position                   `json:"goal_positions"`
	Steps          []v1.MissionStep                `json:"steps,omitempty"`
	CurrentStep    int                             `json:"current_step"`
	TotalSteps     int                             `json:"total_steps"`
	StepsCompleted int                             `json:"steps_completed"`
	AgentStates    map[v1.AgentType]v1.AgentStatus `json:"agent_states"`
	Logs           []LogEntry                      `json:"logs"`

	// seen holds every log id in Logs.
	seen map[string]struct{}
}

// New returns the view model of a freshly started mission.
func New(missionID, goal string) ViewModel {
	return ViewModel{
		MissionID: missionID,
		Goal:      goal,
		Status:    v1.MissionStatusPending,
	}
}

// HasLog reports whether a log entry with the given id was already recorded.
func (vm ViewModel) HasLog(id string) bool {
	_, ok := vm.seen[id]
	return ok
}

// LastWaypoint returns the most recent path entry.
func (vm ViewModel) LastWaypoint() (v1.Position, bool) {
	if len(vm.Path) == 0 {
		return v1.Position{}, false
	}
	return vm.Path[len(vm.Path)-1], true
}

// Done reports whether the mission reached a terminal status.
func (vm ViewModel) Done() bool {
	return vm.Status.Terminal()
}
