package mission

import (
	"maps"
	"slices"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

// Reduce applies one stream message to vm and returns the result. vm itself
// is never modified.
//
// status and update merge the fields present in data and leave absent ones
// untouched. log and update append unseen log entries in arrival order.
// complete and error move the mission to that terminal status. A terminal
// status is only ever replaced by another terminal status. Other message
// types leave vm unchanged.
func Reduce(vm ViewModel, msg *v1.StreamMessage) ViewModel {
	vm, _ = reduce(vm, msg)
	return vm
}

// Seed replaces vm's snapshot-owned fields with those of snap: position,
// obstacles, goals, status, goal, steps and agent states. The snapshot
// position joins the path if it differs from the last waypoint, and
// snapshot logs are merged with the same deduplication as stream logs.
func Seed(vm ViewModel, snap *v1.MissionState) ViewModel {
	vm, _ = seed(vm, snap)
	return vm
}

// reduce also returns the number of log entries dropped as duplicates.
func reduce(vm ViewModel, msg *v1.StreamMessage) (ViewModel, int) {
	if msg == nil {
		return vm, 0
	}

	fallbackID := msg.MissionID
	if fallbackID == "" {
		fallbackID = vm.MissionID
	}

	dropped := 0
	switch msg.Type {
	case v1.StreamTypeStatus:
		vm = mergeData(vm, msg.Data)
		vm = setStatus(vm, statusOf(msg))

	case v1.StreamTypeUpdate:
		vm = mergeData(vm, msg.Data)
		vm = setStatus(vm, statusOf(msg))
		if msg.Data != nil {
			vm, dropped = appendLogs(vm, fallbackID, msg.Data.Logs)
		}

	case v1.StreamTypeLog:
		vm, dropped = appendLogs(vm, fallbackID, messageLogs(msg))

	case v1.StreamTypeComplete:
		vm = mergeData(vm, msg.Data)
		vm = setStatus(vm, v1.MissionStatusComplete)

	case v1.StreamTypeError:
		vm = setStatus(vm, v1.MissionStatusError)
		text := msg.Message
		if text == "" && msg.Data != nil {
			text = msg.Data.Message
		}
		if text != "" {
			vm, dropped = appendLogs(vm, fallbackID, []v1.MissionLog{{
				MissionID: msg.MissionID,
				Timestamp: msg.Timestamp,
				AgentType: v1.AgentSystem,
				Message:   text,
				Level:     v1.LogLevelError,
			}})
		}
	}

	return vm, dropped
}

func seed(vm ViewModel, snap *v1.MissionState) (ViewModel, int) {
	if snap == nil {
		return vm, 0
	}

	if vm.MissionID == "" {
		vm.MissionID = snap.MissionID
	}
	if snap.Goal != "" {
		vm.Goal = snap.Goal
	}
	vm = setStatus(vm, snap.Status)
	if snap.RoverPosition != nil {
		vm = moveTo(vm, *snap.RoverPosition)
	}

	vm.Obstacles = slices.Clone(snap.Obstacles)
	vm.GoalPositions = slices.Clone(snap.GoalPositions)
	vm.Steps = slices.Clone(snap.Steps)
	vm.CurrentStep = snap.CurrentStep
	vm.TotalSteps = len(snap.Steps)
	vm.StepsCompleted = 0
	for _, s := range snap.Steps {
		if s.Completed {
			vm.StepsCompleted++
		}
	}
	vm.AgentStates = maps.Clone(snap.AgentStates)

	return appendLogs(vm, vm.MissionID, snap.Logs)
}

func statusOf(msg *v1.StreamMessage) v1.MissionStatus {
	if msg.Data != nil && msg.Data.Status != "" {
		return v1.MissionStatus(msg.Data.Status)
	}
	return v1.MissionStatus(msg.Status)
}

// setStatus ignores unknown values and never lets a non-terminal status
// replace a terminal one.
func setStatus(vm ViewModel, s v1.MissionStatus) ViewModel {
	if !s.Valid() {
		return vm
	}
	if vm.Status.Terminal() && !s.Terminal() {
		return vm
	}
	vm.Status = s
	return vm
}

func mergeData(vm ViewModel, d *v1.StreamData) ViewModel {
	if d == nil {
		return vm
	}

	if d.RoverPosition != nil {
		vm = moveTo(vm, *d.RoverPosition)
	}
	if d.CurrentStep != nil {
		vm.CurrentStep = *d.CurrentStep
	}
	if d.TotalSteps != nil {
		vm.TotalSteps = *d.TotalSteps
	}
	if d.StepsCompleted != nil {
		vm.StepsCompleted = *d.StepsCompleted
	}
	if len(d.AgentStates) > 0 {
		states := maps.Clone(vm.AgentStates)
		if states == nil {
			states = make(map[v1.AgentType]v1.AgentStatus, len(d.AgentStates))
		}
		maps.Copy(states, d.AgentStates)
		vm.AgentStates = states
	}
	return vm
}

// moveTo records p as the rover position and appends it to the path unless
// it equals the last waypoint.
func moveTo(vm ViewModel, p v1.Position) ViewModel {
	vm.RoverPosition = &p
	if last, ok := vm.LastWaypoint(); ok && last == p {
		return vm
	}
	vm.Path = append(slices.Clip(vm.Path), p)
	return vm
}

// messageLogs returns the log lines carried by a log message: the logs
// array, or the single line form in data.message.
func messageLogs(msg *v1.StreamMessage) []v1.MissionLog {
	d := msg.Data
	if d == nil {
		return nil
	}
	if len(d.Logs) > 0 {
		return d.Logs
	}
	if d.Message == "" {
		return nil
	}
	return []v1.MissionLog{{
		MissionID: msg.MissionID,
		Timestamp: msg.Timestamp,
		AgentType: d.Agent,
		Message:   d.Message,
		Level:     d.Level,
	}}
}

func appendLogs(vm ViewModel, missionID string, logs []v1.MissionLog) (ViewModel, int) {
	if len(logs) == 0 {
		return vm, 0
	}

	var seen map[string]struct{}
	dropped := 0
	for _, l := range logs {
		e := NewLogEntry(missionID, l)
		if vm.HasLog(e.ID) {
			dropped++
			continue
		}
		if _, dup := seen[e.ID]; dup {
			dropped++
			continue
		}
		if seen == nil {
			seen = maps.Clone(vm.seen)
			if seen == nil {
				seen = make(map[string]struct{}, len(logs))
			}
			vm.Logs = slices.Clip(vm.Logs)
		}
		seen[e.ID] = struct{}{}
		vm.Logs = append(vm.Logs, e)
	}
	if seen != nil {
		vm.seen = seen
	}
	return vm, dropped
}

// appendEntry records an entry produced by the client itself.
func appendEntry(vm ViewModel, e LogEntry) (ViewModel, bool) {
	if e.ID == "" || vm.HasLog(e.ID) {
		return vm, false
	}
	seen := maps.Clone(vm.seen)
	if seen == nil {
		seen = make(map[string]struct{}, 1)
	}
	seen[e.ID] = struct{}{}
	vm.seen = seen
	vm.Logs = append(slices.Clip(vm.Logs), e)
	return vm, true
}
