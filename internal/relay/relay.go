// Package relay publishes mission view model changes to an MQTT broker:
// the retained state of each mission and every new log entry.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/roverops/missionctl/internal/metrics"
	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/mqtt/topic"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
	queueSize      = 64
)

// Publisher is the part of the MQTT client the relay uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error
}

// State is the retained payload of {root}/mission/{id}/state.
type State struct {
	MissionID      string                          `json:"mission_id"`
	Goal           string                          `json:"goal"`
	Status         v1.MissionStatus                `json:"status"`
	RoverPosition  *v1.Position                    `json:"rover_position,omitempty"`
	Path           []v1.Position                   `json:"path"`
	Obstacles      []v1.Position                   `json:"obstacles"`
	GoalPositions  []v1.Position                   `json:"goal_positions"`
	CurrentStep    int                             `json:"current_step"`
	TotalSteps     int                             `json:"total_steps"`
	StepsCompleted int                             `json:"steps_completed"`
	AgentStates    map[v1.AgentType]v1.AgentStatus `json:"agent_states"`
	LogCount       int                             `json:"log_count"`
}

// LogMessage is the payload of {root}/mission/{id}/log.
type LogMessage struct {
	MissionID string `json:"mission_id"`
	mission.LogEntry
}

// Relay forwards view models to a Publisher. Changes are queued by Attach
// and published by Run; when the queue is full the newest view model still
// carries every log entry, so only intermediate states are lost.
type Relay struct {
	pub    Publisher
	topics *topic.Builder
	queue  chan mission.ViewModel

	// Owned by Run.
	missionID string
	sentLogs  int
}

// New creates a Relay publishing under the topics of b.
func New(pub Publisher, b *topic.Builder) *Relay {
	return &Relay{
		pub:    pub,
		topics: b,
		queue:  make(chan mission.ViewModel, queueSize),
	}
}

// Attach queues every change of rec. The returned func stops it.
func (r *Relay) Attach(rec *mission.Reconciler) (detach func()) {
	return rec.Subscribe(r.enqueue)
}

func (r *Relay) enqueue(vm mission.ViewModel) {
	select {
	case r.queue <- vm:
	default:
		metrics.RelayPublishTotal.WithLabelValues(topic.SuffixState, "dropped").Inc()
		log.Debug("Relay queue full, skipping state", "missionID", vm.MissionID)
	}
}

// Run publishes queued view models until ctx is done. The newest view
// model still queued at that point is published before Run returns.
func (r *Relay) Run(ctx context.Context) error {
	log.Info("Mission relay started")
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case vm := <-r.queue:
			r.publish(ctx, vm)
		}
	}
}

func (r *Relay) flush() {
	var last *mission.ViewModel
	for {
		select {
		case vm := <-r.queue:
			last = &vm
		default:
			if last != nil {
				r.publish(context.Background(), *last)
			}
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, vm mission.ViewModel) {
	if vm.MissionID == "" {
		return
	}
	if vm.MissionID != r.missionID || len(vm.Logs) < r.sentLogs {
		r.missionID = vm.MissionID
		r.sentLogs = 0
	}

	r.send(ctx, topic.SuffixState, r.topics.MissionState(vm.MissionID), true, stateOf(vm))

	for _, e := range vm.Logs[r.sentLogs:] {
		if !r.send(ctx, topic.SuffixLog, r.topics.MissionLog(vm.MissionID), false, LogMessage{MissionID: vm.MissionID, LogEntry: e}) {
			return
		}
		r.sentLogs++
	}
}

func (r *Relay) send(ctx context.Context, kind, t string, retain bool, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error(err, "Failed to encode relay payload", "topic", t)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.pub.Publish(ctx, t, qosAtLeastOnce, retain, payload); err != nil {
		metrics.RelayPublishTotal.WithLabelValues(kind, "error").Inc()
		log.Warn("Failed to publish mission update", "topic", t, "err", err)
		return false
	}
	metrics.RelayPublishTotal.WithLabelValues(kind, "ok").Inc()
	return true
}

func stateOf(vm mission.ViewModel) State {
	return State{
		MissionID:      vm.MissionID,
		Goal:           vm.Goal,
		Status:         vm.Status,
		RoverPosition:  vm.RoverPosition,
		Path:           vm.Path,
		Obstacles:      vm.Obstacles,
		GoalPositions:  vm.GoalPositions,
		CurrentStep:    vm.CurrentStep,
		TotalSteps:     vm.TotalSteps,
		StepsCompleted: vm.StepsCompleted,
		AgentStates:    vm.AgentStates,
		LogCount:       len(vm.Logs),
	}
}
