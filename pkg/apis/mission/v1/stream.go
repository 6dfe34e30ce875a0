package v1

// Stream message types. "message" is not a wire type; the stream client uses
// it to address every inbound message.
const (
	StreamTypeStatus   = "status"
	StreamTypeUpdate   = "update"
	StreamTypeLog      = "log"
	StreamTypeComplete = "complete"
	StreamTypeError    = "error"
	StreamTypePong     = "pong"
	StreamTypePing     = "ping"
)

// StreamMessage is one JSON frame received on /ws/mission/{id}.
type StreamMessage struct {
	Type      string      `json:"type"`
	MissionID string      `json:"mission_id,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Status    string      `json:"status,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      *StreamData `json:"data,omitempty"`
}

// StreamData is the optional partial-state payload of a StreamMessage.
// Pointer and nil-able fields distinguish "absent" from a zero value: an
// absent field never clears existing state.
type StreamData struct {
	RoverPosition  *Position                 `json:"rover_position,omitempty"`
	CurrentStep    *int                      `json:"current_step,omitempty"`
	TotalSteps     *int                      `json:"total_steps,omitempty"`
	StepsCompleted *int                      `json:"steps_completed,omitempty"`
	AgentStates    map[AgentType]AgentStatus `json:"agent_states,omitempty"`
	Logs           []MissionLog              `json:"logs,omitempty"`
	Status         string                    `json:"status,omitempty"`

	// Single log line form used by some log messages.
	Message string    `json:"message,omitempty"`
	Level   LogLevel  `json:"level,omitempty"`
	Agent   AgentType `json:"agent,omitempty"`
}

// PingMessage is the keepalive frame the backend answers with a pong.
type PingMessage struct {
	Type string `json:"type"`
}
