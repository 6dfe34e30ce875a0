// Package v1 contains the wire types exchanged with the RoverOps mission
// backend over REST and the mission stream.
package v1

// MissionStatus is the lifecycle phase of a mission.
type MissionStatus string

const (
	MissionStatusPending   MissionStatus = "pending"
	MissionStatusPlanning  MissionStatus = "planning"
	MissionStatusExecuting MissionStatus = "executing"
	MissionStatusComplete  MissionStatus = "complete"
	MissionStatusAborted   MissionStatus = "aborted"
	MissionStatusError     MissionStatus = "error"
)

// Valid reports whether s is one of the known mission phases.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusPending, MissionStatusPlanning, MissionStatusExecuting,
		MissionStatusComplete, MissionStatusAborted, MissionStatusError:
		return true
	}
	return false
}

// Terminal reports whether no further progress is expected once a mission
// reaches s.
func (s MissionStatus) Terminal() bool {
	return s == MissionStatusComplete || s == MissionStatusAborted || s == MissionStatusError
}

// AgentType names one of the backend's cooperating agents.
type AgentType string

const (
	AgentPlanner    AgentType = "planner"
	AgentRover      AgentType = "rover"
	AgentSafety     AgentType = "safety"
	AgentReporter   AgentType = "reporter"
	AgentSupervisor AgentType = "supervisor"
	AgentSystem     AgentType = "system"
)

// AgentStatus is the activity reported for a single agent.
type AgentStatus string

const (
	AgentStatusIdle       AgentStatus = "idle"
	AgentStatusPlanning   AgentStatus = "planning"
	AgentStatusExecuting  AgentStatus = "executing"
	AgentStatusValidating AgentStatus = "validating"
	AgentStatusReporting  AgentStatus = "reporting"
	AgentStatusComplete   AgentStatus = "complete"
	AgentStatusError      AgentStatus = "error"
)

// LogLevel classifies a mission log line.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// Position is a cell on the rover grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MissionStep is one planned action of a mission.
type MissionStep struct {
	StepNumber     int       `json:"step_number"`
	Action         string    `json:"action"`
	TargetPosition *Position `json:"target_position,omitempty"`
	Description    string    `json:"description"`
	Completed      bool      `json:"completed"`
	NasaImageURL   string    `json:"nasa_image_url,omitempty"`
}

// MissionLog is a log line as emitted by the backend.
type MissionLog struct {
	MissionID string         `json:"mission_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	AgentType AgentType      `json:"agent_type,omitempty"`
	Message   string         `json:"message"`
	Level     LogLevel       `json:"level,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// MissionState is the full server-side state of one mission.
type MissionState struct {
	MissionID     string                    `json:"mission_id"`
	Goal          string                    `json:"goal"`
	Status        MissionStatus             `json:"status"`
	CurrentStep   int                       `json:"current_step"`
	RoverPosition *Position                 `json:"rover_position,omitempty"`
	Obstacles     []Position                `json:"obstacles"`
	GoalPositions []Position                `json:"goal_positions"`
	Steps         []MissionStep             `json:"steps"`
	Logs          []MissionLog              `json:"logs"`
	AgentStates   map[AgentType]AgentStatus `json:"agent_states,omitempty"`
	NasaImages    []string                  `json:"nasa_images,omitempty"`
	WeatherData   map[string]any            `json:"weather_data,omitempty"`
	CreatedAt     string                    `json:"created_at,omitempty"`
	UpdatedAt     string                    `json:"updated_at,omitempty"`
}

// StartMissionRequest is the body of POST /api/mission/start.
type StartMissionRequest struct {
	Goal string `json:"goal"`
}

// StartMissionResponse is returned by POST /api/mission/start.
type StartMissionResponse struct {
	MissionID string `json:"mission_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// MissionStatusResponse is returned by GET /api/mission/{id}.
type MissionStatusResponse struct {
	MissionID string        `json:"mission_id"`
	Status    MissionStatus `json:"status"`
	State     *MissionState `json:"state"`
}

// MissionPhoto is a rover image attached to a report.
type MissionPhoto struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	ImgSrc string `json:"img_src,omitempty"`
	Camera string `json:"camera,omitempty"`
	Sol    int    `json:"sol,omitempty"`
}

// AstronomyPicture is the picture-of-the-day summary embedded in a report.
type AstronomyPicture struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Explanation string `json:"explanation"`
	ImageURL    string `json:"image_url"`
	Copyright   string `json:"copyright"`
}

// ReportLog is the flattened log line form used in reports.
type ReportLog struct {
	Timestamp string   `json:"timestamp"`
	Agent     string   `json:"agent"`
	Message   string   `json:"message"`
	Level     LogLevel `json:"level"`
}

// MissionReport is returned by GET /api/mission/{id}/report.
type MissionReport struct {
	MissionID          string            `json:"mission_id"`
	Goal               string            `json:"goal"`
	Status             MissionStatus     `json:"status"`
	RoverFinalPosition *Position         `json:"rover_final_position,omitempty"`
	StepsCompleted     int               `json:"steps_completed"`
	TotalSteps         int               `json:"total_steps"`
	CollectedData      []map[string]any  `json:"collected_data,omitempty"`
	MissionPhotos      []MissionPhoto    `json:"mission_photos,omitempty"`
	AstronomyPicture   *AstronomyPicture `json:"astronomy_picture_of_the_day,omitempty"`
	Logs               []ReportLog       `json:"logs,omitempty"`
}

// APOD is the free-form picture-of-the-day metadata served by /api/apod.
type APOD map[string]any

// ScheduleTimeLayout is the layout of ScheduleMissionRequest.ScheduledTime.
const ScheduleTimeLayout = "2006-01-02T15:04:05"

// ScheduleMissionRequest is the body of POST /api/mission/schedule.
// ScheduledTime is local wall-clock time without a zone.
type ScheduleMissionRequest struct {
	Goal          string `json:"goal"`
	ScheduledTime string `json:"scheduled_time"`
}

// ScheduleMissionResponse is returned by POST /api/mission/schedule.
type ScheduleMissionResponse struct {
	MissionID     string  `json:"mission_id"`
	Status        string  `json:"status"`
	ScheduledTime string  `json:"scheduled_time"`
	Message       string  `json:"message"`
	DelaySeconds  float64 `json:"delay_seconds"`
}
