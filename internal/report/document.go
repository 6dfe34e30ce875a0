// Package report turns a mission view model into an exportable document and
// renders it as Markdown, HTML or JSON.
package report

import (
	"errors"
	"time"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

const (
	// MaxSteps is the number of leading steps a document keeps.
	MaxSteps = 5
	// MaxLogs is the number of trailing log entries a document keeps.
	MaxLogs = 10
)

// ErrNoMission is returned by Build for a view model without a mission.
var ErrNoMission = errors.New("report: view model has no mission")

// Step is one mission step as shown in a document.
type Step struct {
	Number      int          `json:"number"`
	Action      string       `json:"action"`
	Description string       `json:"description,omitempty"`
	Target      *v1.Position `json:"target,omitempty"`
	Completed   bool         `json:"completed"`
}

// Document is the exported summary of one mission.
type Document struct {
	MissionID      string                          `json:"mission_id"`
	Goal           string                          `json:"goal"`
	Status         v1.MissionStatus                `json:"status"`
	GeneratedAt    time.Time                       `json:"generated_at"`
	FinalPosition  *v1.Position                    `json:"final_position,omitempty"`
	Waypoints      int                             `json:"waypoints"`
	StepsCompleted int                             `json:"steps_completed"`
	TotalSteps     int                             `json:"total_steps"`
	Steps          []Step                          `json:"steps"`
	OmittedSteps   int                             `json:"omitted_steps,omitempty"`
	Agents         map[v1.AgentType]v1.AgentStatus `json:"agents,omitempty"`
	Logs           []mission.LogEntry              `json:"logs"`
	OmittedLogs    int                             `json:"omitted_logs,omitempty"`
	Photos         []v1.MissionPhoto               `json:"photos,omitempty"`
	Picture        *v1.AstronomyPicture            `json:"astronomy_picture,omitempty"`
}

// Build summarizes vm: the first MaxSteps steps and the last MaxLogs log
// entries. rep, the backend's report, is optional and contributes photos
// and counters the view model lacks.
func Build(vm mission.ViewModel, rep *v1.MissionReport, now time.Time) (*Document, error) {
	if vm.MissionID == "" {
		return nil, ErrNoMission
	}

	doc := &Document{
		MissionID:      vm.MissionID,
		Goal:           vm.Goal,
		Status:         vm.Status,
		GeneratedAt:    now.UTC(),
		FinalPosition:  vm.RoverPosition,
		Waypoints:      len(vm.Path),
		StepsCompleted: vm.StepsCompleted,
		TotalSteps:     vm.TotalSteps,
		Agents:         vm.AgentStates,
	}

	steps := vm.Steps
	if len(steps) > MaxSteps {
		doc.OmittedSteps = len(steps) - MaxSteps
		steps = steps[:MaxSteps]
	}
	doc.Steps = make([]Step, 0, len(steps))
	for _, s := range steps {
		doc.Steps = append(doc.Steps, Step{
			Number:      s.StepNumber,
			Action:      s.Action,
			Description: s.Description,
			Target:      s.TargetPosition,
			Completed:   s.Completed,
		})
	}

	logs := vm.Logs
	if len(logs) > MaxLogs {
		doc.OmittedLogs = len(logs) - MaxLogs
		logs = logs[len(logs)-MaxLogs:]
	}
	doc.Logs = append([]mission.LogEntry{}, logs...)

	if rep != nil && (rep.MissionID == "" || rep.MissionID == vm.MissionID) {
		if doc.Goal == "" {
			doc.Goal = rep.Goal
		}
		if doc.FinalPosition == nil {
			doc.FinalPosition = rep.RoverFinalPosition
		}
		if doc.TotalSteps == 0 {
			doc.TotalSteps = rep.TotalSteps
		}
		doc.StepsCompleted = max(doc.StepsCompleted, rep.StepsCompleted)
		doc.Photos = rep.MissionPhotos
		doc.Picture = rep.AstronomyPicture
	}

	return doc, nil
}
