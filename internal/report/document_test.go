package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

var generated = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func viewModel(steps, logs int) mission.ViewModel {
	vm := mission.New("3f2a9c1e-5b7d-4e8f-9a0b-1c2d3e4f5a6b", "Navigate to (9, 2)")
	vm.Status = v1.MissionStatusComplete
	vm.RoverPosition = &v1.Position{X: 9, Y: 2}
	vm.Path = []v1.Position{{X: 2, Y: 2}, {X: 9, Y: 2}}
	vm.TotalSteps = steps
	vm.StepsCompleted = steps
	vm.AgentStates = map[v1.AgentType]v1.AgentStatus{v1.AgentRover: v1.AgentStatusComplete}
	for i := range steps {
		vm.Steps = append(vm.Steps, v1.MissionStep{
			StepNumber:     i + 1,
			Action:         "move",
			Description:    fmt.Sprintf("Move to (%d, 2)", i+3),
			TargetPosition: &v1.Position{X: i + 3, Y: 2},
			Completed:      true,
		})
	}
	for i := range logs {
		vm.Logs = append(vm.Logs, mission.LogEntry{
			ID:        fmt.Sprintf("log-%d", i),
			Timestamp: fmt.Sprintf("2026-03-01T12:00:%02d.000000", i),
			Agent:     v1.AgentRover,
			Message:   fmt.Sprintf("line %d", i),
			Level:     v1.LogLevelInfo,
		})
	}
	return vm
}

func TestBuildCapsStepsAndLogs(t *testing.T) {
	doc, err := Build(viewModel(7, 14), nil, generated)
	require.NoError(t, err)

	require.Len(t, doc.Steps, MaxSteps)
	assert.Equal(t, 1, doc.Steps[0].Number)
	assert.Equal(t, 5, doc.Steps[4].Number)
	assert.Equal(t, 2, doc.OmittedSteps)

	require.Len(t, doc.Logs, MaxLogs)
	assert.Equal(t, "line 4", doc.Logs[0].Message)
	assert.Equal(t, "line 13", doc.Logs[9].Message)
	assert.Equal(t, 4, doc.OmittedLogs)

	assert.Equal(t, 7, doc.StepsCompleted)
	assert.Equal(t, 2, doc.Waypoints)
	assert.Equal(t, generated, doc.GeneratedAt)
}

func TestBuildShortMission(t *testing.T) {
	doc, err := Build(viewModel(2, 3), nil, generated)
	require.NoError(t, err)
	assert.Len(t, doc.Steps, 2)
	assert.Len(t, doc.Logs, 3)
	assert.Zero(t, doc.OmittedSteps)
	assert.Zero(t, doc.OmittedLogs)
}

func TestBuildMergesBackendReport(t *testing.T) {
	vm := mission.New("m-1", "")
	rep := &v1.MissionReport{
		MissionID:          "m-1",
		Goal:               "Navigate to (4, 4)",
		RoverFinalPosition: &v1.Position{X: 4, Y: 4},
		StepsCompleted:     4,
		TotalSteps:         4,
		MissionPhotos:      []v1.MissionPhoto{{ID: 1, URL: "https://example.com/1.jpg", Camera: "MAST", Sol: 1000}},
		AstronomyPicture:   &v1.AstronomyPicture{Title: "Orion"},
	}

	doc, err := Build(vm, rep, generated)
	require.NoError(t, err)
	assert.Equal(t, "Navigate to (4, 4)", doc.Goal)
	assert.Equal(t, &v1.Position{X: 4, Y: 4}, doc.FinalPosition)
	assert.Equal(t, 4, doc.TotalSteps)
	assert.Equal(t, 4, doc.StepsCompleted)
	assert.Len(t, doc.Photos, 1)
	assert.Equal(t, "Orion", doc.Picture.Title)

	rep.MissionID = "other"
	doc, err = Build(vm, rep, generated)
	require.NoError(t, err)
	assert.Empty(t, doc.Goal)
	assert.Nil(t, doc.Photos)
}

func TestBuildWithoutMission(t *testing.T) {
	_, err := Build(mission.ViewModel{}, nil, generated)
	assert.ErrorIs(t, err, ErrNoMission)
}
