package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

func entry(id, msg string, level v1.LogLevel) mission.LogEntry {
	return mission.LogEntry{ID: id, Timestamp: "2026-03-01T12:00:05.123456", Agent: v1.AgentRover, Message: msg, Level: level}
}

func TestRenderGrid(t *testing.T) {
	vm := mission.New("m-1", "")
	vm.Path = []v1.Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	vm.RoverPosition = &v1.Position{X: 1, Y: 1}
	vm.Obstacles = []v1.Position{{X: 0, Y: 1}}
	vm.GoalPositions = []v1.Position{{X: 2, Y: 2}}

	rows := strings.Split(strings.TrimSuffix(RenderGrid(vm), "\n"), "\n")
	require.Len(t, rows, DefaultGridSize)
	assert.True(t, strings.HasPrefix(rows[0], "* * . "))
	assert.True(t, strings.HasPrefix(rows[1], "# R . "))
	assert.True(t, strings.HasPrefix(rows[2], ". . G "))
	assert.Len(t, rows[0], DefaultGridSize*2-1)
}

func TestRenderGridGrows(t *testing.T) {
	vm := mission.New("m-1", "")
	vm.RoverPosition = &v1.Position{X: 24, Y: 3}

	rows := strings.Split(strings.TrimSuffix(RenderGrid(vm), "\n"), "\n")
	require.Len(t, rows, 25)
	assert.True(t, strings.HasSuffix(rows[3], "R"))
}

func TestRendererIncremental(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	vm := mission.New("m-1", "Navigate to (3, 2)")
	vm.Logs = []mission.LogEntry{entry("a", "Mission received", v1.LogLevelInfo)}
	r.Render(vm)

	out := buf.String()
	assert.Contains(t, out, "Mission m-1 Navigate to (3, 2)")
	assert.Contains(t, out, "[pending] step 0/0")
	assert.Contains(t, out, "12:00:05 info    rover      Mission received")

	buf.Reset()
	r.Render(vm)
	assert.Empty(t, buf.String(), "nothing changed")

	vm.Status = v1.MissionStatusExecuting
	vm.CurrentStep = 1
	vm.TotalSteps = 1
	vm.RoverPosition = &v1.Position{X: 3, Y: 2}
	vm.Logs = append(vm.Logs, entry("b", "Moving", v1.LogLevelSuccess))
	r.Render(vm)
	out = buf.String()
	assert.Contains(t, out, "[executing] step 1/1 at (3, 2)")
	assert.Contains(t, out, "Moving")
	assert.NotContains(t, out, "Mission received")
}

func TestRendererSummaryOnce(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, WithGrid(true))

	vm := mission.New("m-1", "Navigate to (3, 2)")
	vm.Status = v1.MissionStatusComplete
	vm.StepsCompleted = 1
	vm.TotalSteps = 1
	vm.RoverPosition = &v1.Position{X: 3, Y: 2}
	vm.Path = []v1.Position{{X: 2, Y: 2}, {X: 3, Y: 2}}
	vm.AgentStates = map[v1.AgentType]v1.AgentStatus{v1.AgentRover: v1.AgentStatusComplete, v1.AgentPlanner: v1.AgentStatusComplete}
	r.Render(vm)

	out := buf.String()
	assert.Regexp(t, `STATUS:\s+complete`, out)
	assert.Regexp(t, `STEPS:\s+1/1`, out)
	assert.Regexp(t, `POSITION:\s+\(3, 2\)`, out)
	assert.Regexp(t, `planner\s+complete`, out)
	assert.Less(t, strings.Index(out, "planner"), strings.LastIndex(out, "rover"))
	assert.Contains(t, out, ". . * R .")

	buf.Reset()
	r.Render(vm)
	assert.Empty(t, buf.String())
}

func TestRendererNewMission(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	first := mission.New("m-1", "")
	first.Logs = []mission.LogEntry{entry("a", "one", v1.LogLevelInfo), entry("b", "two", v1.LogLevelInfo)}
	r.Render(first)

	buf.Reset()
	second := mission.New("m-2", "")
	second.Logs = []mission.LogEntry{entry("c", "three", v1.LogLevelError)}
	r.Render(second)

	out := buf.String()
	assert.Contains(t, out, "Mission m-2")
	assert.Contains(t, out, "three")
}

func TestAgentTableEmpty(t *testing.T) {
	assert.Empty(t, AgentTable(mission.New("m-1", "")))
}
