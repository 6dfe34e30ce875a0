package console

import (
	"strings"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

// DefaultGridSize is the smallest grid RenderGrid draws.
const DefaultGridSize = 20

// Grid cells, from lowest to highest precedence.
const (
	cellEmpty    = '.'
	cellPath     = '*'
	cellObstacle = '#'
	cellGoal     = 'G'
	cellRover    = 'R'
)

// RenderGrid draws the mission grid with y growing downwards: the path, the
// obstacles, the goals and the rover. The grid grows past DefaultGridSize
// to fit every known position.
func RenderGrid(vm mission.ViewModel) string {
	size := DefaultGridSize
	fit := func(ps ...v1.Position) {
		for _, p := range ps {
			size = max(size, p.X+1, p.Y+1)
		}
	}
	fit(vm.Path...)
	fit(vm.Obstacles...)
	fit(vm.GoalPositions...)
	if vm.RoverPosition != nil {
		fit(*vm.RoverPosition)
	}

	cells := make([][]byte, size)
	for y := range cells {
		cells[y] = []byte(strings.Repeat(string(cellEmpty), size))
	}
	mark := func(c byte, ps ...v1.Position) {
		for _, p := range ps {
			if p.X >= 0 && p.Y >= 0 {
				cells[p.Y][p.X] = c
			}
		}
	}
	mark(cellPath, vm.Path...)
	mark(cellObstacle, vm.Obstacles...)
	mark(cellGoal, vm.GoalPositions...)
	if vm.RoverPosition != nil {
		mark(cellRover, *vm.RoverPosition)
	}

	var b strings.Builder
	for _, row := range cells {
		for x, c := range row {
			if x > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
