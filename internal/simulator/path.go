// Package simulator is an in-memory stand-in for the mission backend: it
// plans a grid walk for a goal, plays a scripted agent conversation over
// the mission stream and serves the REST API.
package simulator

import (
	"math/rand/v2"
	"regexp"
	"strconv"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

// GridSize is the width and height of the square mission grid.
const GridSize = 20

// Start is where every rover begins.
var Start = v1.Position{X: 2, Y: 2}

var coordPattern = regexp.MustCompile(`\((\d+),\s*(\d+)\)`)

// Target returns the cell named by the first "(x, y)" in goal, clamped to
// the grid. Without one it picks a random cell with both coordinates in
// [5, 19].
func Target(goal string, rng *rand.Rand) v1.Position {
	if m := coordPattern.FindStringSubmatch(goal); m != nil {
		return v1.Position{X: clampCoord(m[1]), Y: clampCoord(m[2])}
	}
	return v1.Position{X: rng.IntN(15) + 5, Y: rng.IntN(15) + 5}
}

// GeneratePath walks from Start to the goal's target: horizontally first,
// then vertically, one cell per step. The first element is Start.
func GeneratePath(goal string, rng *rand.Rand) []v1.Position {
	target := Target(goal, rng)

	cur := Start
	path := []v1.Position{cur}
	for cur.X != target.X {
		cur.X += step(cur.X, target.X)
		path = append(path, cur)
	}
	for cur.Y != target.Y {
		cur.Y += step(cur.Y, target.Y)
		path = append(path, cur)
	}
	return path
}

func step(from, to int) int {
	if from < to {
		return 1
	}
	return -1
}

func clampCoord(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n > GridSize-1 {
		// Only overflow fails: the pattern admits digits only.
		return GridSize - 1
	}
	return max(n, 0)
}
