package simulator

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestTarget(t *testing.T) {
	tests := []struct {
		goal string
		want v1.Position
	}{
		{goal: "Navigate to (10, 10)", want: v1.Position{X: 10, Y: 10}},
		{goal: "go to (4,7) then back", want: v1.Position{X: 4, Y: 7}},
		{goal: "far away (25, 3)", want: v1.Position{X: 19, Y: 3}},
		{goal: "(99999999999999999999, 0)", want: v1.Position{X: 19, Y: 0}},
		{goal: "first (1, 1) then (8, 8)", want: v1.Position{X: 1, Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			assert.Equal(t, tt.want, Target(tt.goal, newRand()))
		})
	}
}

func TestTargetRandom(t *testing.T) {
	rng := newRand()
	for range 200 {
		p := Target("explore the crater", rng)
		assert.GreaterOrEqual(t, p.X, 5)
		assert.LessOrEqual(t, p.X, 19)
		assert.GreaterOrEqual(t, p.Y, 5)
		assert.LessOrEqual(t, p.Y, 19)
	}
}

func TestGeneratePath(t *testing.T) {
	path := GeneratePath("Navigate to (5, 4)", newRand())
	assert.Equal(t, []v1.Position{
		{X: 2, Y: 2}, {X: 3, Y: 2}, {X: 4, Y: 2}, {X: 5, Y: 2}, {X: 5, Y: 3}, {X: 5, Y: 4},
	}, path)

	path = GeneratePath("back to (0, 1)", newRand())
	assert.Equal(t, []v1.Position{{X: 2, Y: 2}, {X: 1, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 1}}, path)
}

func TestGeneratePathUnitSteps(t *testing.T) {
	path := GeneratePath("somewhere", newRand())
	require.NotEmpty(t, path)
	assert.Equal(t, Start, path[0])

	for i := 1; i < len(path); i++ {
		dx := abs(path[i].X - path[i-1].X)
		dy := abs(path[i].Y - path[i-1].Y)
		assert.Equal(t, 1, dx+dy, "step %d", i)
	}
}

func TestGeneratePathAtStart(t *testing.T) {
	assert.Equal(t, []v1.Position{Start}, GeneratePath("stay at (2, 2)", newRand()))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
