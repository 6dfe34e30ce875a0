package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

type recorder struct {
	mu   sync.Mutex
	msgs []*v1.StreamMessage
}

func (r *recorder) Broadcast(_ string, msg *v1.StreamMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) messages() []*v1.StreamMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*v1.StreamMessage(nil), r.msgs...)
}

func count(msgs []*v1.StreamMessage, typ string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func TestRunnerPlaysMission(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewStore(clock.RealClock{}, newRand(), 3)
	initial := store.Create("Navigate to (4, 3)")
	rec := &recorder{}
	r := NewRunner(store, rec, clock.RealClock{}, time.Microsecond)

	require.NoError(t, r.Run(context.Background(), initial.MissionID))

	msgs := rec.messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, v1.StreamTypeStatus, msgs[0].Type)
	assert.Equal(t, string(v1.MissionStatusPlanning), msgs[0].Status)
	assert.Equal(t, 3, count(msgs, v1.StreamTypeUpdate))
	assert.Equal(t, 16, count(msgs, v1.StreamTypeLog))

	last := msgs[len(msgs)-1]
	assert.Equal(t, v1.StreamTypeComplete, last.Type)
	assert.Equal(t, "Mission completed", last.Message)
	require.NotNil(t, last.Data)
	assert.Equal(t, 3, *last.Data.StepsCompleted)
	assert.Equal(t, 3, *last.Data.TotalSteps)

	st, ok := store.Get(initial.MissionID)
	require.True(t, ok)
	assert.Equal(t, v1.MissionStatusComplete, st.Status)
	assert.Equal(t, &v1.Position{X: 4, Y: 3}, st.RoverPosition)
	assert.Equal(t, 3, st.CurrentStep)
	for _, s := range st.Steps {
		assert.True(t, s.Completed, "step %d", s.StepNumber)
	}
	for a, s := range st.AgentStates {
		assert.Equal(t, v1.AgentStatusComplete, s, "agent %s", a)
	}
	require.Len(t, st.Logs, 16)
	for i := 1; i < len(st.Logs); i++ {
		assert.Less(t, st.Logs[i-1].Timestamp, st.Logs[i].Timestamp)
	}
}

func TestRunnerStreamReconciles(t *testing.T) {
	store := NewStore(clock.RealClock{}, newRand(), 0)
	initial := store.Create("Navigate to (4, 3)")
	rec := &recorder{}
	r := NewRunner(store, rec, clock.RealClock{}, time.Microsecond)
	require.NoError(t, r.Run(context.Background(), initial.MissionID))

	vm := mission.Seed(mission.New(initial.MissionID, initial.Goal), initial)
	for _, msg := range rec.messages() {
		vm = mission.Reduce(vm, msg)
	}

	assert.Equal(t, v1.MissionStatusComplete, vm.Status)
	assert.Equal(t, []v1.Position{{X: 2, Y: 2}, {X: 3, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 3}}, vm.Path)
	assert.Equal(t, 3, vm.StepsCompleted)
	assert.Len(t, vm.Logs, 16)
	assert.Equal(t, "Mission received. Analyzing goal...", vm.Logs[0].Message)
	assert.Equal(t, v1.AgentPlanner, vm.Logs[0].Agent)
}

func TestRunnerAbort(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := testingclock.NewFakeClock(epoch)
	store := NewStore(clk, newRand(), 0)
	id := store.Create("(4, 2)").MissionID
	rec := &recorder{}
	r := NewRunner(store, rec, clk, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, id)
	require.ErrorIs(t, err, context.Canceled)

	st, _ := store.Get(id)
	assert.Equal(t, v1.MissionStatusAborted, st.Status)

	msgs := rec.messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, v1.StreamTypeStatus, last.Type)
	assert.Equal(t, string(v1.MissionStatusAborted), last.Status)
}

func TestRunnerUnknownMission(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(NewStore(clock.RealClock{}, newRand(), 0), rec, clock.RealClock{}, time.Microsecond)

	err := r.Run(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, v1.StreamTypeError, msgs[0].Type)
	assert.Equal(t, "Mission not found", msgs[0].Message)
}

func TestRunnerStopCancelsScheduled(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := testingclock.NewFakeClock(epoch)
	store := NewStore(clk, newRand(), 0)
	id := store.Create("(4, 2)").MissionID
	rec := &recorder{}
	r := NewRunner(store, rec, clk, time.Second)

	r.StartAfter(id, time.Hour)
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	r.Stop()

	st, _ := store.Get(id)
	assert.Equal(t, v1.MissionStatusPending, st.Status)
	assert.Empty(t, rec.messages())
}
