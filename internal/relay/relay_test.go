package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/mqtt/topic"
)

type published struct {
	topic   string
	qos     int
	retain  bool
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail bool
}

func (f *fakePublisher) Publish(_ context.Context, t string, qos int, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("not connected")
	}
	f.msgs = append(f.msgs, published{topic: t, qos: qos, retain: retain, payload: payload})
	return nil
}

func (f *fakePublisher) on(t string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, m := range f.msgs {
		if m.topic == t {
			out = append(out, m)
		}
	}
	return out
}

func startRelay(t *testing.T, pub Publisher) (*Relay, *mission.Reconciler) {
	t.Helper()

	r := New(pub, topic.NewBuilder("roverops/v1"))
	rec := mission.NewReconciler()
	detach := r.Attach(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		detach()
		cancel()
		<-done
	})
	return r, rec
}

func logMessage(ts, text string) *v1.StreamMessage {
	return &v1.StreamMessage{
		Type:      v1.StreamTypeLog,
		MissionID: "m-1",
		Data: &v1.StreamData{Logs: []v1.MissionLog{
			{MissionID: "m-1", Timestamp: ts, AgentType: v1.AgentRover, Message: text, Level: v1.LogLevelInfo},
		}},
	}
}

func TestRelayPublishesStateAndLogs(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	pub := &fakePublisher{}
	_, rec := startRelay(t, pub)

	rec.Reset("m-1", "Navigate to (4, 2)")
	rec.Apply(logMessage("2026-03-01T12:00:00.000000", "first"))
	rec.Apply(logMessage("2026-03-01T12:00:00.000000", "first"))
	rec.Apply(&v1.StreamMessage{Type: v1.StreamTypeUpdate, MissionID: "m-1", Data: &v1.StreamData{RoverPosition: &v1.Position{X: 3, Y: 2}}})
	rec.Apply(logMessage("2026-03-01T12:00:01.000000", "second"))

	const stateTopic = "roverops/v1/mission/m-1/state"
	const logTopic = "roverops/v1/mission/m-1/log"

	require.Eventually(t, func() bool { return len(pub.on(logTopic)) == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		states := pub.on(stateTopic)
		if len(states) == 0 {
			return false
		}
		var s State
		return json.Unmarshal(states[len(states)-1].payload, &s) == nil && s.LogCount == 2
	}, time.Second, time.Millisecond)

	states := pub.on(stateTopic)
	last := states[len(states)-1]
	assert.True(t, last.retain)
	assert.Equal(t, 1, last.qos)

	var s State
	require.NoError(t, json.Unmarshal(last.payload, &s))
	assert.Equal(t, "m-1", s.MissionID)
	assert.Equal(t, &v1.Position{X: 3, Y: 2}, s.RoverPosition)

	logs := pub.on(logTopic)
	assert.False(t, logs[0].retain)
	var first LogMessage
	require.NoError(t, json.Unmarshal(logs[0].payload, &first))
	assert.Equal(t, "m-1", first.MissionID)
	assert.Equal(t, "first", first.Message)
	assert.Equal(t, "m-1-2026-03-01T12:00:00.000000", first.ID)
}

func TestRelayRestartsLogsOnNewMission(t *testing.T) {
	pub := &fakePublisher{}
	_, rec := startRelay(t, pub)

	rec.Reset("m-1", "")
	rec.Apply(logMessage("2026-03-01T12:00:00.000000", "one"))
	require.Eventually(t, func() bool { return len(pub.on("roverops/v1/mission/m-1/log")) == 1 }, time.Second, time.Millisecond)

	rec.Reset("m-2", "")
	rec.Apply(&v1.StreamMessage{
		Type:      v1.StreamTypeLog,
		MissionID: "m-2",
		Data:      &v1.StreamData{Logs: []v1.MissionLog{{MissionID: "m-2", Timestamp: "t1", Message: "two"}}},
	})
	require.Eventually(t, func() bool { return len(pub.on("roverops/v1/mission/m-2/log")) == 1 }, time.Second, time.Millisecond)
}

func TestRelayRetriesLogsAfterFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	_, rec := startRelay(t, pub)

	rec.Reset("m-1", "")
	rec.Apply(logMessage("2026-03-01T12:00:00.000000", "one"))

	pub.mu.Lock()
	pub.fail = false
	pub.mu.Unlock()

	rec.Apply(logMessage("2026-03-01T12:00:01.000000", "two"))
	require.Eventually(t, func() bool { return len(pub.on("roverops/v1/mission/m-1/log")) == 2 }, time.Second, time.Millisecond)
}

func TestRelayFlushesNewestStateOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, topic.NewBuilder("roverops/v1"))
	rec := mission.NewReconciler()
	detach := r.Attach(rec)
	defer detach()

	rec.Reset("m-1", "")
	rec.Apply(logMessage("2026-03-01T12:00:00.000000", "one"))
	rec.Apply(&v1.StreamMessage{Type: v1.StreamTypeComplete, MissionID: "m-1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	states := pub.on("roverops/v1/mission/m-1/state")
	require.NotEmpty(t, states)
	var s State
	require.NoError(t, json.Unmarshal(states[len(states)-1].payload, &s))
	assert.Equal(t, v1.MissionStatusComplete, s.Status)
	assert.Len(t, pub.on("roverops/v1/mission/m-1/log"), 1)
}
