package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"roverops/v1/mission/m-1/state", "roverops/v1/mission/m-1/state", true},
		{"roverops/v1/mission/+/state", "roverops/v1/mission/m-1/state", true},
		{"roverops/v1/mission/+/state", "roverops/v1/mission/m-1/log", false},
		{"roverops/v1/#", "roverops/v1/mission/m-1/log", true},
		{"roverops/v1/#", "roverops/v1", true},
		{"roverops/v1/mission/+", "roverops/v1/mission/m-1/log", false},
		{"roverops/v1/mission/m-1/state/+", "roverops/v1/mission/m-1/state", false},
		{"roverops/v1/mission/m-1", "roverops/v1/mission/m-2", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, matchTopic(tt.filter, tt.topic))
		})
	}
}

func TestDispatchRoutesMatchingFilters(t *testing.T) {
	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	require.NoError(t, err)
	mc := c.(*client)

	got := make(chan string, 2)
	mc.routes["roverops/v1/mission/+/log"] = route{handler: func(_ context.Context, topic string, _ []byte) { got <- topic }}
	mc.routes["roverops/v1/mission/+/state"] = route{handler: func(context.Context, string, []byte) { got <- "state" }}

	handled, err := mc.dispatch(paho.PublishReceived{Packet: &paho.Publish{Topic: "roverops/v1/mission/m-1/log"}})
	require.NoError(t, err)
	assert.True(t, handled)

	select {
	case topic := <-got:
		assert.Equal(t, "roverops/v1/mission/m-1/log", topic)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	assert.Never(t, func() bool { return len(got) > 0 }, 20*time.Millisecond, time.Millisecond)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "localhost"})
	require.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	require.NoError(t, err)

	mc := c.(*client)
	assert.EqualValues(t, 60, mc.cfg.KeepAlive)
	assert.NotZero(t, mc.cfg.ConnectTimeout)
	assert.ErrorIs(t, c.Publish(t.Context(), "x", 1, false, nil), errNotStarted)
	assert.ErrorIs(t, c.Subscribe(t.Context(), "x", 1, nil), errNotStarted)
	assert.ErrorIs(t, c.AwaitConnection(t.Context()), errNotStarted)
}
