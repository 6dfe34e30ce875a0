package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreNoTransition(t *testing.T) {
	m := fsm.NewFSM("idle",
		fsm.Events{{Name: "reset", Src: []string{"idle", "open"}, Dst: "idle"}},
		fsm.Callbacks{},
	)

	err := m.Event(context.Background(), "reset")
	require.Error(t, err)
	assert.NoError(t, IgnoreNoTransition(err))

	other := errors.New("boom")
	assert.ErrorIs(t, IgnoreNoTransition(other), other)
	assert.NoError(t, IgnoreNoTransition(nil))
}

func TestWrapEventStoresError(t *testing.T) {
	boom := errors.New("boom")
	var seen *fsm.Event

	cb := WrapEvent(func(_ context.Context, e *fsm.Event) error {
		seen = e
		return boom
	})

	e := &fsm.Event{Event: "open"}
	cb(context.Background(), e)
	assert.Same(t, e, seen)
	assert.ErrorIs(t, e.Err, boom)
}
