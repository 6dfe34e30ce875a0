package stream

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/roverops/missionctl/internal/metrics"
	fsmutil "github.com/roverops/missionctl/internal/pkg/util/fsm"
)

// State is the lifecycle phase of the client's stream session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

const (
	// eventDial starts a session requested by Connect.
	eventDial = "dial"
	// eventRetry starts a reconnection attempt.
	eventRetry = "retry"
	// eventOpen marks a successful handshake.
	eventOpen = "open"
	// eventDrop marks a closure nobody asked for.
	eventDrop = "drop"
	// eventFail marks a failed reconnection attempt.
	eventFail = "fail"
	// eventAbort marks a failed initial dial.
	eventAbort = "abort"
	// eventGiveUp marks an exhausted reconnection budget.
	eventGiveUp = "give-up"
	// eventReset is an explicit teardown.
	eventReset = "reset"
)

// Transition describes one state change of the session.
type Transition struct {
	From  State
	To    State
	Event string
}

// GaveUp reports whether the client stopped reconnecting after exhausting
// its attempts.
func (t Transition) GaveUp() bool {
	return t.Event == eventGiveUp
}

type sessionFSM struct {
	*fsm.FSM
	observe func(Transition)
}

func newSessionFSM(observe func(Transition)) *sessionFSM {
	f := &sessionFSM{observe: observe}

	all := []string{string(StateIdle), string(StateConnecting), string(StateOpen), string(StateClosed)}
	events := fsm.Events{
		{Name: eventDial, Src: []string{string(StateIdle)}, Dst: string(StateConnecting)},
		{Name: eventRetry, Src: []string{string(StateClosed)}, Dst: string(StateConnecting)},
		{Name: eventOpen, Src: []string{string(StateConnecting)}, Dst: string(StateOpen)},
		{Name: eventDrop, Src: []string{string(StateOpen)}, Dst: string(StateClosed)},
		{Name: eventFail, Src: []string{string(StateConnecting)}, Dst: string(StateClosed)},
		{Name: eventAbort, Src: []string{string(StateConnecting)}, Dst: string(StateIdle)},
		{Name: eventGiveUp, Src: []string{string(StateClosed)}, Dst: string(StateIdle)},
		{Name: eventReset, Src: all, Dst: string(StateIdle)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(f.actionEnterState),
	}

	f.FSM = fsm.NewFSM(string(StateIdle), events, callbacks)
	return f
}

func (f *sessionFSM) actionEnterState(_ context.Context, e *fsm.Event) error {
	metrics.StreamTransitionsTotal.WithLabelValues(e.Dst).Inc()
	if State(e.Dst) == StateOpen {
		metrics.StreamConnected.Set(1)
	} else {
		metrics.StreamConnected.Set(0)
	}

	if f.observe != nil {
		f.observe(Transition{From: State(e.Src), To: State(e.Dst), Event: e.Event})
	}
	return nil
}
