// Package fsm holds helpers shared by looplab/fsm based state machines.
package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback. A non-nil
// error is stored on the event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IgnoreNoTransition drops the error fsm reports when an event leaves the
// machine in the state it was already in.
func IgnoreNoTransition(err error) error {
	var nt fsm.NoTransitionError
	if errors.As(err, &nt) {
		return nil
	}
	return err
}
