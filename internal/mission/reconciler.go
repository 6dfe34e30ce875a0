package mission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roverops/missionctl/internal/metrics"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
)

// ErrStaleSnapshot is returned by Initialize for a snapshot of a mission
// other than the active one.
var ErrStaleSnapshot = errors.New("snapshot does not belong to the active mission")

// Observer is notified with the new view model after every change.
type Observer func(vm ViewModel)

// Reconciler owns the view model of the active mission and applies
// snapshots and stream messages to it one at a time.
type Reconciler struct {
	// writeMu serializes mutations together with their notifications so
	// observers see changes in order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	vm        ViewModel
	observers []observerEntry
	nextID    uint64
}

type observerEntry struct {
	id uint64
	fn Observer
}

// NewReconciler creates a Reconciler with an empty view model.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// View returns the current view model.
func (r *Reconciler) View() ViewModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vm
}

// Subscribe registers fn for every change. fn may call View but must not
// mutate the Reconciler.
func (r *Reconciler) Subscribe(fn Observer) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.observers = append(r.observers, observerEntry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

// Reset replaces the view model with a fresh one for a new mission. The
// path, logs and seen ids of the previous mission are discarded.
func (r *Reconciler) Reset(missionID, goal string) {
	r.update(func(ViewModel) (ViewModel, bool) {
		return New(missionID, goal), true
	})
}

// Initialize seeds the view model from a REST snapshot. A snapshot for a
// different mission than the active one is rejected with ErrStaleSnapshot.
func (r *Reconciler) Initialize(snap *v1.MissionState) error {
	if snap == nil {
		return fmt.Errorf("snapshot is required")
	}

	var err error
	r.update(func(vm ViewModel) (ViewModel, bool) {
		if vm.MissionID != "" && snap.MissionID != "" && snap.MissionID != vm.MissionID {
			err = fmt.Errorf("%w: got %s, active %s", ErrStaleSnapshot, snap.MissionID, vm.MissionID)
			return vm, false
		}
		next, dropped := seed(vm, snap)
		countDropped(dropped)
		return next, true
	})
	return err
}

// Apply reduces one stream message into the view model. Messages addressed
// to another mission are ignored.
func (r *Reconciler) Apply(msg *v1.StreamMessage) {
	if msg == nil || !changesState(msg.Type) {
		return
	}

	r.update(func(vm ViewModel) (ViewModel, bool) {
		if msg.MissionID != "" && vm.MissionID != "" && msg.MissionID != vm.MissionID {
			log.Debug("Ignoring message for inactive mission", "type", msg.Type, "missionID", msg.MissionID, "active", vm.MissionID)
			return vm, false
		}
		next, dropped := reduce(vm, msg)
		countDropped(dropped)
		return next, true
	})
}

// AppendLog records an entry produced by the client, such as a start or
// failure notice. Entries with an id already present are dropped.
func (r *Reconciler) AppendLog(e LogEntry) {
	r.update(func(vm ViewModel) (ViewModel, bool) {
		next, ok := appendEntry(vm, e)
		if !ok {
			countDropped(1)
		}
		return next, ok
	})
}

func (r *Reconciler) update(fn func(ViewModel) (ViewModel, bool)) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	next, changed := fn(r.vm)
	if !changed {
		r.mu.Unlock()
		return
	}
	r.vm = next
	observers := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		observers = append(observers, o.fn)
	}
	r.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}

func changesState(msgType string) bool {
	switch msgType {
	case v1.StreamTypeStatus, v1.StreamTypeUpdate, v1.StreamTypeLog,
		v1.StreamTypeComplete, v1.StreamTypeError:
		return true
	}
	return false
}

func countDropped(n int) {
	if n > 0 {
		metrics.MissionLogsDroppedTotal.Add(float64(n))
		log.Debug("Dropped duplicate mission log entries", "count", n)
	}
}
