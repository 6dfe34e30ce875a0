package dashboard

import (
	"context"
	"sync"

	"github.com/roverops/missionctl/internal/stream"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

type fakeAPI struct {
	mu        sync.Mutex
	startErr  error
	snapshots map[string]*v1.MissionState
	reports   map[string]*v1.MissionReport
	gate      map[string]chan struct{}
	started   []string
	fetches   map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		snapshots: make(map[string]*v1.MissionState),
		reports:   make(map[string]*v1.MissionReport),
		gate:      make(map[string]chan struct{}),
		fetches:   make(map[string]int),
	}
}

func (f *fakeAPI) StartMission(_ context.Context, goal string) (*v1.StartMissionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, goal)
	return &v1.StartMissionResponse{MissionID: "m-1", Status: "started"}, nil
}

func (f *fakeAPI) GetMission(ctx context.Context, id string) (*v1.MissionStatusResponse, error) {
	f.mu.Lock()
	gate := f.gate[id]
	f.fetches[id]++
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.snapshots[id]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return &v1.MissionStatusResponse{MissionID: id, Status: st.Status, State: st}, nil
}

func (f *fakeAPI) GetMissionReport(_ context.Context, id string) (*v1.MissionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return r, nil
}

func (f *fakeAPI) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

type fakeHandler struct {
	kind stream.Kind
	fn   stream.HandlerFunc
}

type fakeStream struct {
	mu          sync.Mutex
	connected   string
	connectErr  error
	disconnects int
	handlers    map[int]fakeHandler
	nextID      int

	// onGate, when set, blocks the next On call until it is closed.
	onGate  chan struct{}
	entered chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{handlers: make(map[int]fakeHandler)}
}

func (f *fakeStream) Connect(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = id
	return nil
}

func (f *fakeStream) On(kind stream.Kind, fn stream.HandlerFunc) func() {
	f.mu.Lock()
	gate, entered := f.onGate, f.entered
	f.onGate, f.entered = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.handlers[id] = fakeHandler{kind: kind, fn: fn}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

// holdOn makes the next On call block until the returned func is called.
// The returned channel is closed once that call has started.
func (f *fakeStream) holdOn() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onGate = make(chan struct{})
	f.entered = make(chan struct{})
	gate := f.onGate
	return f.entered, func() { close(gate) }
}

func (f *fakeStream) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = ""
	f.disconnects++
	clear(f.handlers)
}

func (f *fakeStream) emit(msg *v1.StreamMessage) {
	kind, _ := stream.ParseKind(msg.Type)

	f.mu.Lock()
	var fns []stream.HandlerFunc
	for _, h := range f.handlers {
		if h.kind == stream.KindAny || h.kind == kind {
			fns = append(fns, h.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (f *fakeStream) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeStream) missionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
