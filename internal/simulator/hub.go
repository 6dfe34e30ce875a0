package simulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
)

const writeWait = 5 * time.Second

// Broadcaster fans a stream message out to a mission's subscribers.
type Broadcaster interface {
	Broadcast(missionID string, msg *v1.StreamMessage)
}

var _ Broadcaster = (*Hub)(nil)

// Hub tracks the stream connections of every mission.
type Hub struct {
	store    *Store
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	peers map[string]map[*peer]struct{}
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(msg)
}

// NewHub creates a Hub that greets new connections with the mission's
// current state from store.
func NewHub(store *Store) *Hub {
	return &Hub{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[string]map[*peer]struct{}),
	}
}

// ServeHTTP upgrades /ws/mission/{id} and keeps the connection until the
// client leaves. A ping is answered with a pong; other input is ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Stream upgrade failed", "missionID", id, "err", err)
		return
	}

	p := &peer{conn: conn}
	h.register(id, p)
	defer h.unregister(id, p)

	if st, ok := h.store.Get(id); ok {
		if err := p.send(greeting(st)); err != nil {
			return
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in v1.PingMessage
		if json.Unmarshal(data, &in) != nil {
			continue
		}
		if in.Type == v1.StreamTypePing {
			if err := p.send(v1.StreamMessage{Type: v1.StreamTypePong}); err != nil {
				return
			}
		}
	}
}

// Broadcast sends msg to every connection of the mission. Connections that
// fail are dropped.
func (h *Hub) Broadcast(missionID string, msg *v1.StreamMessage) {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers[missionID]))
	for p := range h.peers[missionID] {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.send(msg); err != nil {
			log.Debug("Dropping stream subscriber", "missionID", missionID, "err", err)
			h.unregister(missionID, p)
		}
	}
}

// Clients returns the number of open connections for a mission.
func (h *Hub) Clients(missionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[missionID])
}

// CloseAll closes every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, peers := range h.peers {
		for p := range peers {
			_ = p.conn.Close()
		}
		delete(h.peers, id)
	}
}

func (h *Hub) register(id string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.peers[id] == nil {
		h.peers[id] = make(map[*peer]struct{})
	}
	h.peers[id][p] = struct{}{}
	log.Debug("Stream subscriber joined", "missionID", id, "clients", len(h.peers[id]))
}

func (h *Hub) unregister(id string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers, ok := h.peers[id]; ok {
		if _, ok := peers[p]; ok {
			delete(peers, p)
			_ = p.conn.Close()
		}
		if len(peers) == 0 {
			delete(h.peers, id)
		}
	}
}

func greeting(st *v1.MissionState) *v1.StreamMessage {
	total := len(st.Steps)
	current := st.CurrentStep
	return &v1.StreamMessage{
		Type:      v1.StreamTypeStatus,
		MissionID: st.MissionID,
		Status:    string(st.Status),
		Data: &v1.StreamData{
			RoverPosition: st.RoverPosition,
			CurrentStep:   &current,
			TotalSteps:    &total,
			AgentStates:   st.AgentStates,
		},
	}
}
