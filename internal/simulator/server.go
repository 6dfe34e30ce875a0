package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"k8s.io/utils/clock"

	httpmw "github.com/roverops/missionctl/internal/pkg/middleware/http"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/options"
)

// Server serves the mission REST API and the mission stream.
type Server struct {
	store  *Store
	hub    *Hub
	runner *Runner
	clock  clock.Clock

	server          *http.Server
	shutdownTimeout time.Duration
}

// NewServer wires a store, hub and runner behind one HTTP server.
func NewServer(httpOpts *options.HttpOptions, simOpts *options.SimulatorOptions, clk clock.Clock) *Server {
	seed := uint64(simOpts.Seed)
	if seed == 0 {
		seed = uint64(clk.Now().UnixNano())
	}

	store := NewStore(clk, rand.New(rand.NewPCG(seed, seed>>1)), simOpts.Obstacles)
	hub := NewHub(store)
	s := &Server{
		store:           store,
		hub:             hub,
		runner:          NewRunner(store, hub, clk, simOpts.StepInterval),
		clock:           clk,
		shutdownTimeout: httpOpts.ShutdownTimeout,
	}
	s.server = &http.Server{
		Addr:              httpOpts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Store returns the server's mission store.
func (s *Server) Store() *Store { return s.store }

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(httpmw.Logging, httpmw.CORS)

	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/ws/mission/{id}", s.hub)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(httpmw.Timeout(httpmw.DefaultRequestTimeout))
	api.HandleFunc("/mission/start", s.startMission).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/mission/schedule", s.scheduleMission).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/mission/{id}", s.getMission).Methods(http.MethodGet)
	api.HandleFunc("/mission/{id}/report", s.getReport).Methods(http.MethodGet)
	api.HandleFunc("/apod", s.getAPOD).Methods(http.MethodGet)

	return r
}

// Start serves until ctx is cancelled. Shutdown aborts running missions,
// closes stream connections and then drains HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting mission simulator", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.Stop()
		return err
	case <-ctx.Done():
	}

	s.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop aborts running missions and closes every stream connection.
func (s *Server) Stop() {
	s.runner.Stop()
	s.hub.CloseAll()
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Rover Ops API", "status": "running"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) startMission(w http.ResponseWriter, r *http.Request) {
	var req v1.StartMissionRequest
	if !decodeGoal(w, r, &req, &req.Goal) {
		return
	}

	st := s.store.Create(req.Goal)
	s.runner.Start(st.MissionID)
	log.Info("Mission started", "missionID", st.MissionID, "goal", req.Goal)

	writeJSON(w, http.StatusOK, v1.StartMissionResponse{
		MissionID: st.MissionID,
		Status:    "started",
		Message:   "Mission started with goal: " + req.Goal,
	})
}

func (s *Server) scheduleMission(w http.ResponseWriter, r *http.Request) {
	var req v1.ScheduleMissionRequest
	if !decodeGoal(w, r, &req, &req.Goal) {
		return
	}

	at, err := parseScheduleTime(req.ScheduledTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid datetime format: %v", err))
		return
	}
	delay := at.Sub(s.clock.Now())
	if delay <= 0 {
		writeError(w, http.StatusBadRequest, "Scheduled time must be in the future")
		return
	}

	st := s.store.Create(req.Goal)
	s.runner.StartAfter(st.MissionID, delay)
	log.Info("Mission scheduled", "missionID", st.MissionID, "at", req.ScheduledTime, "delay", delay)

	writeJSON(w, http.StatusOK, v1.ScheduleMissionResponse{
		MissionID:     st.MissionID,
		Status:        "scheduled",
		ScheduledTime: req.ScheduledTime,
		Message:       "Mission scheduled for " + req.ScheduledTime,
		DelaySeconds:  delay.Seconds(),
	})
}

func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Mission not found")
		return
	}
	writeJSON(w, http.StatusOK, v1.MissionStatusResponse{
		MissionID: st.MissionID,
		Status:    st.Status,
		State:     st,
	})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Mission not found")
		return
	}
	writeJSON(w, http.StatusOK, BuildReport(st, APOD(s.clock.Now())))
}

func (s *Server) getAPOD(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, APOD(s.clock.Now()))
}

// parseScheduleTime accepts local wall-clock time with or without a zone.
func parseScheduleTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(v1.ScheduleTimeLayout, v, time.Local)
}

func decodeGoal(w http.ResponseWriter, r *http.Request, body any, goal *string) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	*goal = strings.TrimSpace(*goal)
	if *goal == "" {
		writeError(w, http.StatusUnprocessableEntity, "goal is required")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "err", err)
	}
}
