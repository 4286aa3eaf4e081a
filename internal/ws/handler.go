package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bipv_simulator/internal/config"
	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/model"
	"bipv_simulator/internal/policy"
	"bipv_simulator/internal/simulator"
	"bipv_simulator/internal/store"
	"bipv_simulator/internal/technology"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket connections and runs the scenario on request.
// One run is active at a time; its events are broadcast to every client.
type Handler struct {
	hub     *Hub
	cfg     *config.Config
	catalog *technology.Catalog
	results *store.Store
	logger  *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func NewHandler(hub *Hub, cfg *config.Config, catalog *technology.Catalog, results *store.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{hub: hub, cfg: cfg, catalog: catalog, results: results, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	h.hub.SendTo(client, TypeScenarioLoaded, h.scenarioLoaded())
	h.hub.SendTo(client, TypeSimState, SimStatePayload{Running: h.Running()})

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("WebSocket read error: %v", err)
			}
			return
		}

		h.handleMessage(msg)
	}
}

func (h *Handler) handleMessage(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.logger.Printf("Invalid message: %v", err)
		return
	}

	switch env.Type {
	case TypeSimRun:
		var p RunPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				h.logger.Printf("Invalid sim:run payload: %v", err)
				h.hub.Send(TypeSimError, ErrorPayload{Message: err.Error()})
				return
			}
		}
		if err := h.Start(p); err != nil {
			h.logger.Printf("Cannot start run: %v", err)
			h.hub.Send(TypeSimError, ErrorPayload{Message: err.Error()})
		}

	case TypeSimCancel:
		h.Cancel()

	default:
		h.logger.Printf("Unknown message type: %s", env.Type)
	}
}

// Running reports whether a run is in progress.
func (h *Handler) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Start launches a run of the scenario with the overrides in p.
func (h *Handler) Start(p RunPayload) error {
	cfg := *h.cfg
	if p.Policy != nil {
		cfg.Policy = *p.Policy
	}
	if p.StartYear != 0 {
		cfg.StartYear = p.StartYear
	}
	if p.EndYear != 0 {
		cfg.EndYear = p.EndYear
	}
	if p.Seed != nil {
		cfg.Seed = *p.Seed
	}
	cfg.ContinueSimulation = false
	if err := cfg.Validate(); err != nil {
		return err
	}
	jobs, err := cfg.BuildJobs(h.catalog, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return model.InvalidParameter("a run is already in progress")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.running = true
	h.wg.Add(1)
	h.mu.Unlock()

	go h.run(ctx, &cfg, jobs)
	return nil
}

func (h *Handler) run(ctx context.Context, cfg *config.Config, jobs []simulator.Job) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.cancel()
		h.mu.Unlock()
	}()

	runID := uuid.New()
	h.logger.Printf("Run %s: scenario %s, %d buildings, %d-%d, policy %s",
		runID, cfg.Scenario, len(jobs), cfg.StartYear, cfg.EndYear, cfg.Policy.Kind)

	outcomes, err := simulator.RunCanopy(ctx, jobs, cfg.Workers, h.catalog, NewBridge(h.hub), h.logger)
	if err != nil {
		h.logger.Printf("Run %s: %v", runID, err)
	}

	done := DonePayload{RunID: runID.String(), Scenario: cfg.Scenario, Buildings: len(outcomes)}
	var entries []store.Entry
	for _, o := range outcomes {
		if o.Err != nil {
			done.Failed++
			continue
		}
		entries = append(entries, store.NewEntry(runID, cfg.Scenario, o))
	}
	if h.results != nil {
		if err := h.results.Save(ctx, entries...); err != nil {
			h.logger.Printf("Run %s: saving results: %v", runID, err)
		}
	}

	if canopy, err := simulator.Aggregate(outcomes); err == nil {
		done.Result = &canopy
		if ind, err := kpi.Compute(canopy.Tree); err == nil {
			done.Indicators = &ind
		}
	}
	h.hub.Send(TypeSimDone, done)
}

// Cancel stops the active run between buildings.
func (h *Handler) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// Wait blocks until the active run, if any, has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) scenarioLoaded() ScenarioLoadedPayload {
	p := ScenarioLoadedPayload{
		Scenario:  h.cfg.Scenario,
		StartYear: h.cfg.StartYear,
		EndYear:   h.cfg.EndYear,
		Policy:    h.cfg.Policy,
		Policies:  policy.Kinds,
	}
	for _, b := range h.cfg.Buildings {
		info := BuildingInfo{ID: b.ID}
		for _, s := range b.Surfaces {
			if s.Kind == model.SurfaceFacade {
				info.FacadePanels += s.PanelCount
			} else {
				info.RoofPanels += s.PanelCount
			}
		}
		p.Buildings = append(p.Buildings, info)
	}
	return p
}
