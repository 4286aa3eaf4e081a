package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"bipv_simulator/internal/config"
	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/store"
	"bipv_simulator/internal/ws"
)

func main() {
	configPath := flag.String("config", "scenario.yaml", "scenario YAML file")
	frontendDir := flag.String("frontend-dir", "frontend/build", "directory containing frontend build")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}
	catalog, err := cfg.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load technologies: %v", err)
	}
	log.Printf("Scenario %s: %d buildings, %d-%d", cfg.Scenario, len(cfg.Buildings), cfg.StartYear, cfg.EndYear)

	resultStore := store.New()
	hub := ws.NewHub()
	handler := ws.NewHandler(hub, cfg, catalog, resultStore, log.Default())

	log.Printf("Starting server on %s", *addr)
	if err := http.ListenAndServe(*addr, newMux(handler, resultStore, *frontendDir)); err != nil {
		log.Fatal(err)
	}
}

func newMux(handler http.Handler, resultStore *store.Store, frontendDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", handler)
	mux.HandleFunc("GET /api/scenarios", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, resultStore.Scenarios())
	})
	mux.HandleFunc("GET /api/scenarios/{scenario}", scenarioHandler(resultStore))
	mux.HandleFunc("GET /api/scenarios/{scenario}/{building}", buildingHandler(resultStore))

	// Serve frontend static files
	if _, err := os.Stat(frontendDir); err == nil {
		log.Printf("Serving frontend from %s", frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(frontendDir)))
	}
	return mux
}

// scenarioSummary is the aggregate view of a stored scenario.
type scenarioSummary struct {
	Scenario   string         `json:"scenario"`
	Buildings  []string       `json:"buildings"`
	Indicators kpi.Indicators `json:"indicators"`
}

func scenarioHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("scenario")
		entries := s.Entries(name)
		if len(entries) == 0 {
			http.Error(w, "unknown scenario", http.StatusNotFound)
			return
		}
		canopy, err := s.Aggregate(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ind, err := kpi.Compute(canopy.Tree)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		summary := scenarioSummary{Scenario: name, Indicators: ind}
		for _, e := range entries {
			summary.Buildings = append(summary.Buildings, e.BuildingID)
		}
		writeJSON(w, summary)
	}
}

func buildingHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.Get(r.PathValue("scenario"), r.PathValue("building"))
		if !ok {
			http.Error(w, "unknown building", http.StatusNotFound)
			return
		}
		e.State = nil
		writeJSON(w, e)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encoding response: %v", err)
	}
}
