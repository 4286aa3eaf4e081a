// bipv-sim runs a scenario file: every building is aged, failed and
// repaired year by year under the scenario's replacement policy. One JSON
// result per building and the canopy aggregate are written to the output
// directory, together with the states needed to continue the run later.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"text/tabwriter"

	"github.com/google/uuid"

	"bipv_simulator/internal/config"
	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/model"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/simulator"
	"bipv_simulator/internal/store"
)

// buildingFile is the JSON document written per building.
type buildingFile struct {
	RunID      string         `json:"run_id"`
	Scenario   string         `json:"scenario"`
	BuildingID string         `json:"building_id"`
	Result     results.Result `json:"result"`
	Indicators kpi.Indicators `json:"indicators"`
}

// progress implements simulator.Callback and writes each finished building
// to the output directory as soon as it is done.
type progress struct {
	mu       sync.Mutex
	dir      string
	runID    uuid.UUID
	scenario string
	done     int
	total    int
}

func (p *progress) OnState(simulator.State)     {}
func (p *progress) OnYear(simulator.YearRecord) {}

func (p *progress) OnBuilding(o simulator.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if o.Err != nil {
		fmt.Fprintf(os.Stderr, "  [%d/%d] %s failed: %v\n", p.done, p.total, o.BuildingID, o.Err)
		return
	}
	if err := writeBuilding(p.dir, p.runID, p.scenario, o); err != nil {
		log.Printf("Writing %s: %v", o.BuildingID, err)
		return
	}
	fmt.Fprintf(os.Stderr, "  [%d/%d] %s done\n", p.done, p.total, o.BuildingID)
}

func main() {
	configPath := flag.String("config", "scenario.yaml", "scenario YAML file")
	outputDir := flag.String("output-dir", "", "output directory (overrides the scenario)")
	workers := flag.Int("workers", 0, "parallel buildings (overrides the scenario)")
	cont := flag.Bool("continue", false, "continue from the states saved in the output directory")
	postgres := flag.String("postgres", "", "lib/pq connection string (overrides the scenario)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Loading %s: %v", *configPath, err)
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *cont {
		cfg.ContinueSimulation = true
	}
	if *postgres != "" {
		cfg.PostgresConnString = *postgres
	}

	catalog, err := cfg.LoadCatalog()
	if err != nil {
		log.Fatalf("Loading technologies: %v", err)
	}
	log.Printf("Technologies: %v", catalog.IDs())

	var states map[string]*simulator.BuildingState
	if cfg.ContinueSimulation {
		if states, err = loadStates(cfg.OutputDir, cfg.Buildings); err != nil {
			log.Fatalf("Loading saved states: %v", err)
		}
	}
	jobs, err := cfg.BuildJobs(catalog, states)
	if err != nil {
		log.Fatalf("Building scenario: %v", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Fatalf("Creating output directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runID := uuid.New()
	log.Printf("Run %s: %s, %d buildings, %d-%d, policy %s, %d workers",
		runID, cfg.Scenario, len(jobs), cfg.StartYear, cfg.EndYear, cfg.Policy.Kind, cfg.Workers)

	cb := &progress{dir: cfg.OutputDir, runID: runID, scenario: cfg.Scenario, total: len(jobs)}
	outcomes, runErr := simulator.RunCanopy(ctx, jobs, cfg.Workers, catalog, cb, log.Default())
	if runErr != nil {
		log.Printf("Some buildings failed: %v", runErr)
	}

	canopy, err := simulator.Aggregate(outcomes)
	if err != nil {
		log.Fatalf("Aggregating: %v", err)
	}
	ind, err := kpi.Compute(canopy.Tree)
	if err != nil {
		log.Fatalf("Computing indicators: %v", err)
	}
	if err := writeJSON(filepath.Join(cfg.OutputDir, "canopy.json"), buildingFile{
		RunID: runID.String(), Scenario: cfg.Scenario, BuildingID: "canopy", Result: canopy, Indicators: ind,
	}); err != nil {
		log.Fatalf("Writing canopy: %v", err)
	}

	if cfg.PostgresConnString != "" {
		if err := saveToPostgres(ctx, cfg.PostgresConnString, runID, cfg.Scenario, outcomes); err != nil {
			log.Printf("Postgres: %v", err)
		}
	}

	printIndicators(os.Stdout, cfg.Scenario, outcomes, ind)
	if runErr != nil {
		os.Exit(1)
	}
}

func stateFile(dir, building string) string {
	return filepath.Join(dir, building+".state.json")
}

// writeBuilding writes the result and the continuation state of a building.
func writeBuilding(dir string, runID uuid.UUID, scenario string, o simulator.Outcome) error {
	if err := writeJSON(filepath.Join(dir, o.BuildingID+".json"), buildingFile{
		RunID:      runID.String(),
		Scenario:   scenario,
		BuildingID: o.BuildingID,
		Result:     o.Result,
		Indicators: o.Indicators,
	}); err != nil {
		return err
	}
	return writeJSON(stateFile(dir, o.BuildingID), o.State)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// loadStates reads the saved state of every configured building.
func loadStates(dir string, buildings []config.Building) (map[string]*simulator.BuildingState, error) {
	states := make(map[string]*simulator.BuildingState, len(buildings))
	for _, b := range buildings {
		data, err := os.ReadFile(stateFile(dir, b.ID))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("building %s: no saved state in %s: %w", b.ID, dir, model.ErrStateMismatch)
		}
		if err != nil {
			return nil, err
		}
		var st simulator.BuildingState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("decoding state of %s: %w", b.ID, err)
		}
		states[b.ID] = &st
	}
	return states, nil
}

func saveToPostgres(ctx context.Context, connString string, runID uuid.UUID, scenario string, outcomes []simulator.Outcome) error {
	db, err := store.OpenPostgres(ctx, connString, log.Default())
	if err != nil {
		return err
	}
	defer db.Close()

	var entries []store.Entry
	for _, o := range outcomes {
		if o.Err == nil {
			entries = append(entries, store.NewEntry(runID, scenario, o))
		}
	}
	return db.Save(ctx, entries...)
}

func printIndicators(w io.Writer, scenario string, outcomes []simulator.Outcome, canopy kpi.Indicators) {
	fmt.Fprintf(w, "\nScenario %s\n\n", scenario)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Building\tEnergy kWh\tEROI\tEnergy payback\tGHG g/kWh\tNet benefit\t")
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "%s\tfailed\t\t\t\t\t\n", o.BuildingID)
			continue
		}
		printRow(tw, o.BuildingID, o.Indicators)
	}
	printRow(tw, "canopy", canopy)
	tw.Flush()
}

func printRow(w io.Writer, name string, ind kpi.Indicators) {
	fmt.Fprintf(w, "%s\t%.0f\t%.2f\t%s\t%.1f\t%.0f\t\n",
		name, ind.EnergyHarvested, ind.EROI, years(ind.EnergyPaybackYears), ind.GHGIntensity*1000, ind.NetEconomicBenefit)
}

func years(v *int) string {
	if v == nil {
		return "never"
	}
	return fmt.Sprintf("%d y", *v)
}
