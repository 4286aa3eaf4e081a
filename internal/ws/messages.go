package ws

import (
	"encoding/json"

	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/policy"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/simulator"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server messages

// RunPayload starts a scenario run. Zero fields keep the scenario defaults.
type RunPayload struct {
	Policy    *policy.Config `json:"policy,omitempty"`
	StartYear int            `json:"start_year,omitempty"`
	EndYear   int            `json:"end_year,omitempty"`
	Seed      *uint64        `json:"seed,omitempty"`
}

// Server -> Client messages

type ScenarioLoadedPayload struct {
	Scenario  string         `json:"scenario"`
	StartYear int            `json:"start_year"`
	EndYear   int            `json:"end_year"`
	Policy    policy.Config  `json:"policy"`
	Policies  []policy.Kind  `json:"policies"`
	Buildings []BuildingInfo `json:"buildings"`
}

type BuildingInfo struct {
	ID           string `json:"id"`
	RoofPanels   int    `json:"roof_panels"`
	FacadePanels int    `json:"facade_panels"`
}

type SimStatePayload struct {
	BuildingID string `json:"building_id"`
	Year       int    `json:"year"`
	Running    bool   `json:"running"`
}

type YearPayload struct {
	BuildingID    string  `json:"building_id"`
	Year          int     `json:"year"`
	EnergyKWh     float64 `json:"energy_kwh"`
	WasteKg       float64 `json:"waste_kg"`
	PrimaryEnergy float64 `json:"primary_energy"`
	Carbon        float64 `json:"carbon"`
	NetBenefit    float64 `json:"net_benefit"`
	Installations int     `json:"installations"`
	Failures      int     `json:"failures"`
}

type BuildingPayload struct {
	BuildingID string          `json:"building_id"`
	Indicators *kpi.Indicators `json:"indicators,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type DonePayload struct {
	RunID      string          `json:"run_id"`
	Scenario   string          `json:"scenario"`
	Buildings  int             `json:"buildings"`
	Failed     int             `json:"failed"`
	Indicators *kpi.Indicators `json:"indicators,omitempty"`
	Result     *results.Result `json:"result,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Message type constants
const (
	// Client -> Server
	TypeSimRun    = "sim:run"
	TypeSimCancel = "sim:cancel"

	// Server -> Client
	TypeScenarioLoaded = "scenario:loaded"
	TypeSimState       = "sim:state"
	TypeSimYear        = "sim:year"
	TypeSimBuilding    = "sim:building"
	TypeSimDone        = "sim:done"
	TypeSimError       = "sim:error"
)

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func SimStateFromEngine(s simulator.State) SimStatePayload {
	return SimStatePayload{
		BuildingID: s.BuildingID,
		Year:       s.Year,
		Running:    s.Running,
	}
}

func YearFromRecord(r simulator.YearRecord) YearPayload {
	total := r.Total()
	return YearPayload{
		BuildingID:    r.BuildingID,
		Year:          r.Year,
		EnergyKWh:     total.EnergyHarvested,
		WasteKg:       total.Waste,
		PrimaryEnergy: total.Manufacturing.PrimaryEnergy + total.EndOfLife.PrimaryEnergy,
		Carbon:        total.Manufacturing.Carbon + total.EndOfLife.Carbon,
		NetBenefit:    total.Revenue - total.Cost(),
		Installations: total.Installations,
		Failures:      total.Failures,
	}
}

func BuildingFromOutcome(o simulator.Outcome) BuildingPayload {
	p := BuildingPayload{BuildingID: o.BuildingID}
	if o.Err != nil {
		p.Error = o.Err.Error()
		return p
	}
	ind := o.Indicators
	p.Indicators = &ind
	return p
}
