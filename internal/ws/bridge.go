package ws

import (
	"bipv_simulator/internal/simulator"
)

// Bridge implements simulator.Callback and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) OnState(s simulator.State) {
	b.hub.Send(TypeSimState, SimStateFromEngine(s))
}

func (b *Bridge) OnYear(r simulator.YearRecord) {
	b.hub.Send(TypeSimYear, YearFromRecord(r))
}

func (b *Bridge) OnBuilding(o simulator.Outcome) {
	b.hub.Send(TypeSimBuilding, BuildingFromOutcome(o))
}
