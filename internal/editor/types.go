// Package editor implements the interactive pond geofence and asset editor:
// the draw-mode state machine, the commit pipeline, motor marker lifecycle
// and command history for one editing session.
package editor

import (
	"pondops/editor-core/internal/colorhash"
	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

// MotorState is the motor's operational state.
type MotorState int

const (
	MotorOff MotorState = 0
	MotorOn  MotorState = 1
)

// Motor is a point asset inside a pond. Position is mutable during
// placement; afterwards it only changes through an explicit move command.
type Motor struct {
	// ID is the persisted identifier, nil until the backend has accepted
	// the motor.
	ID *int64 `json:"id,omitempty"`
	// RefID is the stable reference used by telemetry charts and by the
	// editor to address a motor before it is persisted.
	RefID     string         `json:"motor_ref_id"`
	Title     string         `json:"title"`
	Position  geo.Coordinate `json:"position"`
	PowerHP   float64        `json:"power_hp"`
	State     MotorState     `json:"state"`
	FaultCode int            `json:"fault_code"`
}

// Icon selects the marker glyph for the motor's state. Priority order is
// load-bearing: a faulted-but-off motor must show the fault icon, never the
// off icon.
func (m Motor) Icon() mapsurface.Icon {
	switch {
	case m.FaultCode != 0:
		return mapsurface.IconFault
	case m.State == MotorOff:
		return mapsurface.IconOff
	default:
		return mapsurface.IconRunning
	}
}

// Pond is a closed polygonal geofence with its motors. While a session edits
// a pond it owns the instance exclusively; all mutation goes through draw
// commands.
type Pond struct {
	// ID is negative for ponds not yet accepted by the backend.
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Coordinates geo.Ring `json:"coordinates"`
	// SupplyLine is the optional feed-channel polyline drawn with the line
	// tool.
	SupplyLine []geo.Coordinate `json:"supply_line,omitempty"`
	Centroid   geo.Coordinate   `json:"centroid"`
	Color      colorhash.HSL    `json:"color"`
	Motors     []Motor          `json:"motors"`
}

// Persisted reports whether the backend has assigned this pond a real id.
func (p *Pond) Persisted() bool { return p != nil && p.ID > 0 }

// Clone deep-copies the pond. Snapshots stored in draw commands must never
// alias live state.
func (p *Pond) Clone() *Pond {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Coordinates = append(geo.Ring(nil), p.Coordinates...)
	if p.SupplyLine != nil {
		cp.SupplyLine = append([]geo.Coordinate(nil), p.SupplyLine...)
	}
	cp.Motors = make([]Motor, len(p.Motors))
	for i, m := range p.Motors {
		cp.Motors[i] = m
		if m.ID != nil {
			id := *m.ID
			cp.Motors[i].ID = &id
		}
	}
	return &cp
}

// FindMotor locates a motor by reference id.
func (p *Pond) FindMotor(refID string) (int, bool) {
	if p == nil {
		return 0, false
	}
	for i := range p.Motors {
		if p.Motors[i].RefID == refID {
			return i, true
		}
	}
	return 0, false
}
