// Package mapsurface defines the port to the external map rendering surface.
// The editor core only ever talks to this interface; the real renderer lives
// in the operator's browser and is driven through the HTTP adapter.
package mapsurface

import (
	"time"

	"pondops/editor-core/internal/geo"
)

// Kind selects the drawing tool.
type Kind string

const (
	KindPolygon Kind = "polygon"
	KindLine    Kind = "line"
)

// Icon names a marker glyph the surface knows how to render.
type Icon string

const (
	IconFault   Icon = "motor-fault"
	IconOff     Icon = "motor-off"
	IconRunning Icon = "motor-running"
	IconSearch  Icon = "search-pin"
)

// MarkerHandle identifies a placed marker for later removal. Opaque to the
// editor core.
type MarkerHandle string

// Padding is per-edge screen padding in pixels for a bounds fit.
type Padding struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Surface is the consumed capability of the map renderer.
//
// Calls are fire-and-forget from the editor's point of view: a surface that
// has gone away must swallow calls rather than fail them, mirroring how a
// detached map container behaves.
type Surface interface {
	// StartDrawing arms the given drawing tool.
	StartDrawing(kind Kind)
	// CancelDrawing disarms any active drawing tool and discards the
	// in-progress feature.
	CancelDrawing()
	// FitBounds animates the camera so the bounds are fully visible.
	FitBounds(b geo.Bounds, pad Padding, maxZoom float64, duration time.Duration)
	// FlyTo animates the camera to a center and zoom.
	FlyTo(center geo.Coordinate, zoom float64, duration time.Duration)
	// AddMarker places a marker and returns a handle for removal.
	AddMarker(pos geo.Coordinate, icon Icon) MarkerHandle
	// RemoveMarker removes a previously placed marker. Unknown handles are
	// ignored.
	RemoveMarker(h MarkerHandle)
	// Resize tells the surface to re-measure its container.
	Resize()
	// ViewportCenter reports the current camera center, if known.
	ViewportCenter() (geo.Coordinate, bool)
	// Size reports the current viewport dimensions in pixels.
	Size() (width, height int)
}
