// Package viewport computes camera fits for pond geometry.
package viewport

import (
	"time"

	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

// Layout selects the padding profile for a fit.
type Layout string

const (
	// LayoutFull is the full-page map view.
	LayoutFull Layout = "full"
	// LayoutEmbedded is the map embedded next to the pond table; the left
	// edge is partly covered by the table panel.
	LayoutEmbedded Layout = "embedded"
)

// Defaults match the dashboard's map behavior.
const (
	DefaultMaxFitZoom  = 16.0
	DefaultZoomLevel   = 11.0
	DefaultFitDuration = 800 * time.Millisecond
	// DefaultSettleDelay covers one animation frame plus layout reflow after
	// a resize; fitting sooner measures stale container dimensions.
	DefaultSettleDelay = 120 * time.Millisecond
	// DefaultPanelOffset is the width of the table panel overlapping the
	// embedded map's left edge.
	DefaultPanelOffset = 380.0
)

// Fitter frames pond geometry on a map surface. The zero value is not
// usable; construct with New.
type Fitter struct {
	MaxZoom     float64
	DefaultZoom float64
	Duration    time.Duration
	Settle      time.Duration
	PanelOffset float64
}

func New() *Fitter {
	return &Fitter{
		MaxZoom:     DefaultMaxFitZoom,
		DefaultZoom: DefaultZoomLevel,
		Duration:    DefaultFitDuration,
		Settle:      DefaultSettleDelay,
		PanelOffset: DefaultPanelOffset,
	}
}

// PaddingFor derives per-edge padding from the viewport dimensions.
// Vertical padding is 10% of the viewport height on each edge. Horizontal
// padding is 10% of the width, with the embedded layout additionally
// reserving the table panel's width on the left.
func (f *Fitter) PaddingFor(layout Layout, width, height int) mapsurface.Padding {
	v := float64(height) * 0.10
	hz := float64(width) * 0.10

	pad := mapsurface.Padding{Top: v, Bottom: v, Left: hz, Right: hz}
	if layout == LayoutEmbedded {
		pad.Left += f.PanelOffset
	}
	return pad
}

// FitToPolygon frames all vertices with padding, a capped max zoom and the
// fixed animation duration. Returns false when there is nothing to fit.
func (f *Fitter) FitToPolygon(s mapsurface.Surface, vertices []geo.Coordinate, layout Layout) bool {
	b, ok := geo.BoundsOf(vertices)
	if !ok {
		return false
	}
	w, h := s.Size()
	s.FitBounds(b, f.PaddingFor(layout, w, h), f.MaxZoom, f.Duration)
	return true
}

// FitWithResize triggers a surface resize and defers the fit until layout
// has settled. The returned timer is owned by the caller: stop it when the
// session ends or another fit supersedes it.
func (f *Fitter) FitWithResize(s mapsurface.Surface, vertices []geo.Coordinate, layout Layout) *time.Timer {
	s.Resize()
	verts := append([]geo.Coordinate(nil), vertices...)
	return time.AfterFunc(f.Settle, func() {
		f.FitToPolygon(s, verts, layout)
	})
}

// ResetToDefaultZoom flies back to the default zoom without moving the
// center, used when leaving per-pond focus.
func (f *Fitter) ResetToDefaultZoom(s mapsurface.Surface) {
	center, ok := s.ViewportCenter()
	if !ok {
		return
	}
	s.FlyTo(center, f.DefaultZoom, f.Duration)
}
