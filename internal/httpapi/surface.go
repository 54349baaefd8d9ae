package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

// Directive is one outbound map-surface command, queued for the browser
// client to apply to its renderer.
type Directive struct {
	Op         string                  `json:"op"`
	Kind       mapsurface.Kind         `json:"kind,omitempty"`
	Bounds     *geo.Bounds             `json:"bounds,omitempty"`
	Padding    *mapsurface.Padding     `json:"padding,omitempty"`
	MaxZoom    float64                 `json:"max_zoom,omitempty"`
	Center     *geo.Coordinate         `json:"center,omitempty"`
	Zoom       float64                 `json:"zoom,omitempty"`
	DurationMS int64                   `json:"duration_ms,omitempty"`
	Position   *geo.Coordinate         `json:"position,omitempty"`
	Icon       mapsurface.Icon         `json:"icon,omitempty"`
	Marker     mapsurface.MarkerHandle `json:"marker,omitempty"`
}

// queueSurface implements the map-surface port by queueing directives for
// the remote renderer. Viewport geometry flows the other way: the client
// reports its size and camera center, which the editor reads back for
// padding and proximity bias.
type queueSurface struct {
	mu         sync.Mutex
	directives []Directive
	width      int
	height     int
	center     *geo.Coordinate
}

func newQueueSurface() *queueSurface {
	// Until the client reports, assume a common desktop viewport.
	return &queueSurface{width: 1280, height: 800}
}

func (q *queueSurface) push(d Directive) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.directives = append(q.directives, d)
}

// Drain returns and clears the queued directives.
func (q *queueSurface) Drain() []Directive {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.directives
	q.directives = nil
	if out == nil {
		out = []Directive{}
	}
	return out
}

// SetViewport records the client-reported viewport geometry.
func (q *queueSurface) SetViewport(width, height int, center *geo.Coordinate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if width > 0 {
		q.width = width
	}
	if height > 0 {
		q.height = height
	}
	if center != nil {
		c := *center
		q.center = &c
	}
}

func (q *queueSurface) StartDrawing(kind mapsurface.Kind) {
	q.push(Directive{Op: "start_drawing", Kind: kind})
}

func (q *queueSurface) CancelDrawing() {
	q.push(Directive{Op: "cancel_drawing"})
}

func (q *queueSurface) FitBounds(b geo.Bounds, pad mapsurface.Padding, maxZoom float64, duration time.Duration) {
	q.push(Directive{
		Op:         "fit_bounds",
		Bounds:     &b,
		Padding:    &pad,
		MaxZoom:    maxZoom,
		DurationMS: duration.Milliseconds(),
	})
}

func (q *queueSurface) FlyTo(center geo.Coordinate, zoom float64, duration time.Duration) {
	q.push(Directive{
		Op:         "fly_to",
		Center:     &center,
		Zoom:       zoom,
		DurationMS: duration.Milliseconds(),
	})
}

func (q *queueSurface) AddMarker(pos geo.Coordinate, icon mapsurface.Icon) mapsurface.MarkerHandle {
	h := mapsurface.MarkerHandle(uuid.NewString())
	q.push(Directive{Op: "add_marker", Position: &pos, Icon: icon, Marker: h})
	return h
}

func (q *queueSurface) RemoveMarker(h mapsurface.MarkerHandle) {
	q.push(Directive{Op: "remove_marker", Marker: h})
}

func (q *queueSurface) Resize() {
	q.push(Directive{Op: "resize"})
}

func (q *queueSurface) ViewportCenter() (geo.Coordinate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.center == nil {
		return geo.Coordinate{}, false
	}
	return *q.center, true
}

func (q *queueSurface) Size() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.width, q.height
}
