package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

// testSurface records surface calls for assertions. Sessions serialize all
// surface access under their own mutex, so no locking is needed here.
type testSurface struct {
	drawing    []mapsurface.Kind
	cancels    int
	fits       int
	flyZoom    []float64
	markers    map[mapsurface.MarkerHandle]mapsurface.Icon
	nextMarker int
	center     geo.Coordinate
	hasCenter  bool
}

func newTestSurface() *testSurface {
	return &testSurface{markers: make(map[mapsurface.MarkerHandle]mapsurface.Icon)}
}

func (s *testSurface) StartDrawing(kind mapsurface.Kind) { s.drawing = append(s.drawing, kind) }
func (s *testSurface) CancelDrawing()                    { s.cancels++ }

func (s *testSurface) FitBounds(geo.Bounds, mapsurface.Padding, float64, time.Duration) {
	s.fits++
}

func (s *testSurface) FlyTo(_ geo.Coordinate, zoom float64, _ time.Duration) {
	s.flyZoom = append(s.flyZoom, zoom)
}

func (s *testSurface) AddMarker(_ geo.Coordinate, icon mapsurface.Icon) mapsurface.MarkerHandle {
	s.nextMarker++
	h := mapsurface.MarkerHandle(fmt.Sprintf("m%d", s.nextMarker))
	s.markers[h] = icon
	return h
}

func (s *testSurface) RemoveMarker(h mapsurface.MarkerHandle) { delete(s.markers, h) }
func (s *testSurface) Resize()                                {}

func (s *testSurface) ViewportCenter() (geo.Coordinate, bool) { return s.center, s.hasCenter }
func (s *testSurface) Size() (int, int)                       { return 1000, 600 }

func (s *testSurface) iconCounts() map[mapsurface.Icon]int {
	out := make(map[mapsurface.Icon]int)
	for _, icon := range s.markers {
		out[icon]++
	}
	return out
}

// testPersister answers save calls from scripted functions; nil functions
// succeed with the id already on the entity.
type testPersister struct {
	savePondFn    func(p *Pond) (int64, error)
	deletePondFn  func(id int64) error
	saveMotorFn   func(pondID int64, m *Motor) (int64, error)
	deleteMotorFn func(id int64) error

	savedPonds    []*Pond
	deletedPonds  []int64
	savedMotors   []Motor
	deletedMotors []int64
}

func (f *testPersister) SavePond(_ context.Context, p *Pond) (int64, error) {
	f.savedPonds = append(f.savedPonds, p)
	if f.savePondFn != nil {
		return f.savePondFn(p)
	}
	return p.ID, nil
}

func (f *testPersister) DeletePond(_ context.Context, id int64) error {
	f.deletedPonds = append(f.deletedPonds, id)
	if f.deletePondFn != nil {
		return f.deletePondFn(id)
	}
	return nil
}

func (f *testPersister) SaveMotor(_ context.Context, pondID int64, m *Motor) (int64, error) {
	f.savedMotors = append(f.savedMotors, *m)
	if f.saveMotorFn != nil {
		return f.saveMotorFn(pondID, m)
	}
	if m.ID != nil {
		return *m.ID, nil
	}
	return 0, nil
}

func (f *testPersister) DeleteMotor(_ context.Context, id int64) error {
	f.deletedMotors = append(f.deletedMotors, id)
	if f.deleteMotorFn != nil {
		return f.deleteMotorFn(id)
	}
	return nil
}

// testObserver collects journal notifications.
type testObserver struct {
	actions []string
	kinds   []CommandKind
}

func (o *testObserver) Command(_ uuid.UUID, action string, _ int, cmd DrawCommand) {
	o.actions = append(o.actions, action)
	o.kinds = append(o.kinds, cmd.Kind)
}

func newTestSession(opts Options) (*Session, *testSurface) {
	surface := newTestSurface()
	return NewSession(zerolog.Nop(), surface, opts), surface
}

func squareRing() []geo.Coordinate {
	return []geo.Coordinate{
		{Lat: 10, Lng: 20},
		{Lat: 10, Lng: 21},
		{Lat: 11, Lng: 21},
		{Lat: 11, Lng: 20},
	}
}
