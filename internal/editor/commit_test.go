package editor

import (
	"context"
	"errors"
	"testing"

	"pondops/editor-core/internal/colorhash"
	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

func TestCompleteFeature_NewPond(t *testing.T) {
	s, surface := newTestSession(Options{})

	// The surface reports a ring that repeats its first vertex.
	raw := append(squareRing(), squareRing()[0])
	if err := s.StartPolygon(); err != nil {
		t.Fatalf("start polygon: %v", err)
	}
	pond, err := s.CompleteFeature(context.Background(), mapsurface.KindPolygon, raw, "North basin")
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if len(pond.Coordinates) != 4 {
		t.Fatalf("expected closing duplicate stripped, got %d vertices", len(pond.Coordinates))
	}
	if pond.ID >= 0 {
		t.Fatalf("unpersisted pond must carry a negative id, got %d", pond.ID)
	}
	if pond.Title != "North basin" {
		t.Fatalf("expected provided title, got %q", pond.Title)
	}
	if pond.Centroid != (geo.Coordinate{Lat: 10.5, Lng: 20.5}) {
		t.Fatalf("unexpected centroid %+v", pond.Centroid)
	}
	if pond.Color != colorhash.ForID(pond.ID) {
		t.Fatalf("color must derive from the pond id")
	}
	if got := s.State().Mode; got != ModeEditing {
		t.Fatalf("commit must land in editing, got %q", got)
	}
	if surface.fits != 1 {
		t.Fatalf("expected the committed geometry to be framed, fits=%d", surface.fits)
	}
}

func TestCompleteFeature_DefaultTitle(t *testing.T) {
	s, _ := newTestSession(Options{})
	pond, err := commitRing(t, s, squareRing())
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if pond.Title != "New pond" {
		t.Fatalf("expected default title, got %q", pond.Title)
	}
}

func TestCompleteFeature_RejectsDegenerateRing(t *testing.T) {
	s, _ := newTestSession(Options{})
	if err := s.StartPolygon(); err != nil {
		t.Fatalf("start polygon: %v", err)
	}

	// Two distinct vertices plus the closing duplicate.
	raw := []geo.Coordinate{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}, {Lat: 1, Lng: 1}}
	_, err := s.CompleteFeature(context.Background(), mapsurface.KindPolygon, raw, "")

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	st := s.State()
	if st.Mode != ModeEditing {
		t.Fatalf("rejected commit must leave the session in editing, got %q", st.Mode)
	}
	if st.Pond != nil {
		t.Fatalf("rejected commit must not create a pond")
	}
	if st.UndoDepth != 0 {
		t.Fatalf("rejected commit must not reach history, depth=%d", st.UndoDepth)
	}
}

func TestCompleteFeature_KindMustMatchMode(t *testing.T) {
	s, _ := newTestSession(Options{})
	if err := s.StartPolygon(); err != nil {
		t.Fatalf("start polygon: %v", err)
	}
	var conflict *StateConflictError
	_, err := s.CompleteFeature(context.Background(), mapsurface.KindLine, squareRing(), "")
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict for line completion in polygon mode, got %v", err)
	}
}

func TestCompleteFeature_SupplyLine(t *testing.T) {
	s, _ := newTestSession(Options{})
	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}
	s.Cancel()

	if err := s.StartLine(); err != nil {
		t.Fatalf("start line: %v", err)
	}
	line := []geo.Coordinate{{Lat: 9, Lng: 20}, {Lat: 10, Lng: 20.5}}
	pond, err := s.CompleteFeature(context.Background(), mapsurface.KindLine, line, "")
	if err != nil {
		t.Fatalf("line commit failed: %v", err)
	}
	if len(pond.SupplyLine) != 2 {
		t.Fatalf("expected supply line stored, got %v", pond.SupplyLine)
	}
	if len(pond.Coordinates) != 4 {
		t.Fatalf("line commit must not touch the boundary")
	}

	// The line commit is its own undo step.
	if !s.Undo() {
		t.Fatalf("expected undo to apply")
	}
	if got := s.State().Pond.SupplyLine; got != nil {
		t.Fatalf("undo must drop the supply line, got %v", got)
	}
}

func TestCompleteFeature_SupplyLineNeedsTwoVertices(t *testing.T) {
	s, _ := newTestSession(Options{})
	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}
	s.Cancel()
	if err := s.StartLine(); err != nil {
		t.Fatalf("start line: %v", err)
	}

	var validation *ValidationError
	_, err := s.CompleteFeature(context.Background(), mapsurface.KindLine, []geo.Coordinate{{Lat: 9, Lng: 20}}, "")
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for 1-vertex line, got %v", err)
	}
}

func TestCompleteFeature_SupplyLineWithoutPond(t *testing.T) {
	s, _ := newTestSession(Options{})
	if err := s.StartLine(); err != nil {
		t.Fatalf("start line: %v", err)
	}

	line := []geo.Coordinate{{Lat: 9, Lng: 20}, {Lat: 10, Lng: 20.5}}
	var conflict *StateConflictError
	_, err := s.CompleteFeature(context.Background(), mapsurface.KindLine, line, "")
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error without a pond, got %v", err)
	}

	// The rejection must leave the session untouched.
	st := s.State()
	if st.Mode != ModeDrawingLine {
		t.Fatalf("expected mode unchanged, got %s", st.Mode)
	}
	if st.Pond != nil || st.UndoDepth != 0 {
		t.Fatalf("rejection must not commit anything, got %+v", st)
	}
}

func TestCompleteFeature_AdoptsBackendID(t *testing.T) {
	persister := &testPersister{
		savePondFn: func(p *Pond) (int64, error) {
			if p.ID > 0 {
				t.Fatalf("creation payload should carry the temporary id, got %d", p.ID)
			}
			return 77, nil
		},
	}
	s, _ := newTestSession(Options{Persister: persister})

	pond, err := commitRing(t, s, squareRing())
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if pond.ID != 77 {
		t.Fatalf("expected backend id adopted, got %d", pond.ID)
	}
	if pond.Color != colorhash.ForID(77) {
		t.Fatalf("color must be re-derived from the durable id")
	}

	// The history snapshot carries the durable id too, so undo+redo does not
	// resurrect the temporary one.
	if !s.Undo() || !s.Redo() {
		t.Fatalf("expected undo+redo to apply")
	}
	if got := s.State().Pond.ID; got != 77 {
		t.Fatalf("redo resurrected the temporary id: %d", got)
	}
}

func TestCompleteFeature_PersistFailureRollsBack(t *testing.T) {
	persister := &testPersister{
		savePondFn: func(*Pond) (int64, error) { return 0, errors.New("backend down") },
	}
	s, _ := newTestSession(Options{Persister: persister})

	_, err := commitRing(t, s, squareRing())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	st := s.State()
	if st.Pond != nil {
		t.Fatalf("failed commit must be compensated, pond=%+v", st.Pond)
	}
	if st.UndoDepth != 0 {
		t.Fatalf("compensated command must be off the undo stack, depth=%d", st.UndoDepth)
	}
	// The compensating undo leaves the command on the redo stack; the
	// operator can retry with a redo once the backend recovers.
	if st.RedoDepth != 1 {
		t.Fatalf("expected the rolled-back command on the redo stack, depth=%d", st.RedoDepth)
	}
}

func TestDeletePond(t *testing.T) {
	persister := &testPersister{
		savePondFn: func(*Pond) (int64, error) { return 12, nil },
	}
	s, surface := newTestSession(Options{Persister: persister})
	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}
	surface.center, surface.hasCenter = geo.Coordinate{Lat: 10.5, Lng: 20.5}, true

	if err := s.DeletePond(context.Background()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	st := s.State()
	if st.Pond != nil {
		t.Fatalf("expected pond removed, got %+v", st.Pond)
	}
	if st.Mode != ModeIdle {
		t.Fatalf("expected idle after delete, got %q", st.Mode)
	}
	if len(persister.deletedPonds) != 1 || persister.deletedPonds[0] != 12 {
		t.Fatalf("expected backend delete for id 12, got %v", persister.deletedPonds)
	}
	if len(surface.flyZoom) == 0 {
		t.Fatalf("expected camera reset after delete")
	}

	// Deleting is undoable like any other command.
	if !s.Undo() {
		t.Fatalf("expected undo to apply")
	}
	if got := s.State().Pond; got == nil || got.ID != 12 {
		t.Fatalf("undo must restore the deleted pond, got %+v", got)
	}
}

func TestDeletePond_FailureRestoresEditing(t *testing.T) {
	persister := &testPersister{
		savePondFn:   func(*Pond) (int64, error) { return 12, nil },
		deletePondFn: func(int64) error { return errors.New("backend down") },
	}
	s, _ := newTestSession(Options{Persister: persister})
	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}

	var pe *PersistenceError
	if err := s.DeletePond(context.Background()); !errors.As(err, &pe) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	st := s.State()
	if st.Pond == nil {
		t.Fatalf("failed delete must restore the pond")
	}
	if st.Mode != ModeEditing {
		t.Fatalf("failed delete must return to editing, got %q", st.Mode)
	}
}

func TestDeletePond_OnlyFromEditing(t *testing.T) {
	s, _ := newTestSession(Options{})
	var conflict *StateConflictError
	if err := s.DeletePond(context.Background()); !errors.As(err, &conflict) {
		t.Fatalf("expected conflict from idle, got %v", err)
	}
}

func TestEditBoundary_ReshapeIsUndoable(t *testing.T) {
	s, _ := newTestSession(Options{})
	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}

	if err := s.EditBoundary(); err != nil {
		t.Fatalf("edit boundary: %v", err)
	}
	bigger := []geo.Coordinate{
		{Lat: 10, Lng: 20},
		{Lat: 10, Lng: 22},
		{Lat: 12, Lng: 22},
		{Lat: 12, Lng: 20},
	}
	pond, err := s.CompleteFeature(context.Background(), mapsurface.KindPolygon, bigger, "")
	if err != nil {
		t.Fatalf("reshape commit failed: %v", err)
	}
	if pond.Centroid != (geo.Coordinate{Lat: 11, Lng: 21}) {
		t.Fatalf("centroid must follow the new ring, got %+v", pond.Centroid)
	}

	if !s.Undo() {
		t.Fatalf("expected undo to apply")
	}
	if got := s.State().Pond.Centroid; got != (geo.Coordinate{Lat: 10.5, Lng: 20.5}) {
		t.Fatalf("undo must restore the original ring, centroid %+v", got)
	}
}
