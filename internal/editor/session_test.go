package editor

import (
	"context"
	"errors"
	"testing"

	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

func TestStartDrawing_OnlyFromIdle(t *testing.T) {
	s, surface := newTestSession(Options{})

	if err := s.StartPolygon(); err != nil {
		t.Fatalf("expected polygon start from idle, got %v", err)
	}
	if len(surface.drawing) != 1 || surface.drawing[0] != mapsurface.KindPolygon {
		t.Fatalf("expected surface armed with polygon tool, got %v", surface.drawing)
	}

	var conflict *StateConflictError
	if err := s.StartLine(); !errors.As(err, &conflict) {
		t.Fatalf("expected state conflict starting line while drawing, got %v", err)
	}
	if conflict.Mode != ModeDrawingPolygon {
		t.Fatalf("conflict should report the blocking mode, got %q", conflict.Mode)
	}
}

func TestCancel_ReturnsToIdleWithoutTouchingHistory(t *testing.T) {
	s, surface := newTestSession(Options{})

	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}
	st := s.State()
	if st.UndoDepth != 1 {
		t.Fatalf("expected one command in history, got %d", st.UndoDepth)
	}

	// Editing -> boundary edit -> cancel must not lose the committed ring.
	if err := s.EditBoundary(); err != nil {
		t.Fatalf("edit boundary failed: %v", err)
	}
	s.Cancel()

	st = s.State()
	if st.Mode != ModeIdle {
		t.Fatalf("expected idle after cancel, got %q", st.Mode)
	}
	if st.UndoDepth != 1 {
		t.Fatalf("cancel must not touch history, depth=%d", st.UndoDepth)
	}
	if len(st.Pond.Coordinates) != 4 {
		t.Fatalf("committed geometry must survive cancel, got %d vertices", len(st.Pond.Coordinates))
	}
	if surface.cancels == 0 {
		t.Fatalf("expected the drawing tool to be disarmed")
	}
}

// commitRing starts the polygon tool and commits the given ring.
func commitRing(t *testing.T, s *Session, ring []geo.Coordinate) (*Pond, error) {
	t.Helper()
	if err := s.StartPolygon(); err != nil {
		t.Fatalf("start polygon: %v", err)
	}
	return s.CompleteFeature(context.Background(), mapsurface.KindPolygon, ring, "")
}

func TestEditBoundary_RequiresEditingMode(t *testing.T) {
	s, _ := newTestSession(Options{})
	var conflict *StateConflictError
	if err := s.EditBoundary(); !errors.As(err, &conflict) {
		t.Fatalf("expected conflict from idle without a pond, got %v", err)
	}
}

func TestBeginAddMotor_TogglesAndGuards(t *testing.T) {
	s, _ := newTestSession(Options{})

	// No pond yet: placement is meaningless.
	var conflict *StateConflictError
	if err := s.BeginAddMotor(); !errors.As(err, &conflict) {
		t.Fatalf("expected conflict without a pond, got %v", err)
	}

	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("setup commit failed: %v", err)
	}
	s.Cancel() // back to idle

	if err := s.BeginAddMotor(); err != nil {
		t.Fatalf("expected toggle into adding_motor, got %v", err)
	}
	if got := s.State().Mode; got != ModeAddingMotor {
		t.Fatalf("expected adding_motor, got %q", got)
	}
	if err := s.BeginAddMotor(); err != nil {
		t.Fatalf("expected toggle back to idle, got %v", err)
	}
	if got := s.State().Mode; got != ModeIdle {
		t.Fatalf("expected idle, got %q", got)
	}
}

func TestUpdateFeature_TracksDraftOnlyWhileDrawing(t *testing.T) {
	s, _ := newTestSession(Options{})

	// Ignored outside drawing modes.
	s.UpdateFeature(squareRing())
	if s.State().Pond != nil {
		t.Fatalf("draft updates must never create committed state")
	}

	if err := s.StartPolygon(); err != nil {
		t.Fatalf("start polygon: %v", err)
	}
	s.UpdateFeature(squareRing()[:2])
	if s.State().Pond != nil {
		t.Fatalf("draft updates must not touch the committed pond")
	}
}

func TestUndoRedo_RestoreSnapshots(t *testing.T) {
	obs := &testObserver{}
	s, _ := newTestSession(Options{Observer: obs})

	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if !s.Undo() {
		t.Fatalf("expected undo to apply")
	}
	st := s.State()
	if st.Pond != nil {
		t.Fatalf("undoing the creating command must clear the pond, got %+v", st.Pond)
	}
	if st.UndoDepth != 0 || st.RedoDepth != 1 {
		t.Fatalf("expected depths 0/1, got %d/%d", st.UndoDepth, st.RedoDepth)
	}

	if !s.Redo() {
		t.Fatalf("expected redo to apply")
	}
	st = s.State()
	if st.Pond == nil || len(st.Pond.Coordinates) != 4 {
		t.Fatalf("redo must restore the committed ring, got %+v", st.Pond)
	}

	if s.Redo() {
		t.Fatalf("expected redo on empty stack to report false")
	}
	if got := obs.actions; len(got) != 3 || got[0] != "apply" || got[1] != "undo" || got[2] != "redo" {
		t.Fatalf("unexpected observer actions %v", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, surface := newTestSession(Options{})
	if _, err := commitRing(t, s, squareRing()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	s.Cancel()
	if err := s.BeginAddMotor(); err != nil {
		t.Fatalf("begin add motor: %v", err)
	}
	if _, err := s.PlaceMotor(context.Background(), geo.Coordinate{Lat: 10.5, Lng: 20.5}, "", 5); err != nil {
		t.Fatalf("place motor: %v", err)
	}
	if len(surface.markers) != 1 {
		t.Fatalf("expected one marker before close, got %d", len(surface.markers))
	}

	s.Close()
	s.Close()
	if len(surface.markers) != 0 {
		t.Fatalf("close must remove all markers, %d left", len(surface.markers))
	}
}
