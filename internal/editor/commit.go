package editor

import (
	"context"
	"fmt"

	"pondops/editor-core/internal/colorhash"
	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
)

// CompleteFeature runs the commit pipeline on a raw feature reported
// finished by the map surface: reduce the coordinate list, validate, compute
// the centroid, assign the display color, push the command and frame the new
// geometry. On a persistence failure the command is compensated with an
// undo and the error surfaced.
//
// A polygon below the minimum vertex count is rejected with a
// ValidationError and the session is left in Editing so the operator can
// keep working on the geometry.
func (s *Session) CompleteFeature(ctx context.Context, kind mapsurface.Kind, raw []geo.Coordinate, title string) (*Pond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case kind == mapsurface.KindPolygon && s.mode == ModeDrawingPolygon:
	case kind == mapsurface.KindLine && s.mode == ModeDrawingLine:
	default:
		return nil, &StateConflictError{Op: fmt.Sprintf("complete %s feature", kind), Mode: s.mode}
	}
	if kind == mapsurface.KindLine && s.pond == nil {
		return nil, &StateConflictError{Op: "attach supply line without a pond", Mode: s.mode}
	}
	s.draft = nil

	prior := s.pond.Clone()
	var next *Pond
	var cmdKind CommandKind

	switch kind {
	case mapsurface.KindPolygon:
		ring := geo.NormalizeRing(raw)
		if err := ring.Validate(); err != nil {
			s.mode = ModeEditing
			s.metrics.IncCommitRejected()
			s.log.Info().Err(err).Msg("geometry commit rejected")
			return nil, &ValidationError{Reason: err.Error()}
		}
		if prior == nil {
			next = &Pond{ID: s.nextTempID, Title: title, Coordinates: ring}
			s.nextTempID--
			cmdKind = CmdAddPond
		} else {
			next = prior.Clone()
			next.Coordinates = ring
			if title != "" {
				next.Title = title
			}
			cmdKind = CmdUpdatePond
		}
		next.Centroid = next.Coordinates.Centroid()

	case mapsurface.KindLine:
		if len(raw) < 2 {
			s.mode = ModeEditing
			s.metrics.IncCommitRejected()
			return nil, &ValidationError{Reason: "supply line needs at least 2 vertices"}
		}
		next = prior.Clone()
		next.SupplyLine = append([]geo.Coordinate(nil), raw...)
		cmdKind = CmdUpdatePond
	}

	if next.Title == "" {
		next.Title = "New pond"
	}
	next.Color = colorhash.ForID(next.ID)

	s.pushLocked(DrawCommand{Kind: cmdKind, Prior: prior, Next: next})
	s.mode = ModeEditing
	s.fitter.FitToPolygon(s.surface, s.pond.Coordinates, s.layout)

	if err := s.persistPondLocked(ctx, string(cmdKind)); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("kind", string(cmdKind)).
		Int64("pond_id", s.pond.ID).
		Int("vertices", len(s.pond.Coordinates)).
		Msg("geometry committed")
	return s.pond.Clone(), nil
}

// persistPondLocked pushes the live pond to the persistence endpoint. On
// failure the just-applied command is rolled back with a compensating undo
// so on-screen state never diverges from the last confirmed-persisted state
// beyond the single pending commit. On success a backend-assigned id is
// adopted into the live pond and its snapshot, and the color is re-derived
// from the durable id.
func (s *Session) persistPondLocked(ctx context.Context, op string) error {
	if s.persist == nil {
		return nil
	}

	id, err := s.persist.SavePond(ctx, s.pond.Clone())
	if err != nil {
		s.metrics.IncPersistenceFailure()
		s.log.Error().Err(err).Str("op", op).Msg("persistence call failed, rolling back")
		s.undoLocked()
		return &PersistenceError{Op: op, Err: err}
	}

	if id > 0 && id != s.pond.ID {
		s.pond.ID = id
		s.pond.Color = colorhash.ForID(id)
		if top, ok := s.history.PeekUndo(); ok && top.Next != nil {
			top.Next.ID = id
			top.Next.Color = s.pond.Color
		}
	}
	return nil
}

// DeletePond removes the committed pond. Valid only from Editing; issues a
// DeletePond command, clears the motor markers and returns the camera to the
// default zoom.
func (s *Session) DeletePond(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeEditing || s.pond == nil {
		return &StateConflictError{Op: "delete pond", Mode: s.mode}
	}

	prior := s.pond.Clone()
	s.pushLocked(DrawCommand{Kind: CmdDeletePond, Prior: prior, Next: nil})
	s.mode = ModeIdle

	if s.persist != nil && prior.Persisted() {
		if err := s.persist.DeletePond(ctx, prior.ID); err != nil {
			s.metrics.IncPersistenceFailure()
			s.log.Error().Err(err).Int64("pond_id", prior.ID).Msg("pond delete failed, rolling back")
			s.undoLocked()
			s.mode = ModeEditing
			return &PersistenceError{Op: string(CmdDeletePond), Err: err}
		}
	}

	s.fitter.ResetToDefaultZoom(s.surface)
	s.log.Info().Int64("pond_id", prior.ID).Msg("pond deleted")
	return nil
}

// Refit re-frames the committed boundary after a container layout change:
// the surface is resized first and the fit deferred until layout settles.
func (s *Session) Refit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pond == nil || len(s.pond.Coordinates) == 0 {
		return
	}
	if s.fitTimer != nil {
		s.fitTimer.Stop()
	}
	s.fitTimer = s.fitter.FitWithResize(s.surface, s.pond.Coordinates, s.layout)
}
