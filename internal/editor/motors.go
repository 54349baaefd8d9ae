package editor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pondops/editor-core/internal/geo"
)

// PlaceMotor finalizes a motor placement at the clicked position. Valid only
// while AddingMotor is active; completion returns the session to Idle.
func (s *Session) PlaceMotor(ctx context.Context, pos geo.Coordinate, title string, powerHP float64) (*Motor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeAddingMotor || s.pond == nil {
		return nil, &StateConflictError{Op: "place motor", Mode: s.mode}
	}

	if title == "" {
		title = fmt.Sprintf("Motor %d", len(s.pond.Motors)+1)
	}
	motor := Motor{
		RefID:    uuid.NewString(),
		Title:    title,
		Position: pos,
		PowerHP:  powerHP,
		State:    MotorOff,
	}

	prior := s.pond.Clone()
	next := prior.Clone()
	next.Motors = append(next.Motors, motor)

	s.pushLocked(DrawCommand{Kind: CmdAddMotor, Prior: prior, Next: next})
	s.mode = ModeIdle

	if err := s.persistMotorLocked(ctx, string(CmdAddMotor), motor.RefID); err != nil {
		return nil, err
	}

	idx, _ := s.pond.FindMotor(motor.RefID)
	placed := s.pond.Motors[idx]
	s.log.Info().Str("motor_ref", placed.RefID).Int64("pond_id", s.pond.ID).Msg("motor placed")
	return &placed, nil
}

// RemoveMotor deletes a motor by reference id.
func (s *Session) RemoveMotor(ctx context.Context, refID string) error {
	return s.mutateMotor(ctx, CmdDeleteMotor, refID, nil)
}

// RenameMotor changes a motor's title.
func (s *Session) RenameMotor(ctx context.Context, refID, title string) error {
	return s.mutateMotor(ctx, CmdRenameMotor, refID, func(m *Motor) {
		m.Title = title
	})
}

// ChangeMotorPower changes a motor's rated power.
func (s *Session) ChangeMotorPower(ctx context.Context, refID string, powerHP float64) error {
	return s.mutateMotor(ctx, CmdChangeMotorPower, refID, func(m *Motor) {
		m.PowerHP = powerHP
	})
}

// mutateMotor wraps a single-motor edit in a draw command. A nil mutate
// deletes the motor. Motor edits are allowed from Idle and Editing; drawing
// and placement modes conflict.
func (s *Session) mutateMotor(ctx context.Context, kind CommandKind, refID string, mutate func(*Motor)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeIdle && s.mode != ModeEditing {
		return &StateConflictError{Op: string(kind), Mode: s.mode}
	}
	idx, ok := s.pond.FindMotor(refID)
	if !ok {
		return &NotFoundError{RefID: refID}
	}

	prior := s.pond.Clone()
	next := prior.Clone()
	var deletedID *int64
	if mutate == nil {
		deletedID = next.Motors[idx].ID
		next.Motors = append(next.Motors[:idx], next.Motors[idx+1:]...)
	} else {
		mutate(&next.Motors[idx])
	}

	s.pushLocked(DrawCommand{Kind: kind, Prior: prior, Next: next})

	if mutate == nil {
		if s.persist != nil && deletedID != nil {
			if err := s.persist.DeleteMotor(ctx, *deletedID); err != nil {
				s.metrics.IncPersistenceFailure()
				s.log.Error().Err(err).Str("motor_ref", refID).Msg("motor delete failed, rolling back")
				s.undoLocked()
				return &PersistenceError{Op: string(kind), Err: err}
			}
		}
		s.log.Info().Str("motor_ref", refID).Msg("motor removed")
		return nil
	}

	if err := s.persistMotorLocked(ctx, string(kind), refID); err != nil {
		return err
	}
	s.log.Info().Str("motor_ref", refID).Str("kind", string(kind)).Msg("motor updated")
	return nil
}

// persistMotorLocked saves the named motor, rolling the command back on
// failure. A backend-assigned id is adopted into the live motor and the top
// command's snapshot.
func (s *Session) persistMotorLocked(ctx context.Context, op, refID string) error {
	if s.persist == nil {
		return nil
	}

	idx, ok := s.pond.FindMotor(refID)
	if !ok {
		return nil
	}
	motor := s.pond.Motors[idx]

	id, err := s.persist.SaveMotor(ctx, s.pond.ID, &motor)
	if err != nil {
		s.metrics.IncPersistenceFailure()
		s.log.Error().Err(err).Str("op", op).Str("motor_ref", refID).Msg("motor persistence failed, rolling back")
		s.undoLocked()
		return &PersistenceError{Op: op, Err: err}
	}

	if id > 0 && (motor.ID == nil || *motor.ID != id) {
		s.pond.Motors[idx].ID = &id
		if top, ok := s.history.PeekUndo(); ok && top.Next != nil {
			if ti, found := top.Next.FindMotor(refID); found {
				assigned := id
				top.Next.Motors[ti].ID = &assigned
			}
		}
	}
	return nil
}

// SetMotorStatus applies a device status update (state and fault code) and
// refreshes the marker icon. Status comes from telemetry, not from the
// operator, so it bypasses the command history.
func (s *Session) SetMotorStatus(refID string, state MotorState, faultCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.pond.FindMotor(refID)
	if !ok {
		return &NotFoundError{RefID: refID}
	}
	s.pond.Motors[idx].State = state
	s.pond.Motors[idx].FaultCode = faultCode
	s.syncMarkersLocked()
	return nil
}

// syncMarkersLocked reconciles the surface markers with the live motor set:
// stale markers are removed, missing ones added, and markers whose icon or
// position changed are replaced.
func (s *Session) syncMarkersLocked() {
	want := make(map[string]Motor)
	if s.pond != nil {
		for _, m := range s.pond.Motors {
			want[m.RefID] = m
		}
	}

	for ref, mk := range s.markers {
		m, keep := want[ref]
		if keep && mk.icon == m.Icon() && mk.pos == m.Position {
			continue
		}
		s.surface.RemoveMarker(mk.handle)
		delete(s.markers, ref)
	}

	for ref, m := range want {
		if _, ok := s.markers[ref]; ok {
			continue
		}
		h := s.surface.AddMarker(m.Position, m.Icon())
		s.markers[ref] = markerRef{handle: h, icon: m.Icon(), pos: m.Position}
	}
}

// removeAllMarkersLocked clears every motor marker, used when switching
// ponds or closing the session.
func (s *Session) removeAllMarkersLocked() {
	for ref, mk := range s.markers {
		s.surface.RemoveMarker(mk.handle)
		delete(s.markers, ref)
	}
}
