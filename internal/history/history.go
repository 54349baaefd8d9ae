// Package history implements the editor's undo/redo command stack. Commands
// carry full snapshots, so the stack itself never mutates domain state; it
// only orders and hands back the commands to apply or revert.
package history

// Stack holds the undo and redo stacks for one editing session. The zero
// value is ready to use. Depth is unbounded: stacks live only as long as the
// session and are never persisted.
type Stack[C any] struct {
	undo []C
	redo []C
}

// Push appends a freshly applied command and discards any redo branch.
func (s *Stack[C]) Push(cmd C) {
	s.undo = append(s.undo, cmd)
	s.redo = s.redo[:0]
}

// Undo pops the most recent command. ok is false when there is nothing to
// undo. The caller applies the command's prior snapshot.
func (s *Stack[C]) Undo() (cmd C, ok bool) {
	if len(s.undo) == 0 {
		var zero C
		return zero, false
	}
	cmd = s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, cmd)
	return cmd, true
}

// Redo pops the most recently undone command. ok is false when the redo
// stack is empty. The caller re-applies the command's new snapshot.
func (s *Stack[C]) Redo() (cmd C, ok bool) {
	if len(s.redo) == 0 {
		var zero C
		return zero, false
	}
	cmd = s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, cmd)
	return cmd, true
}

// PeekUndo returns the command Undo would pop, without popping it.
func (s *Stack[C]) PeekUndo() (cmd C, ok bool) {
	if len(s.undo) == 0 {
		var zero C
		return zero, false
	}
	return s.undo[len(s.undo)-1], true
}

// UndoDepth reports how many commands can be undone.
func (s *Stack[C]) UndoDepth() int { return len(s.undo) }

// RedoDepth reports how many commands can be redone.
func (s *Stack[C]) RedoDepth() int { return len(s.redo) }
