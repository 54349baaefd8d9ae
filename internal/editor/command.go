package editor

// CommandKind tags a draw command variant.
type CommandKind string

const (
	CmdAddPond          CommandKind = "add_pond"
	CmdUpdatePond       CommandKind = "update_pond"
	CmdDeletePond       CommandKind = "delete_pond"
	CmdAddMotor         CommandKind = "add_motor"
	CmdDeleteMotor      CommandKind = "delete_motor"
	CmdRenameMotor      CommandKind = "rename_motor"
	CmdChangeMotorPower CommandKind = "change_motor_power"
)

// DrawCommand is one reversible edit. It carries the full prior and new
// snapshot of the affected pond, so undo and redo restore state by value
// rather than by replaying deltas.
type DrawCommand struct {
	Kind CommandKind `json:"kind"`
	// Prior is nil for AddPond; Next is nil for DeletePond.
	Prior *Pond `json:"prior,omitempty"`
	Next  *Pond `json:"next,omitempty"`
}

// PondID returns the id of the affected pond.
func (c DrawCommand) PondID() int64 {
	if c.Next != nil {
		return c.Next.ID
	}
	if c.Prior != nil {
		return c.Prior.ID
	}
	return 0
}
