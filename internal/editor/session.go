package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/geocode"
	"pondops/editor-core/internal/history"
	"pondops/editor-core/internal/mapsurface"
	"pondops/editor-core/internal/metrics"
	"pondops/editor-core/internal/viewport"
)

// Mode is the editor's current interaction state.
type Mode string

const (
	ModeIdle           Mode = "idle"
	ModeDrawingPolygon Mode = "drawing_polygon"
	ModeDrawingLine    Mode = "drawing_line"
	ModeEditing        Mode = "editing"
	ModeAddingMotor    Mode = "adding_motor"
)

// Persister pushes committed edits to the external persistence endpoint.
// Save calls return the backend-assigned id.
type Persister interface {
	SavePond(ctx context.Context, p *Pond) (int64, error)
	DeletePond(ctx context.Context, id int64) error
	SaveMotor(ctx context.Context, pondID int64, m *Motor) (int64, error)
	DeleteMotor(ctx context.Context, id int64) error
}

// CommandObserver is notified of every applied, undone and redone command.
// Observers must not call back into the session.
type CommandObserver interface {
	Command(sessionID uuid.UUID, action string, seq int, cmd DrawCommand)
}

type markerRef struct {
	handle mapsurface.MarkerHandle
	icon   mapsurface.Icon
	pos    geo.Coordinate
}

// Options configures a new session. Persister, Observer, Metrics and
// Geocoder may be nil; the session degrades gracefully without them.
type Options struct {
	Layout      viewport.Layout
	Persister   Persister
	Observer    CommandObserver
	Metrics     *metrics.Metrics
	Fitter      *viewport.Fitter
	Geocoder    geocode.Geocoder
	Search      geocode.Options
	InitialPond *Pond
}

// Session is one operator's editing session: the active pond, the draw-mode
// state machine, the command history, the motor markers and the search
// session. All mutation is serialized through the session mutex, standing in
// for the single event loop the editor runs on in the browser.
type Session struct {
	id      uuid.UUID
	log     zerolog.Logger
	surface mapsurface.Surface
	persist Persister
	observe CommandObserver
	metrics *metrics.Metrics
	fitter  *viewport.Fitter
	layout  viewport.Layout
	search  *geocode.Searcher

	mu         sync.Mutex
	mode       Mode
	pond       *Pond
	draft      []geo.Coordinate
	markers    map[string]markerRef
	history    history.Stack[DrawCommand]
	seq        int
	nextTempID int64
	// fitTimer owns the deferred fit from FitWithResize; replaced or stopped
	// when a new fit supersedes it or the session closes.
	fitTimer *time.Timer
	closed   bool
}

// State is a point-in-time view of a session, safe to serialize.
type State struct {
	ID        uuid.UUID     `json:"id"`
	Mode      Mode          `json:"mode"`
	Pond      *Pond         `json:"pond,omitempty"`
	UndoDepth int           `json:"undo_depth"`
	RedoDepth int           `json:"redo_depth"`
	Search    geocode.State `json:"search"`
}

// NewSession creates an idle session bound to a map surface.
func NewSession(log zerolog.Logger, surface mapsurface.Surface, opts Options) *Session {
	id := uuid.New()
	log = log.With().Str("session_id", id.String()).Logger()

	fitter := opts.Fitter
	if fitter == nil {
		fitter = viewport.New()
	}
	layout := opts.Layout
	if layout == "" {
		layout = viewport.LayoutFull
	}

	s := &Session{
		id:         id,
		log:        log,
		surface:    surface,
		persist:    opts.Persister,
		observe:    opts.Observer,
		metrics:    opts.Metrics,
		fitter:     fitter,
		layout:     layout,
		mode:       ModeIdle,
		markers:    make(map[string]markerRef),
		nextTempID: -1,
	}
	if opts.Geocoder != nil {
		s.search = geocode.NewSearcher(log, opts.Geocoder, surface, opts.Metrics, opts.Search)
	}
	if opts.InitialPond != nil {
		s.pond = opts.InitialPond.Clone()
		s.syncMarkersLocked()
		s.fitter.FitToPolygon(surface, s.pond.Coordinates, layout)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Search returns the session's search service, nil when no geocoder is
// configured.
func (s *Session) Search() *geocode.Searcher { return s.search }

// StartPolygon arms the polygon drawing tool. Valid only from Idle.
func (s *Session) StartPolygon() error {
	return s.startDrawing("start polygon", mapsurface.KindPolygon, ModeDrawingPolygon)
}

// StartLine arms the line drawing tool. Valid only from Idle.
func (s *Session) StartLine() error {
	return s.startDrawing("start line", mapsurface.KindLine, ModeDrawingLine)
}

func (s *Session) startDrawing(op string, kind mapsurface.Kind, next Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeIdle {
		return &StateConflictError{Op: op, Mode: s.mode}
	}
	s.mode = next
	s.surface.StartDrawing(kind)
	s.log.Debug().Str("mode", string(next)).Msg("drawing started")
	return nil
}

// EditBoundary re-enters vertex editing on the committed boundary. Valid
// only from Editing.
func (s *Session) EditBoundary() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeEditing || s.pond == nil {
		return &StateConflictError{Op: "edit boundary", Mode: s.mode}
	}
	s.mode = ModeDrawingPolygon
	s.draft = append([]geo.Coordinate(nil), s.pond.Coordinates...)
	s.surface.StartDrawing(mapsurface.KindPolygon)
	return nil
}

// BeginAddMotor toggles motor placement. From Idle it enters AddingMotor;
// from AddingMotor it returns to Idle. Any other mode is a conflict.
func (s *Session) BeginAddMotor() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeAddingMotor:
		s.mode = ModeIdle
		return nil
	case ModeIdle:
		if s.pond == nil {
			return &StateConflictError{Op: "add motor without a pond", Mode: s.mode}
		}
		s.mode = ModeAddingMotor
		return nil
	default:
		return &StateConflictError{Op: "add motor", Mode: s.mode}
	}
}

// Cancel discards any in-progress geometry or placement and returns to Idle.
// Committed state and history are untouched.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeDrawingPolygon, ModeDrawingLine:
		s.surface.CancelDrawing()
	}
	s.draft = nil
	s.mode = ModeIdle
	s.log.Debug().Msg("operation cancelled")
}

// UpdateFeature tracks in-progress geometry reported by the surface while a
// drawing tool is active. Updates never touch committed state or history.
func (s *Session) UpdateFeature(coords []geo.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeDrawingPolygon, ModeDrawingLine:
		s.draft = append(s.draft[:0], coords...)
	}
}

// Undo reverts the most recent command. Returns false when there is nothing
// to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undoLocked()
}

func (s *Session) undoLocked() bool {
	cmd, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.applySnapshotLocked(cmd.Prior)
	s.seq++
	s.metrics.IncUndo()
	if s.observe != nil {
		s.observe.Command(s.id, "undo", s.seq, cmd)
	}
	s.log.Debug().Str("kind", string(cmd.Kind)).Msg("command undone")
	return true
}

// Redo re-applies the most recently undone command. Returns false when the
// redo stack is empty.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.applySnapshotLocked(cmd.Next)
	s.seq++
	s.metrics.IncRedo()
	if s.observe != nil {
		s.observe.Command(s.id, "redo", s.seq, cmd)
	}
	s.log.Debug().Str("kind", string(cmd.Kind)).Msg("command redone")
	return true
}

// applySnapshotLocked replaces the live pond with a snapshot copy and brings
// the marker set in line with it.
func (s *Session) applySnapshotLocked(snap *Pond) {
	s.pond = snap.Clone()
	s.syncMarkersLocked()
}

// pushLocked applies a freshly built command: the live pond becomes the Next
// snapshot and the command lands on the undo stack, discarding any redo
// branch.
func (s *Session) pushLocked(cmd DrawCommand) {
	s.applySnapshotLocked(cmd.Next)
	s.history.Push(cmd)
	s.seq++
	s.metrics.IncCommandApplied(string(cmd.Kind))
	if s.observe != nil {
		s.observe.Command(s.id, "apply", s.seq, cmd)
	}
}

// State returns a copy of the session's visible state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:        s.id,
		Mode:      s.mode,
		Pond:      s.pond.Clone(),
		UndoDepth: s.history.UndoDepth(),
		RedoDepth: s.history.RedoDepth(),
	}
	if s.search != nil {
		st.Search = s.search.State()
	}
	return st
}

// Close releases everything the session owns: the deferred fit timer, all
// motor markers and the search session with its marker and in-flight
// request. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.fitTimer != nil {
		s.fitTimer.Stop()
		s.fitTimer = nil
	}
	s.removeAllMarkersLocked()
	s.mu.Unlock()

	if s.search != nil {
		s.search.Close()
	}
	s.log.Debug().Msg("session closed")
}
