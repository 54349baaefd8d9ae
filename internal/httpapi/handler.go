package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pondops/editor-core/internal/db"
	"pondops/editor-core/internal/editor"
	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/geocode"
	"pondops/editor-core/internal/mapsurface"
	"pondops/editor-core/internal/metrics"
	"pondops/editor-core/internal/viewport"
)

// Deps carries the collaborators sessions are built from. Persister,
// Geocoder, Observer, Pool and Metrics may all be nil.
type Deps struct {
	Persister editor.Persister
	Geocoder  geocode.Geocoder
	Observer  editor.CommandObserver
	Search    geocode.Options
	Pool      *db.Pool
	Metrics   *metrics.Metrics
}

type sessionEntry struct {
	session *editor.Session
	surface *queueSurface
}

type Handler struct {
	log  zerolog.Logger
	deps Deps

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
}

func NewHandler(log zerolog.Logger, deps Deps) *Handler {
	return &Handler{
		log:      log,
		deps:     deps,
		sessions: make(map[uuid.UUID]*sessionEntry),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.handleCreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetSession)
					r.Delete("/", h.handleDeleteSession)
					r.Get("/directives", h.handleDirectives)
					r.Put("/viewport", h.handleViewport)
					r.Post("/refit", h.handleRefit)
					r.Post("/mode", h.handleMode)
					r.Post("/features", h.handleCompleteFeature)
					r.Put("/features/draft", h.handleFeatureDraft)
					r.Post("/undo", h.handleUndo)
					r.Post("/redo", h.handleRedo)
					r.Delete("/pond", h.handleDeletePond)
					r.Route("/motors", func(r chi.Router) {
						r.Post("/", h.handlePlaceMotor)
						r.Patch("/{refID}", h.handlePatchMotor)
						r.Delete("/{refID}", h.handleRemoveMotor)
					})
					r.Route("/search", func(r chi.Router) {
						r.Post("/", h.handleSearchQuery)
						r.Post("/select", h.handleSearchSelect)
						r.Delete("/", h.handleSearchClear)
					})
				})
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		h.deps.Metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.Status(), elapsed)
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

// routePattern labels metrics with the chi route template rather than the raw
// path, keeping label cardinality bounded.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	body := map[string]any{
		"code":    code,
		"message": msg,
	}
	if details != nil {
		body["details"] = details
	}
	h.writeJSON(w, status, map[string]any{"error": body})
}

// writeEditorError maps the editor error taxonomy onto HTTP statuses.
func (h *Handler) writeEditorError(w http.ResponseWriter, err error) {
	var validation *editor.ValidationError
	var conflict *editor.StateConflictError
	var persistence *editor.PersistenceError
	var notFound *editor.NotFoundError

	switch {
	case errors.As(err, &validation):
		h.writeError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Error(), nil)
	case errors.As(err, &conflict):
		h.writeError(w, http.StatusConflict, "state_conflict", conflict.Error(), map[string]any{"mode": string(conflict.Mode)})
	case errors.As(err, &persistence):
		h.writeError(w, http.StatusBadGateway, "persistence_failed", persistence.Error(), nil)
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, "not_found", notFound.Error(), nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// The command journal database is optional; without one configured the
	// service is still ready.
	if h.deps.Pool != nil {
		if err := h.deps.Pool.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "journal database not ready", map[string]any{"error": err.Error()})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*sessionEntry, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "session id is not a valid uuid", map[string]any{"id": raw})
		return nil, false
	}

	h.mu.Lock()
	e, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", map[string]any{"id": raw})
		return nil, false
	}
	return e, true
}

type createSessionRequest struct {
	Layout string       `json:"layout,omitempty"`
	Pond   *editor.Pond `json:"pond,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSONStrict(r, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
			return
		}
	}

	layout := viewport.LayoutFull
	switch req.Layout {
	case "", string(viewport.LayoutFull):
	case string(viewport.LayoutEmbedded):
		layout = viewport.LayoutEmbedded
	default:
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid layout", map[string]any{"layout": req.Layout})
		return
	}

	surface := newQueueSurface()
	sess := editor.NewSession(h.log, surface, editor.Options{
		Layout:      layout,
		Persister:   h.deps.Persister,
		Observer:    h.deps.Observer,
		Metrics:     h.deps.Metrics,
		Geocoder:    h.deps.Geocoder,
		Search:      h.deps.Search,
		InitialPond: req.Pond,
	})

	h.mu.Lock()
	h.sessions[sess.ID()] = &sessionEntry{session: sess, surface: surface}
	h.mu.Unlock()

	h.log.Info().Str("session_id", sess.ID().String()).Str("layout", string(layout)).Msg("editor session created")
	h.writeJSON(w, http.StatusCreated, sess.State())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, e.session.State())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}

	e.session.Close()
	h.mu.Lock()
	delete(h.sessions, e.session.ID())
	h.mu.Unlock()

	h.log.Info().Str("session_id", e.session.ID().String()).Msg("editor session closed")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDirectives(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"directives": e.surface.Drain()})
}

type viewportRequest struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Center *geo.Coordinate `json:"center,omitempty"`
}

func (h *Handler) handleViewport(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req viewportRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	e.surface.SetViewport(req.Width, req.Height, req.Center)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRefit(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	e.session.Refit()
	w.WriteHeader(http.StatusAccepted)
}

type modeRequest struct {
	Command string `json:"command"`
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	var err error
	switch req.Command {
	case "start_polygon":
		err = e.session.StartPolygon()
	case "start_line":
		err = e.session.StartLine()
	case "edit_boundary":
		err = e.session.EditBoundary()
	case "add_motor":
		err = e.session.BeginAddMotor()
	case "cancel":
		e.session.Cancel()
	default:
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown mode command", map[string]any{"command": req.Command})
		return
	}
	if err != nil {
		h.writeEditorError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, e.session.State())
}

type featureRequest struct {
	Kind        string           `json:"kind"`
	Coordinates []geo.Coordinate `json:"coordinates"`
	Title       string           `json:"title,omitempty"`
}

func (h *Handler) handleCompleteFeature(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req featureRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	var kind mapsurface.Kind
	switch req.Kind {
	case string(mapsurface.KindPolygon):
		kind = mapsurface.KindPolygon
	case string(mapsurface.KindLine):
		kind = mapsurface.KindLine
	default:
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown feature kind", map[string]any{"kind": req.Kind})
		return
	}

	pond, err := e.session.CompleteFeature(r.Context(), kind, req.Coordinates, req.Title)
	if err != nil {
		h.writeEditorError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pond)
}

type featureDraftRequest struct {
	Coordinates []geo.Coordinate `json:"coordinates"`
}

func (h *Handler) handleFeatureDraft(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req featureDraftRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	e.session.UpdateFeature(req.Coordinates)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	applied := e.session.Undo()
	h.writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "session": e.session.State()})
}

func (h *Handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	applied := e.session.Redo()
	h.writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "session": e.session.State()})
}

func (h *Handler) handleDeletePond(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := e.session.DeletePond(r.Context()); err != nil {
		h.writeEditorError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, e.session.State())
}

type placeMotorRequest struct {
	Position geo.Coordinate `json:"position"`
	Title    string         `json:"title,omitempty"`
	PowerHP  float64        `json:"power_hp,omitempty"`
}

func (h *Handler) handlePlaceMotor(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req placeMotorRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	motor, err := e.session.PlaceMotor(r.Context(), req.Position, req.Title, req.PowerHP)
	if err != nil {
		h.writeEditorError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, motor)
}

type patchMotorRequest struct {
	Title     *string            `json:"title,omitempty"`
	PowerHP   *float64           `json:"power_hp,omitempty"`
	State     *editor.MotorState `json:"state,omitempty"`
	FaultCode *int               `json:"fault_code,omitempty"`
}

func (h *Handler) handlePatchMotor(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	refID := chi.URLParam(r, "refID")
	var req patchMotorRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	if req.Title != nil {
		if err := e.session.RenameMotor(r.Context(), refID, *req.Title); err != nil {
			h.writeEditorError(w, err)
			return
		}
	}
	if req.PowerHP != nil {
		if err := e.session.ChangeMotorPower(r.Context(), refID, *req.PowerHP); err != nil {
			h.writeEditorError(w, err)
			return
		}
	}
	if req.State != nil || req.FaultCode != nil {
		state := editor.MotorOff
		fault := 0
		if cur := currentMotor(e.session, refID); cur != nil {
			state = cur.State
			fault = cur.FaultCode
		}
		if req.State != nil {
			state = *req.State
		}
		if req.FaultCode != nil {
			fault = *req.FaultCode
		}
		if err := e.session.SetMotorStatus(refID, state, fault); err != nil {
			h.writeEditorError(w, err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, e.session.State())
}

func currentMotor(s *editor.Session, refID string) *editor.Motor {
	st := s.State()
	if st.Pond == nil {
		return nil
	}
	if i, ok := st.Pond.FindMotor(refID); ok {
		return &st.Pond.Motors[i]
	}
	return nil
}

func (h *Handler) handleRemoveMotor(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := e.session.RemoveMotor(r.Context(), chi.URLParam(r, "refID")); err != nil {
		h.writeEditorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h *Handler) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	search := e.session.Search()
	if search == nil {
		h.writeError(w, http.StatusServiceUnavailable, "search_unavailable", "no geocoder configured", nil)
		return
	}
	var req searchRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	gen := search.SetQuery(req.Query)
	h.writeJSON(w, http.StatusAccepted, map[string]any{"generation": gen})
}

type searchSelectRequest struct {
	Index int `json:"index"`
}

func (h *Handler) handleSearchSelect(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	search := e.session.Search()
	if search == nil {
		h.writeError(w, http.StatusServiceUnavailable, "search_unavailable", "no geocoder configured", nil)
		return
	}
	var req searchSelectRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	place, err := search.Select(req.Index)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"index": req.Index})
		return
	}
	h.writeJSON(w, http.StatusOK, place)
}

func (h *Handler) handleSearchClear(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	if search := e.session.Search(); search != nil {
		search.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseAll shuts down every live session. Called on server shutdown.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	entries := make([]*sessionEntry, 0, len(h.sessions))
	for id, e := range h.sessions {
		entries = append(entries, e)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
}
