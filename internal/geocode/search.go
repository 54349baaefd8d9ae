package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pondops/editor-core/internal/geo"
	"pondops/editor-core/internal/mapsurface"
	"pondops/editor-core/internal/metrics"
)

const (
	// DefaultDebounce is how long input must stay quiet before a request
	// is issued.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultLimit caps results per request.
	DefaultLimit = 5
	// SelectZoom is the fixed zoom used when flying to a selected result.
	SelectZoom = 14.0
	// FlyDuration is the camera animation time for a selection.
	FlyDuration = 800 * time.Millisecond
)

// Options tunes a Searcher. Zero values fall back to the defaults above.
type Options struct {
	Debounce time.Duration
	Limit    int
}

// Searcher maintains one search session: the debounced query, the candidate
// list, the result marker on the map, and the generation counter that makes
// stale responses detectable.
type Searcher struct {
	log      zerolog.Logger
	geocoder Geocoder
	surface  mapsurface.Surface
	metrics  *metrics.Metrics
	debounce time.Duration
	limit    int

	mu         sync.Mutex
	generation uint64
	query      string
	results    []Place
	showList   bool
	timer      *time.Timer
	marker     mapsurface.MarkerHandle
	hasMarker  bool
	// skipEcho suppresses exactly one debounce cycle, consumed only when the
	// UI echoes back echoQuery, the programmatic query set by Select.
	skipEcho  bool
	echoQuery string
	closed    bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// State is a point-in-time view of the search session.
type State struct {
	Query      string  `json:"query"`
	Results    []Place `json:"results"`
	Generation uint64  `json:"generation"`
	ShowList   bool    `json:"show_list"`
}

func NewSearcher(log zerolog.Logger, geocoder Geocoder, surface mapsurface.Surface, m *metrics.Metrics, opts Options) *Searcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Searcher{
		log:      log,
		geocoder: geocoder,
		surface:  surface,
		metrics:  m,
		debounce: debounce,
		limit:    limit,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// SetQuery registers a query change and returns the new generation. An empty
// query clears results without issuing a request. Otherwise the debounce
// timer is restarted; only the query present when the timer fires is sent.
func (s *Searcher) SetQuery(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	gen := s.generation
	s.query = query
	s.stopTimerLocked()

	if s.closed {
		return gen
	}
	if query == "" {
		s.results = nil
		s.showList = false
		return gen
	}
	if s.skipEcho {
		s.skipEcho = false
		if query == s.echoQuery {
			return gen
		}
		// A real keystroke, not the echo: fall through to the debounce.
	}

	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
	return gen
}

// fire issues the geocoding request for generation gen, unless a newer query
// change superseded it while the timer was pending.
func (s *Searcher) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	query := s.query
	var proximity *geo.Coordinate
	if c, ok := s.surface.ViewportCenter(); ok {
		proximity = &c
	}
	ctx := s.baseCtx
	s.mu.Unlock()

	s.metrics.IncSearchRequest()
	places, err := s.geocoder.Search(ctx, query, proximity, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		// A newer keystroke owns the session now; this response is stale.
		s.metrics.IncSearchStaleDropped()
		s.log.Debug().Uint64("generation", gen).Uint64("latest", s.generation).Msg("stale geocoding response dropped")
		return
	}

	if err != nil {
		// Search failures are never fatal: log, clear, carry on.
		s.log.Error().Err(err).Str("query", query).Msg("geocoding request failed")
		s.results = nil
		s.showList = false
		return
	}

	s.results = places
	s.showList = true
}

// Select picks a result: replaces the search marker, flies the camera to the
// result at the fixed zoom, hides the list and adopts the display name as
// the query text without re-triggering a search.
func (s *Searcher) Select(index int) (Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.results) {
		return Place{}, fmt.Errorf("search result index %d out of range", index)
	}
	p := s.results[index]

	if s.hasMarker {
		s.surface.RemoveMarker(s.marker)
	}
	s.marker = s.surface.AddMarker(p.Center, mapsurface.IconSearch)
	s.hasMarker = true
	s.surface.FlyTo(p.Center, SelectZoom, FlyDuration)

	s.showList = false
	s.stopTimerLocked()
	// Invalidate any in-flight response and arm the one-shot suppression for
	// the echoed text change.
	s.generation++
	s.query = p.PlaceName
	s.skipEcho = true
	s.echoQuery = p.PlaceName

	return p, nil
}

// Clear removes the search marker and resets every session field.
func (s *Searcher) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Searcher) clearLocked() {
	s.stopTimerLocked()
	s.generation++
	s.query = ""
	s.results = nil
	s.showList = false
	s.skipEcho = false
	s.echoQuery = ""
	if s.hasMarker {
		s.surface.RemoveMarker(s.marker)
		s.hasMarker = false
	}
}

// Close clears the session and aborts any in-flight request. The searcher
// must not be used afterwards.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.clearLocked()
	s.closed = true
	s.cancel()
}

// State returns a copy of the current search session state.
func (s *Searcher) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]Place, len(s.results))
	copy(results, s.results)
	return State{
		Query:      s.query,
		Results:    results,
		Generation: s.generation,
		ShowList:   s.showList,
	}
}

func (s *Searcher) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
