// Package geocode resolves free-text place queries against the external
// geocoding endpoint and drives the search-and-fly interaction.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"pondops/editor-core/internal/geo"
)

// Place is one geocoding candidate.
type Place struct {
	Center geo.Coordinate `json:"center"`
	// PlaceName is the full display name; Text is the short label.
	PlaceName string `json:"place_name"`
	Text      string `json:"text"`
}

// Geocoder issues one forward-geocoding request.
type Geocoder interface {
	Search(ctx context.Context, query string, proximity *geo.Coordinate, limit int) ([]Place, error)
}

// Client talks to a Mapbox-style forward geocoding endpoint.
type Client struct {
	log     zerolog.Logger
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(log zerolog.Logger, baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// geocodeResponse mirrors the endpoint's feature collection. Centers are
// [lng, lat] pairs.
type geocodeResponse struct {
	Features []struct {
		Center    []float64 `json:"center"`
		PlaceName string    `json:"place_name"`
		Text      string    `json:"text"`
	} `json:"features"`
}

func (c *Client) Search(ctx context.Context, query string, proximity *geo.Coordinate, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 5
	}

	u := fmt.Sprintf("%s/geocoding/v5/places/%s.json", c.baseURL, url.PathEscape(query))
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if c.token != "" {
		q.Set("access_token", c.token)
	}
	if proximity != nil {
		q.Set("proximity", fmt.Sprintf("%g,%g", proximity.Lng, proximity.Lat))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding endpoint returned status %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	out := make([]Place, 0, len(body.Features))
	for _, f := range body.Features {
		if len(f.Center) < 2 {
			continue
		}
		out = append(out, Place{
			Center:    geo.Coordinate{Lat: f.Center[1], Lng: f.Center[0]},
			PlaceName: f.PlaceName,
			Text:      f.Text,
		})
	}
	return out, nil
}
