// Package geocode resolves free-text locations through an OpenCage-style
// forward geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"terratruce-gateway/internal/upstream"
	"terratruce-gateway/pkg/logging/logging"
)

// DefaultPath is the OpenCage JSON endpoint relative to the base URL.
const DefaultPath = "/geocode/v1/json"

// ErrNoResults is returned when the provider answers with an empty result list.
var ErrNoResults = errors.New("geocode: no results")

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Details struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	State       string `json:"state"`
	County      string `json:"county"`
	City        string `json:"city"`
	Postcode    string `json:"postcode"`
	Road        string `json:"road"`
	Suburb      string `json:"suburb"`
}

type Metadata struct {
	Timezone   string  `json:"timezone"`
	Currency   string  `json:"currency"`
	Flag       string  `json:"flag,omitempty"`
	Continent  string  `json:"continent"`
	Confidence float64 `json:"confidence"`
}

// Location is the normalized first result of a forward geocode.
type Location struct {
	FormattedAddress string      `json:"formatted_address"`
	Coordinates      Coordinates `json:"coordinates"`
	Details          Details     `json:"location_details"`
	Metadata         Metadata    `json:"metadata"`
}

// Region is the state, falling back to the county.
func (l *Location) Region() string {
	if l.Details.State != "" {
		return l.Details.State
	}
	return l.Details.County
}

type Client struct {
	gw     *upstream.Gateway
	path   string
	logger *zap.Logger
}

// New wraps gw. An empty path uses DefaultPath; a same-origin proxy passes
// its own route.
func New(gw *upstream.Gateway, path string, logger *zap.Logger) *Client {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{gw: gw, path: path, logger: logger.Named("geocode")}
}

// Geocode looks up query and returns the best match.
func (c *Client) Geocode(ctx context.Context, query string) (*Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("geocode: empty query")
	}

	raw, err := c.gw.Call(ctx, http.MethodGet, c.path, url.Values{
		"q":              {query},
		"limit":          {"1"},
		"no_annotations": {"0"},
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp providerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(resp.Results) == 0 {
		logging.Or(ctx, c.logger).Debug("geocode_no_results", zap.Int("provider_status", resp.Status.Code))
		return nil, ErrNoResults
	}

	return resp.Results[0].location(), nil
}

// Context renders the prompt context block for a location. When loc is nil
// only the raw query is given.
func Context(loc *Location, raw string) string {
	if loc == nil {
		return "Location: " + raw
	}

	lines := []string{
		"Location: " + loc.FormattedAddress,
		fmt.Sprintf("Country: %s (%s)", loc.Details.Country, loc.Details.CountryCode),
	}
	if loc.Details.State != "" {
		lines = append(lines, "State/Region: "+loc.Details.State)
	}
	if loc.Details.City != "" {
		lines = append(lines, "City: "+loc.Details.City)
	}
	if loc.Details.County != "" {
		lines = append(lines, "County: "+loc.Details.County)
	}
	lines = append(lines,
		"Timezone: "+loc.Metadata.Timezone,
		"Coordinates: "+formatCoord(loc.Coordinates.Lat)+", "+formatCoord(loc.Coordinates.Lng),
	)
	return strings.Join(lines, "\n")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type providerResponse struct {
	Results []providerResult `json:"results"`
	Status  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

type providerResult struct {
	Formatted   string              `json:"formatted"`
	Geometry    Coordinates         `json:"geometry"`
	Components  map[string]any      `json:"components"`
	Confidence  float64             `json:"confidence"`
	Annotations providerAnnotations `json:"annotations"`
}

type providerAnnotations struct {
	Timezone struct {
		Name string `json:"name"`
	} `json:"timezone"`
	Currency struct {
		Name string `json:"name"`
	} `json:"currency"`
	Flag string `json:"flag"`
}

func (r providerResult) location() *Location {
	timezone := r.Annotations.Timezone.Name
	if timezone == "" {
		timezone = "UTC"
	}
	country := r.component("country")
	if country == "" {
		country = "Unknown"
	}

	return &Location{
		FormattedAddress: r.Formatted,
		Coordinates:      r.Geometry,
		Details: Details{
			Country:     country,
			CountryCode: strings.ToUpper(r.component("country_code")),
			State:       r.component("state", "state_code"),
			County:      r.component("county"),
			City:        r.component("city", "town", "village"),
			Postcode:    r.component("postcode"),
			Road:        r.component("road"),
			Suburb:      r.component("suburb", "neighbourhood"),
		},
		Metadata: Metadata{
			Timezone:   timezone,
			Currency:   r.Annotations.Currency.Name,
			Flag:       r.Annotations.Flag,
			Continent:  r.component("continent"),
			Confidence: r.Confidence,
		},
	}
}

// component returns the first non-empty string among names. OpenCage sends
// some components (postcode) as numbers for some countries.
func (r providerResult) component(names ...string) string {
	for _, name := range names {
		switch v := r.Components[name].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
