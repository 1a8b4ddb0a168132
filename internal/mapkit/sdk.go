package mapkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"pickpoint/internal/domain"
)

const (
	geocodeTimeout  = 6 * time.Second
	geocodeCacheTTL = 30 * time.Minute
	userAgent       = "pickpoint/1.0"
)

// SDK is the loaded mapping toolkit. It is shared process-wide; Map
// instances created from it are not.
type SDK struct {
	geocodeURL string
	apiKey     string
	http       *http.Client
	geocache   *gocache.Cache
}

func newSDK(ctx context.Context, opts Options) (*SDK, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is not configured")
	}
	if opts.GeocodeURL == "" {
		return nil, fmt.Errorf("geocode endpoint is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &SDK{
		geocodeURL: opts.GeocodeURL,
		apiKey:     opts.APIKey,
		http:       &http.Client{Timeout: geocodeTimeout},
		geocache:   gocache.New(geocodeCacheTTL, geocodeCacheTTL),
	}, nil
}

// geocodeItem matches the geocoder's wire format; coordinates arrive as
// strings.
type geocodeItem struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Geocode resolves a free-text query to candidate coordinates, best match
// first. An empty result slice is not an error.
func (s *SDK) Geocode(ctx context.Context, query string) ([]domain.Coordinates, error) {
	if cached, ok := s.geocache.Get(query); ok {
		return cached.([]domain.Coordinates), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "5")
	params.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.geocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode %q: status %d", query, resp.StatusCode)
	}

	var items []geocodeItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("geocode %q: decode response: %w", query, err)
	}

	coords := make([]domain.Coordinates, 0, len(items))
	for _, item := range items {
		lat, latErr := strconv.ParseFloat(item.Lat, 64)
		lon, lonErr := strconv.ParseFloat(item.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		coords = append(coords, domain.Coordinates{Latitude: lat, Longitude: lon})
	}

	s.geocache.Set(query, coords, gocache.DefaultExpiration)
	return coords, nil
}

// NewMap creates a map instance owned by a single mounted widget.
func (s *SDK) NewMap(center domain.Coordinates, zoom int) *Map {
	return &Map{center: center, zoom: zoom}
}
