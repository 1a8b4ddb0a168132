// Package directory talks to the pickup-point directory service. The
// widget core consumes the Directory interface; the HTTP client here is
// the production implementation against the CDEK-style REST API.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"pickpoint/internal/domain"
	"pickpoint/internal/logging"
)

// Directory abstracts the two directory operations the widget needs.
// Implementations must be safe for concurrent use.
type Directory interface {
	SearchPoints(ctx context.Context, cityName, countryCode, queryText string, limit int) ([]domain.Point, error)
	FetchPointByID(ctx context.Context, id domain.PointID) (*domain.Point, error)
}

const (
	requestTimeout = 15 * time.Second
	lookupCacheTTL = 5 * time.Minute
)

// Client is the HTTP implementation of Directory.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client

	tokenMu    sync.Mutex
	token      string
	tokenUntil time.Time

	lookups *gocache.Cache
}

// NewClient creates a directory client for the given API base URL and
// OAuth client credentials.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: requestTimeout},
		lookups:      gocache.New(lookupCacheTTL, 2*lookupCacheTTL),
	}
}

// wire shapes, matching the delivery-point API response.

type wirePhone struct {
	Number string `json:"number"`
}

type wireLocation struct {
	AddressFull string   `json:"address_full"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	CityCode    int      `json:"city_code"`
	Region      string   `json:"region"`
	CountryCode string   `json:"country_code"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type wirePoint struct {
	UUID     string       `json:"uuid"`
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	WorkTime string       `json:"work_time"`
	Note     string       `json:"note"`
	Location wireLocation `json:"location"`
	Phones   []wirePhone  `json:"phones"`
}

func (w wirePoint) toDomain() domain.Point {
	p := domain.Point{
		ID:          domain.PointID(w.UUID),
		Code:        w.Code,
		Name:        w.Name,
		Type:        domain.PointType(w.Type),
		AddressFull: w.Location.AddressFull,
		CityName:    w.Location.City,
		RegionName:  w.Location.Region,
		CountryCode: w.Location.CountryCode,
		WorkTime:    w.WorkTime,
		Note:        w.Note,
	}
	if p.AddressFull == "" {
		p.AddressFull = w.Location.Address
	}
	if w.Location.CityCode != 0 {
		p.CityCode = strconv.Itoa(w.Location.CityCode)
	}
	if len(w.Phones) > 0 {
		p.Phone = w.Phones[0].Number
	}
	if w.Location.Latitude != nil && w.Location.Longitude != nil {
		p.Coords = &domain.Coordinates{
			Latitude:  *w.Location.Latitude,
			Longitude: *w.Location.Longitude,
		}
	}
	return p
}

// SearchPoints queries the directory for points in a city matching the
// free text. The service owns relevance order; results come back as-is.
func (c *Client) SearchPoints(ctx context.Context, cityName, countryCode, queryText string, limit int) ([]domain.Point, error) {
	params := url.Values{}
	if cityName != "" {
		params.Set("city", cityName)
	}
	if countryCode != "" {
		params.Set("country_code", strings.ToUpper(countryCode))
	}
	if queryText != "" {
		params.Set("q", queryText)
	}
	if limit > 0 {
		params.Set("size", strconv.Itoa(limit))
	}

	body, err := c.request(ctx, http.MethodGet, "/deliverypoints", params)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	var wire []wirePoint
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("search points: decode response: %w", err)
	}

	points := make([]domain.Point, 0, len(wire))
	for _, w := range wire {
		points = append(points, w.toDomain())
	}
	logging.GetLogger().Debug("directory search",
		zap.String("city", cityName),
		zap.String("query", queryText),
		zap.Int("results", len(points)))
	return points, nil
}

// FetchPointByID fetches a single point. Returns (nil, nil) when the
// directory has no point with that id. Results are cached briefly since
// external record reloads tend to re-ask for the same id.
func (c *Client) FetchPointByID(ctx context.Context, id domain.PointID) (*domain.Point, error) {
	if cached, ok := c.lookups.Get(string(id)); ok {
		p := cached.(domain.Point)
		return &p, nil
	}

	body, err := c.request(ctx, http.MethodGet, "/deliverypoints/"+url.PathEscape(string(id)), nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch point %s: %w", id, err)
	}

	var w wirePoint
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("fetch point %s: decode response: %w", id, err)
	}
	p := w.toDomain()
	c.lookups.Set(string(id), p, gocache.DefaultExpiration)
	return &p, nil
}

// statusError carries the HTTP status for error classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("directory service returned %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

// request performs an authenticated call, refreshing the token once on 401.
func (c *Client) request(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	body, err := c.do(ctx, method, path, params)
	if se, ok := err.(*statusError); ok && se.status == http.StatusUnauthorized {
		logging.GetLogger().Warn("directory token rejected, refreshing")
		c.invalidateToken()
		return c.do(ctx, method, path, params)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// accessToken returns the cached OAuth token, requesting a new one when
// missing or expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenUntil) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch access token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("fetch access token: decode response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("fetch access token: token missing from response")
	}

	c.token = tok.AccessToken
	expires := time.Duration(tok.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = time.Hour
	}
	// Renew a little early so in-flight requests don't race the expiry.
	c.tokenUntil = time.Now().Add(expires - 30*time.Second)
	logging.GetLogger().Info("directory access token obtained")
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}
