// Package api is the typed client for the gateway HTTP surface, used by the
// dashboard client core and the headless CLI.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
	"github.com/lankasat/lankasat-live/internal/adapter/groq"
	"github.com/lankasat/lankasat-live/internal/adapter/openweather"
	"github.com/lankasat/lankasat-live/internal/auth"
	"github.com/lankasat/lankasat-live/internal/relief"
	"github.com/lankasat/lankasat-live/internal/shelters"
)

// DefaultBaseURL is used when LANKASAT_API_URL is unset.
const DefaultBaseURL = "http://localhost:8000"

// ErrUnauthorized is returned for 401 responses, typically an expired or
// invalidated session token.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the gateway. The bearer token is optional; unauthenticated
// requests simply omit it.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the given base URL. An empty baseURL falls back
// to the LANKASAT_API_URL environment variable, then to DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("LANKASAT_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the gateway base URL, for tile template building.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken installs (or with "" clears) the bearer token sent on requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// apiError is the gateway's JSON error envelope.
type apiError struct {
	Message string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var e apiError
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Message != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Health checks gateway liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// LayerInfo is the gateway's layer descriptor view.
type LayerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Layers lists the renderable satellite layers.
func (c *Client) Layers(ctx context.Context) ([]LayerInfo, error) {
	var resp struct {
		Layers []LayerInfo `json:"layers"`
	}
	if err := c.get(ctx, "/layers", &resp); err != nil {
		return nil, err
	}
	return resp.Layers, nil
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}, &session)
	return session, err
}

// Login authenticates an existing account.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	return session, err
}

// GuestLogin starts an anonymous guest session.
func (c *Client) GuestLogin(ctx context.Context) (auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/guest", nil, &session)
	return session, err
}

// Me validates the current token and returns the profile behind it.
func (c *Client) Me(ctx context.Context) (auth.User, error) {
	var user auth.User
	err := c.get(ctx, "/auth/me", &user)
	return user, err
}

// WeatherSummary fetches the island-wide weather picture.
func (c *Client) WeatherSummary(ctx context.Context) (openweather.Summary, error) {
	var resp struct {
		Data openweather.Summary `json:"data"`
	}
	err := c.get(ctx, "/weather", &resp)
	return resp.Data, err
}

// FloodSummary fetches the aggregated river gauge picture.
func (c *Client) FloodSummary(ctx context.Context) (floodapi.Summary, error) {
	var summary floodapi.Summary
	err := c.get(ctx, "/flood/summary", &summary)
	return summary, err
}

// ReliefDirectory fetches the grouped relief directory. force bypasses the
// gateway's cache.
func (c *Client) ReliefDirectory(ctx context.Context, force bool) (relief.Directory, error) {
	path := "/relief-directory"
	if force {
		path += "?refresh=true"
	}
	var dir relief.Directory
	err := c.get(ctx, path, &dir)
	return dir, err
}

// ReliefSearch free-text searches the relief directory.
func (c *Client) ReliefSearch(ctx context.Context, query string) (relief.SearchResult, error) {
	var result relief.SearchResult
	err := c.get(ctx, "/relief-directory/search?q="+url.QueryEscape(query), &result)
	return result, err
}

// Chat sends a message to the assistant with optional dashboard context and
// history, returning the reply text.
func (c *Client) Chat(ctx context.Context, message string, dash *groq.DashboardContext, history []groq.Message) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	err := c.do(ctx, http.MethodPost, "/chat", map[string]any{
		"message": message,
		"context": dash,
		"history": history,
	}, &resp)
	return resp.Response, err
}

// Shelters lists registered shelters, optionally filtered by status.
func (c *Client) Shelters(ctx context.Context, status string, limit, offset int) (shelters.List, error) {
	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if status != "" {
		params.Set("status", status)
	}
	var list shelters.List
	err := c.get(ctx, "/shelters?"+params.Encode(), &list)
	return list, err
}

// CreateShelter registers a new shelter under the current session.
func (c *Client) CreateShelter(ctx context.Context, in shelters.CreateInput) (shelters.Shelter, error) {
	var shelter shelters.Shelter
	err := c.do(ctx, http.MethodPost, "/shelters", in, &shelter)
	return shelter, err
}

// SatelliteStats fetches derived imagery statistics for a date.
func (c *Client) SatelliteStats(ctx context.Context, date string) (json.RawMessage, error) {
	var resp struct {
		Statistics json.RawMessage `json:"statistics"`
	}
	path := "/satellite/stats"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	err := c.get(ctx, path, &resp)
	return resp.Statistics, err
}
