// Package flyapi is a minimal client for the Fly.io Machines API, covering
// the app and machine listing endpoints the watcher needs.
package flyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/patdx/fly-watch/internal/model"
)

// DefaultBaseURL is the public Machines API endpoint.
const DefaultBaseURL = "https://api.machines.dev"

// Client talks to the Machines API over HTTP/JSON.
type Client struct {
	baseURL    string
	token      string
	orgSlug    string
	httpClient *http.Client
}

// New creates a client for the given base URL (empty = DefaultBaseURL).
// The token is sent as a bearer Authorization header on every request.
func New(baseURL, token, orgSlug string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		orgSlug:    orgSlug,
		httpClient: &http.Client{},
	}
}

// AppsResponse is the payload of GET /v1/apps.
type AppsResponse struct {
	TotalApps int         `json:"total_apps"`
	Apps      []model.App `json:"apps"`
}

// ListApps returns all apps in the configured organization.
func (c *Client) ListApps(ctx context.Context) ([]model.App, error) {
	var resp AppsResponse
	if err := c.getJSON(ctx, "/v1/apps?org_slug="+url.QueryEscape(c.orgSlug), &resp); err != nil {
		return nil, err
	}
	return resp.Apps, nil
}

// ListMachines returns the machines of one app, each with its embedded
// event log. The API omits the owning app from machine records, so it is
// stitched on here.
func (c *Client) ListMachines(ctx context.Context, appName string) ([]model.Machine, error) {
	var machines []model.Machine
	if err := c.getJSON(ctx, "/v1/apps/"+url.PathEscape(appName)+"/machines", &machines); err != nil {
		return nil, err
	}
	for i := range machines {
		machines[i].AppName = appName
	}
	return machines, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// APIError is a non-2xx response from the Machines API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("machines api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("machines api: HTTP %d: %s", e.StatusCode, e.Body)
}
