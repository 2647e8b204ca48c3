package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://pypi.org"

// Status classifies the outcome of a registry lookup.
type Status int

const (
	// StatusFound means the package exists and a version was read.
	StatusFound Status = iota
	// StatusNotFound means the registry answered 404 for the slug.
	StatusNotFound
	// StatusUnreachable covers transport errors, timeouts and any
	// response that is neither 200 nor 404.
	StatusUnreachable
)

// Result is the outcome of resolving a package. Err carries the cause
// for StatusUnreachable and is meant for logging only.
type Result struct {
	Status  Status
	Version string
	Err     error
}

// Client resolves package versions against the PyPI JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a PyPI client. A nil httpClient gets a 10s timeout default.
func NewClient(httpClient *http.Client) *Client {
	return NewClientWithBaseURL(httpClient, defaultBaseURL)
}

// NewClientWithBaseURL allows overriding the base URL (useful for tests).
func NewClientWithBaseURL(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type projectInfo struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
}

// Resolve fetches the current published version of a package. It never
// returns an error; every failure mode maps to a Result status so that
// callers decide policy.
func (c *Client) Resolve(ctx context.Context, slug string) Result {
	url := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: StatusUnreachable, Err: fmt.Errorf("build request: %w", err)}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Status: StatusUnreachable, Err: fmt.Errorf("request project: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Status: StatusNotFound}
	case resp.StatusCode != http.StatusOK:
		return Result{Status: StatusUnreachable, Err: fmt.Errorf("project status: %d", resp.StatusCode)}
	}

	var project projectInfo
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return Result{Status: StatusUnreachable, Err: fmt.Errorf("decode project: %w", err)}
	}
	return Result{Status: StatusFound, Version: project.Info.Version}
}
