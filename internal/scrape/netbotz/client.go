// Package netbotz scrapes readings from the web UI of APC Netbotz 500
// monitoring appliances. It implements the scrape capability consumed by
// the checker pool for hosts with the http protocol family.
package netbotz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrheling/pybotz/internal/checker"
	"github.com/jrheling/pybotz/internal/inventory"
)

// Client fetches and parses appliance pages. Per-call deadlines come from
// the caller's context; the client itself holds no timeout state.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Netbotz scrape client.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		logger:     logger.With("component", "netbotz"),
	}
}

// DiscoverModules returns the identifiers of the sensor modules currently
// attached to a host. Used at inventory-sync time only, never per tick.
func (c *Client) DiscoverModules(ctx context.Context, host inventory.Host) ([]string, error) {
	pageURL := baseURL(host) + "/pages/menu_noscript.html"

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	modules, err := ParseModuleList(body)
	if err != nil {
		return nil, fmt.Errorf("discovery of %s failed: %w", host.Address, err)
	}
	return modules, nil
}

// ScrapeModule fetches one batch of readings for every sensor a module
// currently exposes.
func (c *Client) ScrapeModule(ctx context.Context, host inventory.Host, moduleName string) ([]checker.SensorReading, error) {
	pageURL := baseURL(host) + "/pages/status.html?encid=" + url.QueryEscape(moduleName)

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	ts := time.Now()
	readings, err := ParseSensorTable(body, ts)
	if err != nil {
		return nil, fmt.Errorf("scrape of %s module %s failed: %w", host.Address, moduleName, err)
	}

	c.logger.Debug("scraped module",
		"host", host.Address,
		"module", moduleName,
		"readings", len(readings),
	)
	return readings, nil
}

// get performs a GET request and returns the body on a 200 response.
func (c *Client) get(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", pageURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("request to %s returned status %d", pageURL, resp.StatusCode)
	}

	return resp.Body, nil
}

// baseURL normalizes a configured host address into a scheme-qualified URL.
func baseURL(host inventory.Host) string {
	addr := strings.TrimSuffix(host.Address, "/")
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}
