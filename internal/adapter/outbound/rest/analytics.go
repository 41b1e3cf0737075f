package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/docdesk/docdesk/internal/domain/document"
)

// DashboardStats calls GET /api/analytics/dashboard. The payload is passed through.
func (c *Client) DashboardStats(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, &Request{Method: http.MethodGet, Path: "/api/analytics/dashboard"})
}

// UsageStats calls GET /api/analytics/usage. An empty period means "7d".
func (c *Client) UsageStats(ctx context.Context, period string) (json.RawMessage, error) {
	if period == "" {
		period = "7d"
	}
	return c.raw(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/api/analytics/usage",
		Query:  url.Values{"period": {period}},
	})
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*document.Health, error) {
	var h document.Health
	if err := c.call(ctx, &Request{Method: http.MethodGet, Path: "/health", NoRefresh: true}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DetailedHealth calls GET /health/detailed. The payload is passed through.
func (c *Client) DetailedHealth(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, &Request{Method: http.MethodGet, Path: "/health/detailed", NoRefresh: true})
}
