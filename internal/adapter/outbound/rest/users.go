package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// ListUsers calls GET /api/users. The backend may answer with a bare array
// or with {"users": [...]}.
func (c *Client) ListUsers(ctx context.Context) ([]session.User, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/api/users"})
	if err != nil {
		return nil, err
	}
	var users []session.User
	if err := decodeEnvelope(resp.Body, "users", &users); err != nil {
		return nil, fmt.Errorf("GET /api/users: decode response: %w", err)
	}
	return users, nil
}

// GetUser calls GET /api/users/{id}.
func (c *Client) GetUser(ctx context.Context, id string) (*session.User, error) {
	return c.userCall(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil)
}

// UpdateUser calls PUT /api/users/{id} with a partial user.
func (c *Client) UpdateUser(ctx context.Context, id string, fields map[string]any) (*session.User, error) {
	return c.userCall(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), fields)
}

// DeleteUser calls DELETE /api/users/{id}.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.call(ctx, &Request{Method: http.MethodDelete, Path: "/api/users/" + url.PathEscape(id)}, nil)
}

// BulkDeleteUsers calls DELETE /api/bulk/{criteria}.
func (c *Client) BulkDeleteUsers(ctx context.Context, criteria string) (json.RawMessage, error) {
	return c.raw(ctx, &Request{Method: http.MethodDelete, Path: "/api/bulk/" + url.PathEscape(criteria)})
}

// BulkUpdateUsers calls PUT /api/bulk/{criteria}.
func (c *Client) BulkUpdateUsers(ctx context.Context, criteria string, fields map[string]any) (json.RawMessage, error) {
	req, err := jsonRequest(http.MethodPut, "/api/bulk/"+url.PathEscape(criteria), fields)
	if err != nil {
		return nil, err
	}
	return c.raw(ctx, req)
}

// userCall decodes either {"user": ...} or a bare user object.
func (c *Client) userCall(ctx context.Context, method, path string, body any) (*session.User, error) {
	req, err := jsonRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var u session.User
	if err := decodeEnvelope(resp.Body, "user", &u); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", req.Op(), err)
	}
	return &u, nil
}

// raw returns the response body untouched, for payloads this client passes through.
func (c *Client) raw(ctx context.Context, req *Request) (json.RawMessage, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return passthrough(resp.Body), nil
}
