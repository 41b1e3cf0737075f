package rest

import (
	"context"
	"net/http"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

// userEnvelope is the {"user": ...} wrapper the profile endpoints use.
type userEnvelope struct {
	User *session.User `json:"user"`
}

// Register calls POST /api/register. Registration issues no token.
func (c *Client) Register(ctx context.Context, reg auth.Registration) error {
	req, err := jsonRequest(http.MethodPost, "/api/register", reg)
	if err != nil {
		return err
	}
	req.NoRefresh = true
	return c.call(ctx, req, nil)
}

// Login calls POST /api/login and returns the issued token and user.
// The token is not stored here; that is the session's job.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (*auth.Grant, error) {
	req, err := jsonRequest(http.MethodPost, "/api/login", creds)
	if err != nil {
		return nil, err
	}
	req.NoRefresh = true
	var grant auth.Grant
	if err := c.call(ctx, req, &grant); err != nil {
		return nil, err
	}
	if grant.Token == "" {
		return nil, &session.ServerError{Status: http.StatusOK, Message: "login response carried no token"}
	}
	return &grant, nil
}

// Logout calls POST /api/logout. A 401 here is not worth a refresh.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, &Request{Method: http.MethodPost, Path: "/api/logout", NoRefresh: true}, nil)
}

// Profile calls GET /api/profile.
func (c *Client) Profile(ctx context.Context) (*session.User, error) {
	var env userEnvelope
	if err := c.call(ctx, &Request{Method: http.MethodGet, Path: "/api/profile"}, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, &session.ServerError{Status: http.StatusOK, Message: "profile response carried no user"}
	}
	return env.User, nil
}

// UpdateProfile calls PUT /api/profile. When the response does not echo the
// user, the profile is fetched again.
func (c *Client) UpdateProfile(ctx context.Context, upd auth.ProfileUpdate) (*session.User, error) {
	req, err := jsonRequest(http.MethodPut, "/api/profile", upd)
	if err != nil {
		return nil, err
	}
	var env userEnvelope
	if err := c.call(ctx, req, &env); err != nil {
		return nil, err
	}
	if env.User != nil {
		return env.User, nil
	}
	return c.Profile(ctx)
}

// ChangePassword calls PUT /api/change-password.
func (c *Client) ChangePassword(ctx context.Context, pc auth.PasswordChange) error {
	req, err := jsonRequest(http.MethodPut, "/api/change-password", pc)
	if err != nil {
		return err
	}
	return c.call(ctx, req, nil)
}
