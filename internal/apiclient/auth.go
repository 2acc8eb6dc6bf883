package apiclient

import (
	"context"
	"net/http"

	"github.com/alecgard/dktadmin/internal/auth"
)

// LoginResponse is the backend's answer to a successful credential exchange.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Authenticate exchanges credentials for a bearer token and profile
// (POST /auth/login).
func (c *Client) Authenticate(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := Request[LoginResponse](ctx, c, http.MethodPost, "/auth/login", Options{
		Body: map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Token == "" || resp.User == nil {
		return nil, &Error{Kind: KindDecode, StatusCode: http.StatusOK, Message: msgBadResponse, Method: http.MethodPost, Path: "/auth/login"}
	}
	return resp, nil
}

// CurrentUser fetches the profile that owns token (GET /user).
func (c *Client) CurrentUser(ctx context.Context, token string) (*auth.User, error) {
	u, err := Request[*auth.User](ctx, c, http.MethodGet, "/user", Options{Token: token})
	if err != nil {
		return nil, err
	}
	if u == nil || *u == nil || (*u).ID == 0 {
		status := http.StatusOK
		if u == nil {
			status = http.StatusNoContent
		}
		return nil, &Error{Kind: KindDecode, StatusCode: status, Message: msgBadResponse, Method: http.MethodGet, Path: "/user"}
	}
	return *u, nil
}

// Logout revokes token on the backend (POST /auth/logout).
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.Do(ctx, http.MethodPost, "/auth/logout", Options{Token: token}, nil)
	return err
}

// ForgotPassword asks the backend to mail a reset link. The returned message
// is empty when the backend sent none.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	resp, err := Request[messageResponse](ctx, c, http.MethodPost, "/auth/forgot-password", Options{
		Body: map[string]string{"email": email},
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return resp.Message, nil
}
