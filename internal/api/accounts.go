package api

import (
	"context"
	"net/http"
)

// Credentials is the token pair issued by the login and refresh endpoints.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Message      string `json:"message"`
}

// UserProfile mirrors the accounts/user/me payload.
type UserProfile struct {
	Nickname string `json:"user_nickname"`
	Email    string `json:"user_email"`
	Address  string `json:"user_address"`
}

// Login exchanges an identity-provider id token for backend credentials.
func (c *Client) Login(ctx context.Context, idToken string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/accounts/login/",
		body:   map[string]string{"id_token": idToken},
	}, &creds)
	return creds, err
}

// RefreshToken trades a refresh token for a fresh access token. The refresh
// token itself may be rotated; callers must persist whatever comes back.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/accounts/login/refresh/",
		body:   map[string]string{"refresh_token": refreshToken},
	}, &creds)
	if err == nil && creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}
	return creds, err
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/accounts/user/me/",
		auth:   authRequired,
	}, &profile)
	return profile, err
}

// UpdateAddress patches the user's address. A 400 with errorCode
// INVALID_ADDRESS surfaces as a typed error for the handler to show verbatim.
func (c *Client) UpdateAddress(ctx context.Context, address string) (UserProfile, error) {
	var profile UserProfile
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/v1/accounts/user/me/",
		body:   map[string]string{"user_address": address},
		auth:   authRequired,
	}, &profile)
	return profile, err
}
