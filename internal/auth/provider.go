// Package auth holds the session's backend credentials and keeps the access
// token fresh. Tokens are issued by the backend login endpoint and rotated via
// the refresh endpoint; expiry is read from the access token's exp claim
// without verifying the signature (verification is the backend's job).
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"o-r.kr/buynow-web/internal/api"
)

// Leeway renews the access token this long before its actual expiry.
const Leeway = 5 * time.Minute

// ErrNotAuthenticated is returned when no credentials are held at all.
var ErrNotAuthenticated = errors.New("auth: not authenticated")

// Refresher trades a refresh token for fresh credentials. *api.Client
// satisfies it.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (api.Credentials, error)
}

// Provider implements api.TokenSource over a credential pair, refreshing
// on expiry. Safe for concurrent use within a request.
type Provider struct {
	mu        sync.Mutex
	creds     api.Credentials
	refresher Refresher
	now       func() time.Time
	onChange  func(api.Credentials)
}

// NewProvider wraps existing credentials. creds may be zero for an anonymous
// provider; Token then reports ErrNotAuthenticated.
func NewProvider(creds api.Credentials, refresher Refresher) *Provider {
	return &Provider{creds: creds, refresher: refresher, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// OnChange registers a callback invoked whenever the held credentials change
// (rotation, drop, logout), so the owner can persist them while the response
// is still open.
func (p *Provider) OnChange(fn func(api.Credentials)) *Provider {
	p.onChange = fn
	return p
}

func (p *Provider) setCredsLocked(creds api.Credentials) {
	p.creds = creds
	if p.onChange != nil {
		p.onChange(creds)
	}
}

// Authenticated reports whether any credentials are held.
func (p *Provider) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds.AccessToken != ""
}

// Credentials returns the current pair for persisting back into the session.
func (p *Provider) Credentials() api.Credentials {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds
}

// Logout drops the held credentials.
func (p *Provider) Logout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setCredsLocked(api.Credentials{})
}

// Valid reports whether the access token exists and is not within Leeway of
// its exp claim. Opaque (non-JWT) tokens are assumed valid and left to the
// backend to reject.
func (p *Provider) Valid(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return validAt(p.creds.AccessToken, now)
}

// Token returns a usable access token, refreshing first when the current one
// is expired or about to expire. A failed refresh drops the credentials so
// callers degrade to anonymous (or force re-login where auth is mandatory).
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.creds.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	if validAt(p.creds.AccessToken, p.now()) {
		return p.creds.AccessToken, nil
	}
	if err := p.refreshLocked(ctx); err != nil {
		p.setCredsLocked(api.Credentials{})
		return "", err
	}
	return p.creds.AccessToken, nil
}

// Refresh forces a token rotation regardless of expiry.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.creds.RefreshToken == "" {
		return ErrNotAuthenticated
	}
	return p.refreshLocked(ctx)
}

func (p *Provider) refreshLocked(ctx context.Context) error {
	if p.refresher == nil || p.creds.RefreshToken == "" {
		return ErrNotAuthenticated
	}
	creds, err := p.refresher.RefreshToken(ctx, p.creds.RefreshToken)
	if err != nil {
		return err
	}
	p.setCredsLocked(creds)
	return nil
}

func validAt(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// opaque token; no local expiry knowledge
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Add(Leeway).Before(exp.Time)
}
