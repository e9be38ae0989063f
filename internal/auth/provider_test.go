package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"o-r.kr/buynow-web/internal/api"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

type stubRefresher struct {
	creds api.Credentials
	err   error
	calls int
}

func (s *stubRefresher) RefreshToken(ctx context.Context, refreshToken string) (api.Credentials, error) {
	s.calls++
	if s.err != nil {
		return api.Credentials{}, s.err
	}
	return s.creds, nil
}

func TestValidRespectsLeeway(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	p := NewProvider(api.Credentials{AccessToken: signedToken(t, now.Add(10*time.Minute))}, nil)
	require.True(t, p.Valid(now))
	// inside the 5-minute leeway window counts as expired
	require.False(t, p.Valid(now.Add(6*time.Minute)))
}

func TestTokenRefreshesExpiredAccessToken(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	fresh := signedToken(t, now.Add(time.Hour))
	ref := &stubRefresher{creds: api.Credentials{AccessToken: fresh, RefreshToken: "r2"}}

	p := NewProvider(api.Credentials{
		AccessToken:  signedToken(t, now.Add(-time.Minute)),
		RefreshToken: "r1",
	}, ref).WithClock(func() time.Time { return now })

	got, err := p.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, got)
	require.Equal(t, 1, ref.calls)
	require.Equal(t, "r2", p.Credentials().RefreshToken)
}

func TestTokenDropsCredentialsOnRefreshFailure(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	ref := &stubRefresher{err: errors.New("refresh rejected")}
	p := NewProvider(api.Credentials{
		AccessToken:  signedToken(t, now.Add(-time.Minute)),
		RefreshToken: "r1",
	}, ref).WithClock(func() time.Time { return now })

	_, err := p.Token(context.Background())
	require.Error(t, err)
	require.False(t, p.Authenticated())
}

func TestAnonymousProvider(t *testing.T) {
	p := NewProvider(api.Credentials{}, nil)
	require.False(t, p.Authenticated())
	_, err := p.Token(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestOpaqueTokenAssumedValid(t *testing.T) {
	p := NewProvider(api.Credentials{AccessToken: "opaque-token"}, nil)
	require.True(t, p.Valid(time.Now()))
	got, err := p.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "opaque-token", got)
}
