package middleware

import (
	"context"
	"net/http"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/auth"
)

// Auth hydrates a credential provider from the session's stored tokens. Any
// credential change during the request (refresh rotation, drop after a failed
// refresh, logout) is pushed straight back into the session, which still gets
// serialized into the cookie because token work happens before the response
// body is written.
func Auth(refresher auth.Refresher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r)
			var creds api.Credentials
			if s.Creds != nil {
				creds = *s.Creds
			}
			p := auth.NewProvider(creds, refresher).OnChange(func(c api.Credentials) {
				if c.AccessToken == "" {
					s.Creds = nil
				} else {
					cc := c
					s.Creds = &cc
				}
				s.MarkDirty()
			})
			ctx := context.WithValue(r.Context(), ctxKeyAuth, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Credentials returns the request's credential provider. An anonymous provider
// is returned when the middleware did not run.
func Credentials(r *http.Request) *auth.Provider {
	if v := r.Context().Value(ctxKeyAuth); v != nil {
		if p, ok := v.(*auth.Provider); ok {
			return p
		}
	}
	return auth.NewProvider(api.Credentials{}, nil)
}

// RequireAuth redirects unauthenticated requests to the login screen.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Credentials(r).Authenticated() {
			http.Redirect(w, r, "/login?next="+r.URL.Path, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
