package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/draft"
	"o-r.kr/buynow-web/internal/prefs"
)

const sessionCookieName = "BUYNOW_WEB_SESSION"

// SessionData is the whole client-persisted state, signed into one cookie:
// backend credentials, the preference bundle, and the in-progress reservation
// draft. The cookie is the only serialize/deserialize boundary; everything
// else works on this struct in memory.
type SessionData struct {
	ID       string           `json:"id"`
	Creds    *api.Credentials `json:"creds,omitempty"`
	Prefs    prefs.Bundle     `json:"prefs,omitempty"`
	Draft    *draft.Record    `json:"draft,omitempty"`
	PrevPath string           `json:"prev,omitempty"`
	// SelectedSpace is the space the user is browsing inside a multi-space store.
	SelectedSpace int64     `json:"sel,omitempty"`
	CSRFToken     string    `json:"csrf,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	// internal dirty flag; not serialized
	dirty bool `json:"-"`
}

var sessionSignKey []byte
var sessionSecure bool

func init() {
	// signing key: prefer env var; if absent, generate a process-ephemeral one (dev only)
	key := os.Getenv("BUYNOW_WEB_SESSION_SIGNING_KEY")
	if key == "" {
		sessionSignKey = make([]byte, 32)
		if _, err := rand.Read(sessionSignKey); err != nil {
			log.Printf("session: failed to generate signing key: %v", err)
			sessionSignKey = []byte("insecure-dev-key-please-set-BUYNOW_WEB_SESSION_SIGNING_KEY")
		}
		log.Printf("session: using ephemeral signing key (dev). Set BUYNOW_WEB_SESSION_SIGNING_KEY for production.")
	} else {
		sessionSignKey = []byte(key)
	}
	sessionSecure = strings.ToLower(os.Getenv("BUYNOW_WEB_ENV")) == "prod"
}

// Session loads or initializes a session and stores it in request context.
// The cookie is rewritten just before the first body write when the session
// was mutated during the request.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := readSessionCookie(r)
		if sd.ID == "" {
			sd.ID = randID()
			sd.CreatedAt = time.Now().UTC()
			sd.UpdatedAt = sd.CreatedAt
			sd.CSRFToken = newCSRFToken()
			sd.dirty = true
		}
		ctx := context.WithValue(r.Context(), ctxKeySession, sd)
		rw := NewResponseRecorder(w)
		rw.SetBeforeWrite(func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				writeSessionCookie(w, sd)
			}
		})
		next.ServeHTTP(rw, r.WithContext(ctx))
		// nothing written yet (e.g. HEAD); persist the cookie now
		if !rw.Wrote() && (sd.dirty || !fromCookie) {
			writeSessionCookie(w, sd)
		}
	})
}

// GetSession returns session data from context.
func GetSession(r *http.Request) *SessionData {
	if v := r.Context().Value(ctxKeySession); v != nil {
		if sd, ok := v.(*SessionData); ok {
			return sd
		}
	}
	return &SessionData{}
}

// MarkDirty flags the session for writing at end of request.
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// RegenerateID assigns a new session ID and CSRF token to prevent fixation after login.
func (s *SessionData) RegenerateID() {
	s.ID = randID()
	s.CSRFToken = newCSRFToken()
	s.MarkDirty()
}

// SetCredentials stores backend tokens, regenerating the session on first login.
func (s *SessionData) SetCredentials(c *api.Credentials) {
	wasAuthed := s.Creds != nil
	s.Creds = c
	if c != nil && !wasAuthed {
		s.RegenerateID()
		return
	}
	s.MarkDirty()
}

// SelectSpace records (or clears, with 0) the browsed space.
func (s *SessionData) SelectSpace(spaceID int64) {
	if s.SelectedSpace == spaceID {
		return
	}
	s.SelectedSpace = spaceID
	s.MarkDirty()
}

// TrackPath records the path being served so the next request can see where
// the client came from. Only detail-flow paths are tracked.
func (s *SessionData) TrackPath(path string) {
	if s.PrevPath == path {
		return
	}
	s.PrevPath = path
	s.MarkDirty()
}

// DraftPersistence adapts the session to the draft store's Persistence
// interface, so the reservation draft rides in the signed cookie.
type DraftPersistence struct{ S *SessionData }

func (p DraftPersistence) Load() (draft.Record, bool) {
	if p.S.Draft == nil {
		return draft.Record{}, false
	}
	return *p.S.Draft, true
}

func (p DraftPersistence) Save(rec draft.Record) {
	p.S.Draft = &rec
	p.S.MarkDirty()
}

func (p DraftPersistence) Delete() {
	if p.S.Draft == nil {
		return
	}
	p.S.Draft = nil
	p.S.MarkDirty()
}

// readSessionCookie parses and verifies the signed session cookie.
func readSessionCookie(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 2 {
		return &SessionData{}, false
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return &SessionData{}, false
	}
	sigB, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return &SessionData{}, false
	}
	mac := hmac.New(sha256.New, sessionSignKey)
	mac.Write(payloadB)
	if !hmac.Equal(sigB, mac.Sum(nil)) {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := json.Unmarshal(payloadB, &sd); err != nil {
		return &SessionData{}, false
	}
	return &sd, true
}

func writeSessionCookie(w http.ResponseWriter, sd *SessionData) {
	b, _ := json.Marshal(sd)
	payload := base64.RawURLEncoding.EncodeToString(b)
	mac := hmac.New(sha256.New, sessionSignKey)
	mac.Write(b)
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    payload + "." + sig,
		Path:     "/",
		HttpOnly: true,
		Secure:   sessionSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}

func randID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
