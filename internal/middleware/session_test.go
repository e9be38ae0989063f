package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/draft"
)

func sessionEcho(t *testing.T, mutate func(*SessionData)) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	h := Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSession(r)
		if mutate != nil {
			mutate(s)
		}
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return rec, c
		}
	}
	t.Fatalf("no session cookie set")
	return nil, nil
}

func TestSessionCookieRoundTrip(t *testing.T) {
	_, cookie := sessionEcho(t, func(s *SessionData) {
		s.Prefs.Time = "15:00"
		s.Prefs.LikedStoreIDs = []int64{7}
		s.Creds = &api.Credentials{AccessToken: "at", RefreshToken: "rt"}
		s.Draft = &draft.Record{ID: "drf_x", CreatedAt: time.Now().UTC()}
		s.MarkDirty()
	})

	var got *SessionData
	h := Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID == "" {
		t.Fatalf("session not restored")
	}
	if got.Prefs.Time != "15:00" || !got.Prefs.Liked(7) {
		t.Fatalf("prefs not restored: %+v", got.Prefs)
	}
	if got.Creds == nil || got.Creds.AccessToken != "at" {
		t.Fatalf("credentials not restored")
	}
	if got.Draft == nil || got.Draft.ID != "drf_x" {
		t.Fatalf("draft not restored")
	}
}

func TestTamperedCookieIsDropped(t *testing.T) {
	_, cookie := sessionEcho(t, func(s *SessionData) {
		s.Prefs.Time = "15:00"
		s.MarkDirty()
	})
	firstID := ""
	h := Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSession(r)
		firstID = s.ID
		if s.Prefs.Time != "" {
			t.Fatalf("tampered session payload must not be trusted")
		}
	}))

	parts := strings.SplitN(cookie.Value, ".", 2)
	cookie.Value = parts[0] + "x." + parts[1]
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if firstID == "" {
		t.Fatalf("a fresh session should replace the tampered one")
	}
}

func TestDraftPersistenceAdapter(t *testing.T) {
	s := &SessionData{ID: "s1"}
	store := draft.NewStore(DraftPersistence{S: s})

	rec := store.Start(api.Menu{MenuID: 3, Name: "cut"}, nil)
	if s.Draft == nil || s.Draft.ID != rec.ID {
		t.Fatalf("start must persist into the session")
	}
	if !s.dirty {
		t.Fatalf("saving a draft must dirty the session")
	}

	got, err := store.Restore()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Menu.Name != "cut" {
		t.Fatalf("restored wrong draft: %+v", got)
	}

	store.Cancel()
	if s.Draft != nil {
		t.Fatalf("cancel must delete the session draft")
	}
}

func TestCSRFBlocksFormPostWithoutToken(t *testing.T) {
	h := Session(CSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodPost, "/likes/7", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
