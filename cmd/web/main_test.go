package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/content"
	"o-r.kr/buynow-web/internal/shopnav"
)

// fakeBackend is a minimal reservation API the storefront can run against.
type fakeBackend struct {
	spaceCounts  map[int64]int
	reservations atomic.Int64
}

func (f *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"access_token": "tok-access", "refresh_token": "tok-refresh"})
	})
	r.Get("/v1/stores/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"store_id": 42, "store_name": "살롱드핏", "max_discount_menu": "남성 컷", "max_discount_rate": 30,
				"max_discount_price_origin": 50000, "max_discount_price": 35000, "distance": 220, "on_foot": 4},
			{"store_id": 7, "store_name": "네일바이유", "max_discount_menu": "젤 네일", "max_discount_rate": 20,
				"max_discount_price_origin": 60000, "max_discount_price": 48000, "distance": 480, "on_foot": 7},
		})
	})
	r.Get("/v1/stores/{id}/", func(w http.ResponseWriter, r *http.Request) {
		id := chiInt64(r, "id")
		writeJSON(w, map[string]any{"count": f.spaceCounts[id]})
	})
	r.Get("/v1/stores/{id}/menus/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"store_id": chiInt64(r, "id"), "store_name": "살롱드핏", "store_address": "서울시 마포구",
			"menus": []map[string]any{
				{"menu_id": 1, "item_id": 11, "menu_name": "남성 컷", "discount_rate": 30,
					"price": 50000, "discounted_price": 35000, "is_available": true},
			},
		})
	})
	r.Get("/v1/stores/{id}/spaces/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"store_id": chiInt64(r, "id"), "store_name": "네일바이유", "store_address": "서울시 서초구",
			"spaces": []map[string]any{
				{"space_id": 501, "space_name": "원장 유나", "is_possible": true, "max_discount_rate": 20},
				{"space_id": 502, "space_name": "실장 하린", "is_possible": false, "max_discount_rate": 15},
			},
		})
	})
	r.Get("/v1/stores/spaces/{id}/details/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"space_id": chiInt64(r, "id"), "space_name": "원장 유나", "store_id": 7,
			"store_name": "네일바이유", "store_address": "서울시 서초구",
			"menus": []map[string]any{
				{"menu_id": 2, "item_id": 21, "menu_name": "젤 네일", "discount_rate": 20,
					"price": 60000, "discounted_price": 48000, "is_available": true},
			},
		})
	})
	r.Get("/v1/stores/items/{id}/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"item_id": chiInt64(r, "id"), "menu_name": "남성 컷", "discount_rate": 30,
			"menu_price": 50000, "discounted_price": 35000,
			"store_name": "살롱드핏", "store_address": "서울시 마포구",
		})
	})
	r.Post("/v1/reservations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.reservations.Add(1)
		writeJSON(w, map[string]any{"reservation_id": 900, "item_id": 11})
	})
	r.Get("/v1/reservations/me/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{})
	})
	r.Get("/v1/reservations/userlikes/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{})
	})
	r.Post("/v1/reservations/userlikes/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"like_id": 77, "store_id": 42})
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}

// newTestApp wires the handler globals against a fake backend and returns the
// storefront server plus a cookie-carrying client.
func newTestApp(t *testing.T, backend *fakeBackend) (*httptest.Server, *http.Client) {
	t.Helper()
	b := httptest.NewServer(backend.router())
	t.Cleanup(b.Close)

	devMode = true
	templatesDir = "../../templates"
	publicDir = "../../public"
	contentDir = "../../content"
	logger = zap.NewNop()
	apiClient = api.NewClient(b.URL, nil)
	contentLib = content.NewLibrary(contentDir)
	loadTracker = shopnav.NewTracker()

	srv := httptest.NewServer(newRouter())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

// noRedirect makes the client surface 3xx responses instead of following them.
func noRedirect(c *http.Client) *http.Client {
	cp := *c
	cp.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &cp
}

func csrfToken(t *testing.T, c *http.Client, baseURL string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == "csrf_token" {
			return ck.Value
		}
	}
	t.Fatal("no csrf cookie issued")
	return ""
}

func doLogin(t *testing.T, c *http.Client, baseURL string) {
	t.Helper()
	resp, err := c.Get(baseURL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	form := url.Values{"id_token": {"dev-token"}, "csrf_token": {csrfToken(t, c, baseURL)}}
	resp, err = c.PostForm(baseURL+"/login", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHomeRendersStoreList(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{}})

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "살롱드핏")
	assert.Contains(t, body, "35,000원")
	assert.Contains(t, body, "네일바이유")
}

func TestSingleSpaceEntryRedirectsToMenu(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{42: 1}})
	doLogin(t, c, srv.URL)

	resp, err := noRedirect(c).Get(srv.URL + "/shop/42")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/shop/42/menu", resp.Header.Get("Location"))

	resp, err = c.Get(srv.URL + "/shop/42/menu")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "남성 컷")
}

func TestMultiSpaceEntryRedirectsToSpaces(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{7: 3}})
	doLogin(t, c, srv.URL)

	resp, err := noRedirect(c).Get(srv.URL + "/shop/7")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/shop/7/spaces", resp.Header.Get("Location"))

	resp, err = c.Get(srv.URL + "/shop/7/spaces")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readBody(t, resp)
	assert.Contains(t, body, "원장 유나")
	assert.Contains(t, body, "예약 마감")
}

func TestReservationWithoutDraftBouncesToSpaces(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{7: 3}})
	doLogin(t, c, srv.URL)

	resp, err := noRedirect(c).Get(srv.URL + "/shop/7/reservation")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/shop/7/spaces", resp.Header.Get("Location"))
}

func TestPopstateEntryReturnsToListing(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{7: 3}})
	doLogin(t, c, srv.URL)

	// browse into the detail flow from the home list
	resp, err := c.Get(srv.URL + "/shop/7/spaces")
	require.NoError(t, err)
	resp.Body.Close()

	// browser back to the entry point coalesces out of the store
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/shop/7", nil)
	require.NoError(t, err)
	req.Header.Set("X-Popstate", "1")
	resp, err = noRedirect(c).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestReserveFlowCreatesReservation(t *testing.T) {
	backend := &fakeBackend{spaceCounts: map[int64]int{42: 1}}
	srv, c := newTestApp(t, backend)
	doLogin(t, c, srv.URL)
	token := csrfToken(t, c, srv.URL)

	form := url.Values{
		"csrf_token":       {token},
		"menu_id":          {"1"},
		"item_id":          {"11"},
		"menu_name":        {"남성 컷"},
		"discount_rate":    {"30"},
		"price":            {"50000"},
		"discounted_price": {"35000"},
	}
	resp, err := noRedirect(c).PostForm(srv.URL+"/shop/42/reserve", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/shop/42/reservation", resp.Header.Get("Location"))

	resp, err = c.Get(srv.URL + "/shop/42/reservation")
	require.NoError(t, err)
	body := readBody(t, resp)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "예약 확인")
	assert.Contains(t, body, "남성 컷")

	// agreement panel only shows on the agreement path
	assert.NotContains(t, body, "동의하고 예약하기")
	resp, err = c.Get(srv.URL + "/shop/42/reservation/agreement")
	require.NoError(t, err)
	body = readBody(t, resp)
	resp.Body.Close()
	assert.Contains(t, body, "동의하고 예약하기")

	resp, err = noRedirect(c).PostForm(srv.URL+"/shop/42/reservation/confirm", url.Values{"csrf_token": {token}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/history", resp.Header.Get("Location"))
	assert.Equal(t, int64(1), backend.reservations.Load())

	// the draft is gone; re-entering the confirmation bounces to the entry
	resp, err = noRedirect(c).Get(srv.URL + "/shop/42/reservation")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestCSRFRejectsTokenlessPost(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{}})

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = c.PostForm(srv.URL+"/time", url.Values{"time": {"18:00"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLikeToggleReturnsFragmentForHTMX(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{}})
	doLogin(t, c, srv.URL)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/likes/42", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("X-CSRF-Token", csrfToken(t, c, srv.URL))
	resp, err := c.Do(req)
	require.NoError(t, err)
	body := readBody(t, resp)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `hx-post="/likes/42"`)
	assert.Contains(t, body, `aria-pressed="true"`)
}

func TestContentPageRenders(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{}})

	resp, err := c.Get(srv.URL + "/notice")
	require.NoError(t, err)
	body := readBody(t, resp)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "공지")
}

func TestUnknownRouteRedirectsHome(t *testing.T) {
	srv, c := newTestApp(t, &fakeBackend{spaceCounts: map[int64]int{}})

	resp, err := noRedirect(c).Get(srv.URL + "/definitely-not-a-page")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var sb strings.Builder
	_, err := io.Copy(&sb, resp.Body)
	require.NoError(t, err)
	return sb.String()
}
