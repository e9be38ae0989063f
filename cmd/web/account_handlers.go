package main

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"o-r.kr/buynow-web/internal/api"
	mw "o-r.kr/buynow-web/internal/middleware"
	"o-r.kr/buynow-web/internal/timeslot"
)

// LoginFormHandler renders the login screen.
func LoginFormHandler(w http.ResponseWriter, r *http.Request) {
	sess := mw.GetSession(r)
	vm := basePageData(r, sess)
	vm.Title = "로그인"
	vm.LoginNext = r.URL.Query().Get("next")
	renderPage(w, r, "login", vm)
}

// LoginHandler exchanges the identity provider's id token for backend
// credentials and stores them in the session.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	idToken := r.FormValue("id_token")
	if idToken == "" {
		http.Error(w, "missing id token", http.StatusBadRequest)
		return
	}
	creds, err := apiClient.Login(r.Context(), idToken)
	if err != nil {
		sess := mw.GetSession(r)
		vm := basePageData(r, sess)
		vm.Title = "로그인"
		vm.LoginNext = r.FormValue("next")
		vm.Error = "로그인에 실패했습니다."
		if apiErr, ok := err.(*api.Error); ok {
			vm.Error = apiErr.UserMessage()
		}
		renderPage(w, r, "login", vm)
		return
	}

	sess := mw.GetSession(r)
	sess.SetCredentials(&creds)

	next := r.FormValue("next")
	if next == "" || next[0] != '/' {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// LogoutHandler drops the session credentials.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	mw.Credentials(r).Logout()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// FavoritesHandler lists the user's liked stores and marks the detail-flow
// provenance so back-navigation returns here.
func FavoritesHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next=/favorites", http.StatusSeeOther)
		return
	}
	sess := mw.GetSession(r)
	now := time.Now()
	applyListingQuery(r, sess)
	if sess.Prefs.EnsureTime(now) {
		sess.MarkDirty()
	}
	sess.Prefs.SetOrigin(true, false)
	sess.MarkDirty()

	hour := timeslot.Normalize(sess.Prefs.Time, now)
	client := apiClient.WithTokens(creds)
	likes, err := client.UserLikes(r.Context(), hour, sess.Prefs.Category())
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	vm := basePageData(r, sess)
	vm.Title = "찜한 매장"
	vm.Hour = hour
	vm.Stores = buildStoreList(likesToStores(likes), &sess.Prefs, "찜한 매장", "아직 찜한 매장이 없습니다.")
	sess.TrackPath(r.URL.Path)
	renderPage(w, r, "favorites", vm)
}

// HistoryHandler lists the user's reservations and marks provenance.
func HistoryHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next=/history", http.StatusSeeOther)
		return
	}
	sess := mw.GetSession(r)
	sess.Prefs.SetOrigin(false, true)
	sess.MarkDirty()

	client := apiClient.WithTokens(creds)
	reservations, err := client.MyReservations(r.Context())
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	vm := basePageData(r, sess)
	vm.Title = "방문 내역"
	vm.Flash = r.URL.Query().Get("msg")
	vm.History = &HistoryView{Reservations: reservations}
	sess.TrackPath(r.URL.Path)
	renderPage(w, r, "history", vm)
}

// ReservationCancelHandler cancels a submitted reservation. Within 30 minutes
// of the visit time the backend refuses with CANCELLATION_NOT_ALLOWED; that
// message is surfaced verbatim.
func ReservationCancelHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next=/history", http.StatusSeeOther)
		return
	}
	reservationID := chiInt64(r, "reservationID")
	client := apiClient.WithTokens(creds)
	if err := client.CancelReservation(r.Context(), reservationID); err != nil {
		if api.HasCode(err, api.CodeCancellationNotAllowed) {
			http.Redirect(w, r, "/history?msg="+urlQueryEscape("방문 30분 전에는 취소할 수 없습니다."), http.StatusSeeOther)
			return
		}
		handleAPIError(w, r, err)
		return
	}
	http.Redirect(w, r, "/history?msg="+urlQueryEscape("예약이 취소되었습니다."), http.StatusSeeOther)
}

// MyPageHandler shows the account profile.
func MyPageHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next=/mypage", http.StatusSeeOther)
		return
	}
	sess := mw.GetSession(r)
	client := apiClient.WithTokens(creds)
	profile, err := client.Me(r.Context())
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	vm := basePageData(r, sess)
	vm.Title = "마이페이지"
	vm.Profile = &ProfileView{Profile: profile}
	renderPage(w, r, "mypage", vm)
}

// AddressUpdateHandler patches the user's address. An INVALID_ADDRESS error
// re-renders the page with the backend message.
func AddressUpdateHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next=/mypage", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := mw.GetSession(r)
	client := apiClient.WithTokens(creds)
	profile, err := client.UpdateAddress(r.Context(), r.FormValue("user_address"))
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Code == api.CodeInvalidAddress {
			current, meErr := client.Me(r.Context())
			if meErr != nil {
				handleAPIError(w, r, meErr)
				return
			}
			vm := basePageData(r, sess)
			vm.Title = "마이페이지"
			vm.Profile = &ProfileView{Profile: current, AddressError: apiErr.UserMessage()}
			renderPage(w, r, "mypage", vm)
			return
		}
		handleAPIError(w, r, err)
		return
	}

	vm := basePageData(r, sess)
	vm.Title = "마이페이지"
	vm.Flash = "주소가 변경되었습니다."
	vm.Profile = &ProfileView{Profile: profile}
	renderPage(w, r, "mypage", vm)
}

// SearchAddressHandler renders the address search form that feeds the
// mypage address update.
func SearchAddressHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next=/search-address", http.StatusSeeOther)
		return
	}
	sess := mw.GetSession(r)
	vm := basePageData(r, sess)
	vm.Title = "주소 검색"
	renderPage(w, r, "search_address", vm)
}

func urlQueryEscape(s string) string { return url.QueryEscape(s) }
