package main

import (
	"net/http"
	"time"

	mw "o-r.kr/buynow-web/internal/middleware"
	"o-r.kr/buynow-web/internal/optimistic"
	"o-r.kr/buynow-web/internal/timeslot"
)

// HomeHandler renders the store listing with the session's sort, category,
// and visit-time selections. Query parameters update the persisted bundle.
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	sess := mw.GetSession(r)
	now := time.Now()
	applyListingQuery(r, sess)
	if sess.Prefs.EnsureTime(now) {
		sess.MarkDirty()
	}
	// entering from the home list resets the detail-flow provenance
	sess.Prefs.SetOrigin(false, false)
	sess.MarkDirty()

	hour := timeslot.Normalize(sess.Prefs.Time, now)
	client := apiClient.WithTokens(mw.Credentials(r))
	stores, err := client.Stores(r.Context(), hour, sess.Prefs.Category())
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	vm := basePageData(r, sess)
	vm.Title = "바이나우"
	vm.Hour = hour
	vm.Stores = buildStoreList(stores, &sess.Prefs, "지금 할인 중", "조건에 맞는 매장이 없습니다.")
	vm.JSONLD = siteJSONLD()
	sess.TrackPath(r.URL.Path)
	renderPage(w, r, "home", vm)
}

// TimeSelectHandler stores a new visit-time selection and returns to the
// page the form was on.
func TimeSelectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := mw.GetSession(r)
	if t := r.FormValue("time"); t != "" {
		sess.Prefs.Time = t
		sess.MarkDirty()
	}
	redirectBack(w, r)
}

// LikeToggleHandler flips a store's liked state optimistically against the
// backend. htmx requests get the refreshed button fragment; form posts go
// back to the page they came from.
func LikeToggleHandler(w http.ResponseWriter, r *http.Request) {
	creds := mw.Credentials(r)
	if !creds.Authenticated() {
		http.Redirect(w, r, "/login?next="+r.Header.Get("Referer"), http.StatusSeeOther)
		return
	}
	storeID := chiInt64(r, "storeID")
	sess := mw.GetSession(r)
	now := time.Now()
	hour := timeslot.Normalize(sess.Prefs.Time, now)

	client := apiClient.WithTokens(creds)
	liked, err := optimistic.NewLikeToggler(client).Toggle(r.Context(), &sess.Prefs, storeID, hour)
	if err != nil {
		if mw.IsHTMX(r.Context()) {
			// the rollback already ran; re-render the state the bundle holds
			renderTemplate(w, r, "frag_like_button", likeButtonData(sess, storeID, sess.Prefs.Liked(storeID), "잠시 후 다시 시도해주세요."))
			return
		}
		handleAPIError(w, r, err)
		return
	}
	sess.MarkDirty()

	if mw.IsHTMX(r.Context()) {
		renderTemplate(w, r, "frag_like_button", likeButtonData(sess, storeID, liked, ""))
		return
	}
	redirectBack(w, r)
}

func likeButtonData(sess *mw.SessionData, storeID int64, liked bool, errMsg string) map[string]any {
	return map[string]any{
		"StoreID":   storeID,
		"Liked":     liked,
		"Error":     errMsg,
		"CSRFToken": sess.CSRFToken,
	}
}

func applyListingQuery(r *http.Request, sess *mw.SessionData) {
	q := r.URL.Query()
	changed := false
	if sort := q.Get("sort"); sort != "" && sort != sess.Prefs.SortOption {
		sess.Prefs.SortOption = sort
		changed = true
	}
	if q.Has("category") {
		category := q.Get("category")
		if category == "" {
			if len(sess.Prefs.Categories) != 0 {
				sess.Prefs.Categories = nil
				changed = true
			}
		} else if sess.Prefs.Category() != category {
			sess.Prefs.Categories = []string{category}
			changed = true
		}
	}
	if t := q.Get("time"); t != "" && t != sess.Prefs.Time {
		sess.Prefs.Time = t
		changed = true
	}
	if changed {
		sess.MarkDirty()
	}
}

func basePageData(r *http.Request, sess *mw.SessionData) *PageData {
	return &PageData{
		Path:        r.URL.Path,
		Authed:      mw.Credentials(r).Authenticated(),
		CSRFToken:   sess.CSRFToken,
		Time:        sess.Prefs.Time,
		TimeOptions: timeOptions(time.Now()),
	}
}

func redirectBack(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("Referer")
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
