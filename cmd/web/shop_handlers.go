package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/auth"
	"o-r.kr/buynow-web/internal/draft"
	"o-r.kr/buynow-web/internal/listing"
	mw "o-r.kr/buynow-web/internal/middleware"
	"o-r.kr/buynow-web/internal/shopnav"
	"o-r.kr/buynow-web/internal/timeslot"
)

// popStateHeader is set by the front-end history listener so the server can
// tell a browser back/forward navigation from a regular request.
const popStateHeader = "X-Popstate"

// ShopDetailHandler drives the whole /shop/:id flow. It classifies the path,
// gathers the snapshot the reconciler needs, and executes the effects it
// returns: redirects, fetches, selection changes, and the agreement flag.
func ShopDetailHandler(w http.ResponseWriter, r *http.Request) {
	sess := mw.GetSession(r)
	now := time.Now()
	if sess.Prefs.EnsureTime(now) {
		sess.MarkDirty()
	}
	hour := timeslot.Normalize(sess.Prefs.Time, now)
	client := apiClient.WithTokens(mw.Credentials(r))

	path := r.URL.Path
	st := shopnav.Classify(path)
	prev := shopnav.Classify(sess.PrevPath)

	count, err := client.StoreSpaceCount(r.Context(), st.StoreID)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	drafts := draft.NewStore(mw.DraftPersistence{S: sess})
	var rec *draft.Record
	if st.Kind == shopnav.KindReservation || st.Kind == shopnav.KindAgreement {
		if got, restoreErr := drafts.Restore(); restoreErr == nil {
			rec = &got
		}
	}

	snap := shopnav.Snapshot{
		SpaceCount: count.Count,
		Hour:       hour,
		Draft:      rec,
		BackTarget: sess.Prefs.BackTarget(),
		PopState:   r.Header.Get(popStateHeader) == "1",
	}
	next, effects := shopnav.Reconcile(prev, path, snap)

	// a newer navigation for the same session supersedes this load
	key := loadTracker.Begin(sess.ID, shopnav.Key{StoreID: next.StoreID, Hour: hour, Path: path})

	vm := &PageData{
		Path:      path,
		Authed:    mw.Credentials(r).Authenticated(),
		CSRFToken: sess.CSRFToken,
		Time:      sess.Prefs.Time,
		Hour:      hour,
	}
	showAgreement := false

	for _, eff := range effects {
		switch e := eff.(type) {
		case shopnav.Redirect:
			sess.TrackPath(path)
			http.Redirect(w, r, e.Target, http.StatusSeeOther)
			return
		case shopnav.ShowAgreement:
			showAgreement = e.Visible
		case shopnav.SelectSpace:
			sess.SelectSpace(e.SpaceID)
		case shopnav.ClearSelection:
			sess.SelectSpace(0)
		case shopnav.FetchMenus:
			page, err := client.StoreMenus(r.Context(), e.StoreID, e.Hour)
			if err != nil {
				handleAPIError(w, r, err)
				return
			}
			vm.Menu = buildMenuView(page)
			vm.JSONLD = storeJSONLD(page.StoreName, page.StoreAddress, page.ImageURL, path, page.Menus)
		case shopnav.FetchSpaces:
			page, err := client.StoreSpaces(r.Context(), e.StoreID, e.Hour)
			if err != nil {
				handleAPIError(w, r, err)
				return
			}
			page.Spaces = listing.RecomputeAvailability(page.Spaces, timeslot.Expired(sess.Prefs.Time, now))
			vm.Spaces = &SpacesView{Page: page}
			vm.JSONLD = storeJSONLD(page.StoreName, page.StoreAddress, page.ImageURL, path, nil)
		case shopnav.FetchSpaceDetail:
			detail, err := client.SpaceDetails(r.Context(), e.SpaceID, e.Hour)
			if err != nil {
				handleAPIError(w, r, err)
				return
			}
			vm.Space = buildSpaceView(detail)
			vm.JSONLD = storeJSONLD(detail.StoreName, detail.StoreAddress, detail.ImageURL, path, detail.Menus)
		}
	}

	if !loadTracker.Current(sess.ID, key) {
		// a concurrent navigation took over; drop this result
		return
	}
	sess.TrackPath(path)

	switch next.Kind {
	case shopnav.KindSingleSpaceMenu:
		vm.Title = vm.Menu.Page.StoreName
		renderPage(w, r, "shop_menu", vm)
	case shopnav.KindSpacesList:
		vm.Title = vm.Spaces.Page.StoreName
		renderPage(w, r, "shop_spaces", vm)
	case shopnav.KindSpaceMenu:
		vm.Title = vm.Space.Detail.SpaceName
		renderPage(w, r, "shop_space", vm)
	case shopnav.KindReservation, shopnav.KindAgreement:
		view, err := buildReservationView(r, client, next.StoreID, *rec, showAgreement, count.Count)
		if err != nil {
			handleAPIError(w, r, err)
			return
		}
		vm.Reservation = view
		vm.Title = "예약 확인"
		renderPage(w, r, "shop_reservation", vm)
	default:
		// redirects cover every other state; reaching here means the
		// reconciler and this switch disagree
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func buildReservationView(r *http.Request, client *api.Client, storeID int64, rec draft.Record, showAgreement bool, spaceCount int) (*ReservationView, error) {
	view := &ReservationView{
		StoreID:       storeID,
		Draft:         rec,
		ShowAgreement: showAgreement,
		BackPath:      reservationBackPath(storeID, rec, spaceCount),
	}
	item, err := client.MenuItemDetails(r.Context(), rec.Menu.ItemID)
	if err != nil {
		return nil, err
	}
	view.Item = &item
	return view, nil
}

func reservationBackPath(storeID int64, rec draft.Record, spaceCount int) string {
	if rec.Space != nil {
		return shopnav.State{Kind: shopnav.KindSpaceMenu, StoreID: storeID, SpaceID: rec.Space.SpaceID}.Path()
	}
	if spaceCount == 1 {
		return shopnav.State{Kind: shopnav.KindSingleSpaceMenu, StoreID: storeID}.Path()
	}
	return shopnav.State{Kind: shopnav.KindSpacesList, StoreID: storeID}.Path()
}

// ReserveStartHandler persists a new draft from the menu the user tapped and
// sends them to the confirmation screen.
func ReserveStartHandler(w http.ResponseWriter, r *http.Request) {
	storeID := chiInt64(r, "storeID")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	menu := api.Menu{
		MenuID:          formInt64(r, "menu_id"),
		ItemID:          formInt64(r, "item_id"),
		SpaceID:         formInt64(r, "space_id"),
		Name:            r.FormValue("menu_name"),
		DiscountRate:    int(formInt64(r, "discount_rate")),
		Price:           formInt64(r, "price"),
		DiscountedPrice: formInt64(r, "discounted_price"),
		Available:       true,
		ImageURL:        r.FormValue("menu_image_url"),
	}
	if menu.ItemID == 0 {
		http.Error(w, "missing item", http.StatusBadRequest)
		return
	}
	var space *draft.SpaceRef
	if menu.SpaceID != 0 {
		space = &draft.SpaceRef{SpaceID: menu.SpaceID, Name: r.FormValue("space_name")}
	}

	sess := mw.GetSession(r)
	draft.NewStore(mw.DraftPersistence{S: sess}).Start(menu, space)

	http.Redirect(w, r, shopnav.State{Kind: shopnav.KindReservation, StoreID: storeID}.Path(), http.StatusSeeOther)
}

// ReserveConfirmHandler submits the drafted reservation to the backend.
func ReserveConfirmHandler(w http.ResponseWriter, r *http.Request) {
	storeID := chiInt64(r, "storeID")
	sess := mw.GetSession(r)
	drafts := draft.NewStore(mw.DraftPersistence{S: sess})

	rec, err := drafts.Restore()
	if err != nil {
		// expired or missing draft falls back to the store entry, which
		// re-routes by space count
		http.Redirect(w, r, shopnav.State{Kind: shopnav.KindEntryPoint, StoreID: storeID}.Path(), http.StatusSeeOther)
		return
	}

	client := apiClient.WithTokens(mw.Credentials(r))
	if _, err := client.CreateReservation(r.Context(), rec.Menu.ItemID); err != nil {
		handleAPIError(w, r, err)
		return
	}
	drafts.Cancel()
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

// ReserveCancelHandler abandons the draft and returns to the store entry.
func ReserveCancelHandler(w http.ResponseWriter, r *http.Request) {
	storeID := chiInt64(r, "storeID")
	sess := mw.GetSession(r)
	draft.NewStore(mw.DraftPersistence{S: sess}).Cancel()
	http.Redirect(w, r, shopnav.State{Kind: shopnav.KindEntryPoint, StoreID: storeID}.Path(), http.StatusSeeOther)
}

// handleAPIError maps a gateway failure to a response: 401 forces re-login,
// anything else renders the error page with the backend message verbatim.
func handleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if api.IsAuthExpired(err) || errors.Is(err, auth.ErrNotAuthenticated) {
		http.Redirect(w, r, "/login?next="+r.URL.Path, http.StatusSeeOther)
		return
	}
	msg := "일시적인 오류가 발생했습니다."
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		msg = apiErr.UserMessage()
	}
	vm := &PageData{
		Title:     "오류",
		Path:      r.URL.Path,
		Authed:    mw.Credentials(r).Authenticated(),
		CSRFToken: mw.GetSession(r).CSRFToken,
		Error:     msg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	renderPage(w, r, "error", vm)
}

func chiInt64(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return v
}

func formInt64(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.FormValue(name), 10, 64)
	return v
}
