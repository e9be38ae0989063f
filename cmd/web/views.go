package main

import (
	"fmt"
	"html/template"
	"time"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/content"
	"o-r.kr/buynow-web/internal/draft"
	"o-r.kr/buynow-web/internal/listing"
	"o-r.kr/buynow-web/internal/prefs"
	"o-r.kr/buynow-web/internal/seo"
	"o-r.kr/buynow-web/internal/timeslot"
)

// PageData is the root view model every page template receives.
type PageData struct {
	Title     string
	Page      string
	Path      string
	Authed    bool
	CSRFToken string
	Time      string // selected visit time "HH:MM"
	Hour      int    // normalized backend hour
	Error     string
	Flash     string
	// TimeOptions are the selectable visit-time slots for the picker.
	TimeOptions []string
	// JSONLD is the structured-data payload the head embeds, when a page has one.
	JSONLD template.JS

	Stores      *StoreListView
	Menu        *MenuView
	Spaces      *SpacesView
	Space       *SpaceView
	Reservation *ReservationView
	History     *HistoryView
	Profile     *ProfileView
	Content     *content.Page
	LoginNext   string
}

// StoreListView backs the home and favorites pages.
type StoreListView struct {
	Stores     []StoreCard
	Sort       string
	Category   string
	Categories []string
	Heading    string
	Empty      string
}

// StoreCard is one row of a store listing.
type StoreCard struct {
	api.StoreSummary
	Liked bool
}

// MenuView is the single-space store page: header plus the featured/others split.
type MenuView struct {
	Page     api.MenuPage
	Featured *api.Menu
	Others   []api.Menu
}

// SpacesView is the designer/space selection page.
type SpacesView struct {
	Page api.SpacesPage
}

// SpaceView is one space's menu page.
type SpaceView struct {
	Detail   api.SpaceDetail
	Featured *api.Menu
	Others   []api.Menu
}

// ReservationView is the confirmation page, with the agreement panel toggled
// by the URL.
type ReservationView struct {
	StoreID       int64
	Draft         draft.Record
	Item          *api.MenuItem
	ShowAgreement bool
	BackPath      string
}

// HistoryView is the reservation history page.
type HistoryView struct {
	Reservations []api.Reservation
}

// ProfileView is the mypage account view.
type ProfileView struct {
	Profile      api.UserProfile
	AddressError string
}

// storeCategories is the fixed set of category filters the UI offers.
var storeCategories = []string{"hair", "nail", "massage", "waxing"}

func buildStoreList(stores []api.StoreSummary, b *prefs.Bundle, heading, empty string) *StoreListView {
	sorted := listing.SortStores(stores, b.Sort())
	cards := make([]StoreCard, len(sorted))
	for i, s := range sorted {
		cards[i] = StoreCard{StoreSummary: s, Liked: s.IsLiked || b.Liked(s.StoreID)}
	}
	return &StoreListView{
		Stores:     cards,
		Sort:       b.Sort(),
		Category:   b.Category(),
		Categories: storeCategories,
		Heading:    heading,
		Empty:      empty,
	}
}

func buildMenuView(page api.MenuPage) *MenuView {
	v := &MenuView{Page: page}
	if featured, ok := listing.Featured(page.Menus); ok {
		v.Featured = &featured
		v.Others = listing.Others(page.Menus)
	}
	return v
}

func buildSpaceView(detail api.SpaceDetail) *SpaceView {
	v := &SpaceView{Detail: detail}
	if featured, ok := listing.Featured(detail.Menus); ok {
		v.Featured = &featured
		v.Others = listing.Others(detail.Menus)
	}
	return v
}

func siteJSONLD() template.JS {
	return template.JS(seo.JSON(seo.WebSite("바이나우", "")))
}

func storeJSONLD(name, address, image, path string, menus []api.Menu) template.JS {
	offers := make([]map[string]any, 0, len(menus))
	for _, m := range menus {
		if !m.Available {
			continue
		}
		offers = append(offers, seo.Offer(m.Name, m.Price, m.DiscountedPrice))
	}
	return template.JS(seo.JSON(seo.WithOffers(seo.LocalBusiness(name, address, image, path), offers)))
}

// timeOptions lists the slot values the visit-time picker offers: the rest of
// today's hours, plus the early-morning slots that count as tomorrow once the
// afternoon has started.
func timeOptions(now time.Time) []string {
	var out []string
	for h := now.Hour() + 1; h <= 23; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h))
	}
	if now.Hour() > timeslot.Noon {
		for h := 0; h < timeslot.Noon; h++ {
			out = append(out, fmt.Sprintf("%02d:00", h))
		}
	}
	return out
}

func likesToStores(likes []api.Like) []api.StoreSummary {
	out := make([]api.StoreSummary, len(likes))
	for i, l := range likes {
		s := l.StoreSummary
		if s.StoreID == 0 {
			s.StoreID = l.StoreID
		}
		s.IsLiked = true
		out[i] = s
	}
	return out
}
