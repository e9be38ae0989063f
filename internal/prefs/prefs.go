// Package prefs is the persisted preference bundle: sort option, category
// filters, chosen visit time, the liked-store-id cache, and the provenance
// flags recording which listing page led into the current shop-detail visit.
// It rides inside the signed session cookie; the middleware is the only
// serialize/deserialize boundary.
package prefs

import (
	"time"

	"o-r.kr/buynow-web/internal/timeslot"
)

// Sort options for the store listing.
const (
	SortDiscount = "discount"
	SortPrice    = "price"
	SortDistance = "distance"
)

// Bundle is the persisted slice of UI state.
type Bundle struct {
	SortOption    string   `json:"sort,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Time          string   `json:"time,omitempty"` // "HH:MM" visit-time selection
	LikedStoreIDs []int64  `json:"liked,omitempty"`
	FromFavorites bool     `json:"from_favorites,omitempty"`
	FromHistory   bool     `json:"from_history,omitempty"`
}

// Sort returns the effective sort option, defaulting to discount.
func (b *Bundle) Sort() string {
	switch b.SortOption {
	case SortPrice, SortDistance:
		return b.SortOption
	default:
		return SortDiscount
	}
}

// Category returns the first selected category filter, or empty. The backend
// accepts a single store_category parameter.
func (b *Bundle) Category() string {
	if len(b.Categories) == 0 {
		return ""
	}
	return b.Categories[0]
}

// EnsureTime initializes or advances the visit-time selection: unset or
// fallen-behind selections move to the next full hour. Reports whether the
// bundle changed.
func (b *Bundle) EnsureTime(now time.Time) bool {
	if !timeslot.Stale(b.Time, now) {
		return false
	}
	b.Time = timeslot.NearestHour(now)
	return true
}

// Liked reports whether the store id is in the liked cache.
func (b *Bundle) Liked(storeID int64) bool {
	for _, id := range b.LikedStoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// SetLiked adds or removes a store id from the liked cache. Reports whether
// the bundle changed.
func (b *Bundle) SetLiked(storeID int64, liked bool) bool {
	if liked {
		if b.Liked(storeID) {
			return false
		}
		b.LikedStoreIDs = append(b.LikedStoreIDs, storeID)
		return true
	}
	for i, id := range b.LikedStoreIDs {
		if id == storeID {
			b.LikedStoreIDs = append(b.LikedStoreIDs[:i], b.LikedStoreIDs[i+1:]...)
			return true
		}
	}
	return false
}

// SetOrigin records which listing page the user entered the detail flow from.
// Exactly one provenance flag is set at a time.
func (b *Bundle) SetOrigin(fromFavorites, fromHistory bool) {
	b.FromFavorites = fromFavorites && !fromHistory
	b.FromHistory = fromHistory
}

// BackTarget is the listing page a coalesced back-navigation should land on.
func (b *Bundle) BackTarget() string {
	switch {
	case b.FromFavorites:
		return "/favorites"
	case b.FromHistory:
		return "/history"
	default:
		return "/"
	}
}
