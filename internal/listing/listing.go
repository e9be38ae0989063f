// Package listing derives presentation order from backend data: store-list
// sorting and filtering, the featured-menu split, and the space availability
// recomputation. Everything here is stateless given its inputs.
package listing

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/prefs"
)

// nameCollator orders store names the way the locale expects (가나다 order for
// Korean names, not raw byte order). Collators are not safe for concurrent
// use, so each sort builds its own.
func nameCollator() *collate.Collator {
	return collate.New(language.Korean)
}

// SortStores returns a sorted copy of the store list. Discount sorts by max
// discount rate descending, price by discounted price ascending, distance
// ascending; every tie breaks by locale-aware store name order.
func SortStores(stores []api.StoreSummary, option string) []api.StoreSummary {
	out := make([]api.StoreSummary, len(stores))
	copy(out, stores)
	col := nameCollator()
	byName := func(a, b api.StoreSummary) bool {
		return col.CompareString(a.StoreName, b.StoreName) < 0
	}
	switch option {
	case prefs.SortDiscount:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].MaxDiscountRate != out[j].MaxDiscountRate {
				return out[i].MaxDiscountRate > out[j].MaxDiscountRate
			}
			return byName(out[i], out[j])
		})
	case prefs.SortPrice:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].DiscountPrice != out[j].DiscountPrice {
				return out[i].DiscountPrice < out[j].DiscountPrice
			}
			return byName(out[i], out[j])
		})
	case prefs.SortDistance:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Distance != out[j].Distance {
				return out[i].Distance < out[j].Distance
			}
			return byName(out[i], out[j])
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return byName(out[i], out[j])
		})
	}
	return out
}

// FilterByCategory keeps stores matching the category; empty category keeps
// everything.
func FilterByCategory(stores []api.StoreSummary, category string) []api.StoreSummary {
	if category == "" {
		return stores
	}
	out := make([]api.StoreSummary, 0, len(stores))
	for _, s := range stores {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// Featured picks the menu with the highest discount rate; the first of a tie
// wins, matching the backend's listing order.
func Featured(menus []api.Menu) (api.Menu, bool) {
	if len(menus) == 0 {
		return api.Menu{}, false
	}
	best := menus[0]
	for _, m := range menus[1:] {
		if m.DiscountRate > best.DiscountRate {
			best = m
		}
	}
	return best, true
}

// Others returns the menus that are not the featured one.
func Others(menus []api.Menu) []api.Menu {
	featured, ok := Featured(menus)
	if !ok {
		return nil
	}
	out := make([]api.Menu, 0, len(menus)-1)
	for _, m := range menus {
		if m.MenuID != featured.MenuID {
			out = append(out, m)
		}
	}
	return out
}

// RecomputeAvailability rewrites each space's is_possible flag: a space is
// bookable only when the backend says so, the selected time slot has not
// expired, and none of its menus is unavailable.
func RecomputeAvailability(spaces []api.Space, timeExpired bool) []api.Space {
	out := make([]api.Space, len(spaces))
	copy(out, spaces)
	for i := range out {
		out[i].Possible = out[i].Possible && !timeExpired && !anyUnavailable(out[i].Menus)
	}
	return out
}

func anyUnavailable(menus []api.Menu) bool {
	for _, m := range menus {
		if !m.Available {
			return true
		}
	}
	return false
}
