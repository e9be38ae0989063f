package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// StoreSummary is one row of the store listing. The backend folds the
// best-discount menu into the summary itself.
type StoreSummary struct {
	StoreID         int64  `json:"store_id"`
	StoreName       string `json:"store_name"`
	MenuID          int64  `json:"menu_id"`
	MenuName        string `json:"max_discount_menu"`
	MaxDiscountRate int    `json:"max_discount_rate"`
	OriginalPrice   int64  `json:"max_discount_price_origin"`
	DiscountPrice   int64  `json:"max_discount_price"`
	Distance        int    `json:"distance"`
	OnFoot          int    `json:"on_foot"`
	ImageURL        string `json:"store_image_url"`
	Hour            *int   `json:"time"`
	IsLiked         bool   `json:"is_liked"`
	Category        string `json:"store_category"`
}

// SpaceCount is the store-detail header: how many bookable spaces the store
// has. One space means the store renders as a flat menu list; two or more
// require a space selection step.
type SpaceCount struct {
	Count    int     `json:"count"`
	SpaceIDs []int64 `json:"space_ids"`
}

// Menu is a discounted menu entry inside a store or space listing.
type Menu struct {
	MenuID          int64  `json:"menu_id"`
	ItemID          int64  `json:"item_id"`
	SpaceID         int64  `json:"space_id,omitempty"`
	Name            string `json:"menu_name"`
	DiscountRate    int    `json:"discount_rate"`
	Price           int64  `json:"price"`
	DiscountedPrice int64  `json:"discounted_price"`
	Available       bool   `json:"is_available"`
	ImageURL        string `json:"menu_image_url"`
}

// MenuPage is the single-space store view: store header plus its menus.
type MenuPage struct {
	StoreID      int64  `json:"store_id"`
	StoreName    string `json:"store_name"`
	StoreAddress string `json:"store_address"`
	Distance     int    `json:"distance"`
	OnFoot       int    `json:"on_foot"`
	ImageURL     string `json:"store_image_url"`
	Menus        []Menu `json:"menus"`
}

// Space is one bookable sub-unit of a multi-space store.
type Space struct {
	SpaceID         int64  `json:"space_id"`
	Name            string `json:"space_name"`
	Possible        bool   `json:"is_possible"`
	MaxDiscountRate int    `json:"max_discount_rate"`
	ImageURL        string `json:"space_image_url"`
	Menus           []Menu `json:"menus"`
}

// SpacesPage is the multi-space store view: store header plus its spaces.
type SpacesPage struct {
	StoreID      int64   `json:"store_id"`
	StoreName    string  `json:"store_name"`
	StoreAddress string  `json:"store_address"`
	Distance     int     `json:"distance"`
	OnFoot       int     `json:"on_foot"`
	ImageURL     string  `json:"store_image_url"`
	Spaces       []Space `json:"spaces"`
}

// SpaceDetail is a single space with its menu list.
type SpaceDetail struct {
	SpaceID      int64  `json:"space_id"`
	SpaceName    string `json:"space_name"`
	StoreID      int64  `json:"store_id"`
	StoreName    string `json:"store_name"`
	StoreAddress string `json:"store_address"`
	Distance     int    `json:"distance"`
	OnFoot       int    `json:"on_foot"`
	ImageURL     string `json:"space_image_url"`
	Menus        []Menu `json:"menus"`
}

// MenuItem is the full detail of one bookable item, shown on the reservation
// confirmation screen.
type MenuItem struct {
	ItemID          int64  `json:"item_id"`
	MenuName        string `json:"menu_name"`
	DiscountRate    int    `json:"discount_rate"`
	Price           int64  `json:"menu_price"`
	DiscountedPrice int64  `json:"discounted_price"`
	ImageURL        string `json:"menu_image_url"`
	StoreName       string `json:"store_name"`
	StoreAddress    string `json:"store_address"`
	Distance        int    `json:"distance"`
	OnFoot          int    `json:"on_foot"`
}

func hourQuery(hour int) url.Values {
	q := url.Values{}
	q.Set("time", strconv.Itoa(hour))
	return q
}

// Stores lists stores available at the given backend hour, optionally filtered
// by category. Works anonymously; the bearer token only enables is_liked.
func (c *Client) Stores(ctx context.Context, hour int, category string) ([]StoreSummary, error) {
	q := hourQuery(hour)
	if category != "" {
		q.Set("store_category", category)
	}
	var stores []StoreSummary
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/stores/",
		query:  q,
		auth:   authOptional,
	}, &stores)
	return stores, err
}

// StoreSpaceCount fetches the space count for a store.
func (c *Client) StoreSpaceCount(ctx context.Context, storeID int64) (SpaceCount, error) {
	var count SpaceCount
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/%d/", storeID),
	}, &count)
	return count, err
}

// StoreMenus fetches the menu list of a single-space store at the given hour.
func (c *Client) StoreMenus(ctx context.Context, storeID int64, hour int) (MenuPage, error) {
	var page MenuPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/%d/menus/", storeID),
		query:  hourQuery(hour),
		auth:   authRequired,
	}, &page)
	return page, err
}

// StoreSpaces fetches the space list of a multi-space store at the given hour.
func (c *Client) StoreSpaces(ctx context.Context, storeID int64, hour int) (SpacesPage, error) {
	var page SpacesPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/%d/spaces/", storeID),
		query:  hourQuery(hour),
		auth:   authRequired,
	}, &page)
	return page, err
}

// SpaceDetails fetches one space with its menus at the given hour.
func (c *Client) SpaceDetails(ctx context.Context, spaceID int64, hour int) (SpaceDetail, error) {
	var detail SpaceDetail
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/spaces/%d/details/", spaceID),
		query:  hourQuery(hour),
		auth:   authRequired,
	}, &detail)
	return detail, err
}

// MenuItemDetails fetches the full detail of a single bookable item.
func (c *Client) MenuItemDetails(ctx context.Context, itemID int64) (MenuItem, error) {
	var item MenuItem
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/items/%d/", itemID),
		auth:   authRequired,
	}, &item)
	return item, err
}
