package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

// Reservation is one entry of the user's reservation history.
type Reservation struct {
	ReservationID int64  `json:"reservation_id"`
	ItemID        int64  `json:"item_id"`
	StoreName     string `json:"store_name"`
	StoreAddress  string `json:"store_address"`
	MenuName      string `json:"menu_name"`
	Price         int64  `json:"menu_price"`
	DiscountPrice int64  `json:"discounted_price"`
	DiscountRate  int    `json:"discount_rate"`
	VisitHour     int    `json:"time"`
	ImageURL      string `json:"menu_image_url"`
	CreatedAt     string `json:"created_at"`
}

// Like is a per-user store bookmark.
type Like struct {
	LikeID  int64 `json:"like_id"`
	StoreID int64 `json:"store_id"`
	StoreSummary
}

// MyReservations lists the user's reservations.
func (c *Client) MyReservations(ctx context.Context) ([]Reservation, error) {
	var out []Reservation
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/reservations/me/",
		auth:   authRequired,
	}, &out)
	return out, err
}

// CancelReservation deletes a reservation. The backend answers 204 on success
// and CANCELLATION_NOT_ALLOWED within 30 minutes of the visit time.
func (c *Client) CancelReservation(ctx context.Context, reservationID int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/v1/reservations/%d/", reservationID),
		auth:   authRequired,
	}, nil)
}

// CreateReservation books the given item. Requests carry an idempotency key so
// a retried submit cannot double-book.
func (c *Client) CreateReservation(ctx context.Context, itemID int64) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v1/reservations/",
		body:    map[string]int64{"item_id": itemID},
		auth:    authRequired,
		headers: map[string]string{idempotencyHeader: newIdempotencyKey()},
	}, &out)
	return out, err
}

// UserLikes lists the stores the user has liked, shaped like the store listing.
func (c *Client) UserLikes(ctx context.Context, hour int, category string) ([]Like, error) {
	q := hourQuery(hour)
	if category != "" {
		q.Set("store_category", category)
	}
	var out []Like
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/reservations/userlikes/",
		query:  q,
		auth:   authRequired,
	}, &out)
	return out, err
}

// CreateLike bookmarks a store and returns the created like record.
func (c *Client) CreateLike(ctx context.Context, storeID int64) (Like, error) {
	var out Like
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/reservations/userlikes/",
		body:   map[string]int64{"store_id": storeID},
		auth:   authRequired,
	}, &out)
	return out, err
}

// DeleteLike removes a like by its like id. A bare 2xx acknowledges deletion.
func (c *Client) DeleteLike(ctx context.Context, likeID int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/v1/reservations/userlikes/",
		body:   map[string]int64{"like_id": likeID},
		auth:   authRequired,
	}, nil)
}

func newIdempotencyKey() string {
	return "rsv_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
