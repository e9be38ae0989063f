package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStoresSendsBearerWhenAvailable(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"store_id":1,"store_name":"A","is_liked":true}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-123"))
	stores, err := c.Stores(context.Background(), 33, "nail")
	if err != nil {
		t.Fatalf("Stores: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotQuery != "store_category=nail&time=33" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(stores) != 1 || stores[0].StoreID != 1 || !stores[0].IsLiked {
		t.Fatalf("unexpected stores %+v", stores)
	}
}

func TestStoresFallsBackToAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected anonymous request, got %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Stores(context.Background(), 10, ""); err != nil {
		t.Fatalf("anonymous Stores: %v", err)
	}
}

func TestRequiredAuthWithoutTokenFailsLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the backend without a token")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken(""))
	_, err := c.StoreMenus(context.Background(), 42, 15)
	if !IsAuthExpired(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestStructuredErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"CANCELLATION_NOT_ALLOWED","message":"too close to visit time"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	err := c.CancelReservation(context.Background(), 7)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != CodeCancellationNotAllowed {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !HasCode(err, CodeCancellationNotAllowed) {
		t.Fatalf("HasCode should match")
	}
	if apiErr.UserMessage() != "too close to visit time" {
		t.Fatalf("expected verbatim backend message, got %q", apiErr.UserMessage())
	}
}

func TestNestedErrorStringUnwrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"{\"error\":\"item already reserved\"}"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	_, err := c.CreateReservation(context.Background(), 99)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Message != "item already reserved" {
		t.Fatalf("expected unwrapped inner message, got %q", apiErr.Message)
	}
}

func TestUnparsableErrorBodyStillTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.StoreSpaceCount(context.Background(), 1)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream exploded" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestEmptyBodySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	if err := c.DeleteLike(context.Background(), 5); err != nil {
		t.Fatalf("DeleteLike on 204: %v", err)
	}
}

func TestCreateReservationSendsIdempotencyKey(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		_, _ = w.Write([]byte(`{"reservation_id":11,"item_id":99}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	res, err := c.CreateReservation(context.Background(), 99)
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if res.ReservationID != 11 {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if key == "" {
		t.Fatalf("expected idempotency key header")
	}
}

func TestNotFoundHelper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"store not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.StoreSpaceCount(context.Background(), 404)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
