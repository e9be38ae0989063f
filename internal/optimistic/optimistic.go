// Package optimistic runs apply-then-confirm mutations: the local state is
// updated first so the UI responds immediately, the remote call follows, and a
// failure rolls the local update back.
package optimistic

import (
	"context"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/prefs"
)

// Run applies the tentative local update, performs the remote call, and
// reverts on failure. The caller sees the original error either way.
func Run(ctx context.Context, apply, revert func(), call func(context.Context) error) error {
	apply()
	if err := call(ctx); err != nil {
		revert()
		return err
	}
	return nil
}

// Liker is the slice of the backend client the toggler needs.
type Liker interface {
	UserLikes(ctx context.Context, hour int, category string) ([]api.Like, error)
	CreateLike(ctx context.Context, storeID int64) (api.Like, error)
	DeleteLike(ctx context.Context, likeID int64) error
}

// LikeToggler flips a store's liked state against the backend while keeping
// the session's liked-id cache in step.
type LikeToggler struct {
	likes Liker
}

func NewLikeToggler(likes Liker) *LikeToggler {
	return &LikeToggler{likes: likes}
}

// Toggle flips the liked state of storeID in the bundle's cache, then confirms
// with the backend. Unliking needs the like record's own id, which the listing
// payload does not carry, so it is resolved through the likes listing first.
// On any failure the cache is restored and the error returned; the caller
// decides whether to surface it. Returns the resulting liked state.
func (t *LikeToggler) Toggle(ctx context.Context, b *prefs.Bundle, storeID int64, hour int) (bool, error) {
	wasLiked := b.Liked(storeID)
	nowLiked := !wasLiked

	err := Run(ctx,
		func() { b.SetLiked(storeID, nowLiked) },
		func() { b.SetLiked(storeID, wasLiked) },
		func(ctx context.Context) error {
			if nowLiked {
				_, err := t.likes.CreateLike(ctx, storeID)
				return err
			}
			likeID, found, err := t.resolveLikeID(ctx, storeID, hour)
			if err != nil {
				return err
			}
			if !found {
				// already gone remotely; the local removal stands
				return nil
			}
			return t.likes.DeleteLike(ctx, likeID)
		},
	)
	if err != nil {
		return wasLiked, err
	}
	return nowLiked, nil
}

func (t *LikeToggler) resolveLikeID(ctx context.Context, storeID int64, hour int) (int64, bool, error) {
	likes, err := t.likes.UserLikes(ctx, hour, "")
	if err != nil {
		return 0, false, err
	}
	for _, l := range likes {
		if l.StoreID == storeID {
			return l.LikeID, true, nil
		}
	}
	return 0, false, nil
}
