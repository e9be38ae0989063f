// Package shopnav is the shop-detail navigator. It classifies a request path
// into a navigation state, and reconciles path transitions against the space
// count and the persisted reservation draft. Reconcile is pure: it returns the
// next state plus a list of effects (fetches, redirects, selection changes)
// for the HTTP driver to execute, so every transition rule is testable without
// a server.
package shopnav

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"o-r.kr/buynow-web/internal/draft"
)

// Kind tags the navigation state variants.
type Kind int

const (
	KindEntryPoint Kind = iota
	KindSingleSpaceMenu
	KindSpacesList
	KindSpaceMenu
	KindReservation
	KindAgreement
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindEntryPoint:
		return "entry"
	case KindSingleSpaceMenu:
		return "menu"
	case KindSpacesList:
		return "spaces"
	case KindSpaceMenu:
		return "space-menu"
	case KindReservation:
		return "reservation"
	case KindAgreement:
		return "agreement"
	case KindError:
		return "error"
	}
	return "unknown"
}

// State is one classified navigation state. SpaceID is set only for SpaceMenu.
type State struct {
	Kind    Kind
	StoreID int64
	SpaceID int64
}

// Path rebuilds the canonical path for the state.
func (s State) Path() string {
	switch s.Kind {
	case KindSingleSpaceMenu:
		return fmt.Sprintf("/shop/%d/menu", s.StoreID)
	case KindSpacesList:
		return fmt.Sprintf("/shop/%d/spaces", s.StoreID)
	case KindSpaceMenu:
		return fmt.Sprintf("/shop/%d/space/%d", s.StoreID, s.SpaceID)
	case KindReservation:
		return fmt.Sprintf("/shop/%d/reservation", s.StoreID)
	case KindAgreement:
		return fmt.Sprintf("/shop/%d/reservation/agreement", s.StoreID)
	default:
		return fmt.Sprintf("/shop/%d", s.StoreID)
	}
}

// route is one row of the path grammar. Placeholders :id and :spaceId capture
// numeric segments.
type route struct {
	pattern string
	kind    Kind
}

// routes is the grammar, first match wins. Anything under /shop/:id that
// matches no row falls back to EntryPoint.
var routes = []route{
	{"/shop/:id", KindEntryPoint},
	{"/shop/:id/menu", KindSingleSpaceMenu},
	{"/shop/:id/spaces", KindSpacesList},
	{"/shop/:id/space/:spaceId", KindSpaceMenu},
	{"/shop/:id/reservation", KindReservation},
	{"/shop/:id/reservation/agreement", KindAgreement},
}

func segments(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

func match(pattern string, segs []string) (State, bool) {
	pat := segments(pattern)
	if len(pat) != len(segs) {
		return State{}, false
	}
	var st State
	for i, p := range pat {
		switch p {
		case ":id":
			id, err := strconv.ParseInt(segs[i], 10, 64)
			if err != nil {
				return State{}, false
			}
			st.StoreID = id
		case ":spaceId":
			id, err := strconv.ParseInt(segs[i], 10, 64)
			if err != nil {
				return State{}, false
			}
			st.SpaceID = id
		default:
			if p != segs[i] {
				return State{}, false
			}
		}
	}
	return st, true
}

// Classify maps a request path to its navigation state. Total: every input
// yields a state, with EntryPoint as the fallback for unrecognized suffixes
// under a valid /shop/:id prefix.
func Classify(path string) State {
	segs := segments(path)
	for _, r := range routes {
		if st, ok := match(r.pattern, segs); ok {
			st.Kind = r.kind
			return st
		}
	}
	// fallback: keep the store id when the prefix is intact
	var st State
	if len(segs) >= 2 && segs[0] == "shop" {
		if id, err := strconv.ParseInt(segs[1], 10, 64); err == nil {
			st.StoreID = id
		}
	}
	st.Kind = KindEntryPoint
	return st
}

// Effect is one side effect the driver must execute. Redirects always replace
// history so transient intermediate states never pollute the back stack.
type Effect interface{ effect() }

// Redirect sends the browser elsewhere.
type Redirect struct {
	Target  string
	Replace bool
}

// FetchMenus loads the single-space menu list.
type FetchMenus struct {
	StoreID int64
	Hour    int
}

// FetchSpaces loads the multi-space list.
type FetchSpaces struct {
	StoreID int64
	Hour    int
}

// FetchSpaceDetail loads one space with its menus.
type FetchSpaceDetail struct {
	SpaceID int64
	Hour    int
}

// SelectSpace records the space the user is browsing.
type SelectSpace struct{ SpaceID int64 }

// ClearSelection drops any recorded space selection.
type ClearSelection struct{}

// ShowAgreement forces the agreement-panel flag. Emitted on every transition
// so the panel's visibility always derives from the URL.
type ShowAgreement struct{ Visible bool }

func (Redirect) effect()         {}
func (FetchMenus) effect()       {}
func (FetchSpaces) effect()      {}
func (FetchSpaceDetail) effect() {}
func (SelectSpace) effect()      {}
func (ClearSelection) effect()   {}
func (ShowAgreement) effect()    {}

// Snapshot is everything Reconcile needs besides the path itself. The driver
// gathers it up front: the store's space count, the normalized hour, the
// outcome of a draft restore attempt (nil when missing or expired), and the
// provenance-based back target.
type Snapshot struct {
	SpaceCount int
	Hour       int
	Draft      *draft.Record
	BackTarget string
	PopState   bool
}

// Reconcile decides the next state and its effects for one path transition.
// prev is the state the client was in before this navigation (zero State for
// a first visit).
func Reconcile(prev State, path string, snap Snapshot) (State, []Effect) {
	next := Classify(path)
	effects := []Effect{ShowAgreement{Visible: next.Kind == KindAgreement}}

	// coalesced back-navigation out of the detail flow lands on the listing
	// page the user came from
	coalescedBack := prev.StoreID == next.StoreID &&
		(prev.Kind == KindSpacesList || prev.Kind == KindSingleSpaceMenu)
	if next.Kind == KindEntryPoint && (snap.PopState || coalescedBack) {
		return next, append(effects, Redirect{Target: backTarget(snap), Replace: true})
	}

	if snap.SpaceCount == 1 {
		return next, append(effects, singleSpaceEffects(prev, next, snap)...)
	}
	return next, append(effects, multiSpaceEffects(prev, next, snap)...)
}

func backTarget(snap Snapshot) string {
	if snap.BackTarget == "" {
		return "/"
	}
	return snap.BackTarget
}

func singleSpaceEffects(prev, next State, snap Snapshot) []Effect {
	menuPath := State{Kind: KindSingleSpaceMenu, StoreID: next.StoreID}.Path()
	switch next.Kind {
	case KindSingleSpaceMenu:
		return []Effect{FetchMenus{StoreID: next.StoreID, Hour: snap.Hour}}
	case KindReservation, KindAgreement:
		if snap.Draft != nil {
			return []Effect{FetchMenus{StoreID: next.StoreID, Hour: snap.Hour}}
		}
		if target, ok := bouncePath(prev, next); ok {
			return []Effect{Redirect{Target: target, Replace: true}}
		}
		return []Effect{Redirect{Target: menuPath, Replace: true}}
	default:
		// EntryPoint, and every state that only makes sense for a
		// multi-space store
		return []Effect{Redirect{Target: menuPath, Replace: true}}
	}
}

func multiSpaceEffects(prev, next State, snap Snapshot) []Effect {
	spacesPath := State{Kind: KindSpacesList, StoreID: next.StoreID}.Path()
	switch next.Kind {
	case KindSpacesList:
		return []Effect{
			ClearSelection{},
			FetchSpaces{StoreID: next.StoreID, Hour: snap.Hour},
		}
	case KindSpaceMenu:
		return []Effect{
			SelectSpace{SpaceID: next.SpaceID},
			FetchSpaceDetail{SpaceID: next.SpaceID, Hour: snap.Hour},
		}
	case KindReservation, KindAgreement:
		if snap.Draft != nil {
			if snap.Draft.Space != nil {
				return []Effect{FetchSpaceDetail{SpaceID: snap.Draft.Space.SpaceID, Hour: snap.Hour}}
			}
			return []Effect{FetchSpaces{StoreID: next.StoreID, Hour: snap.Hour}}
		}
		if target, ok := bouncePath(prev, next); ok {
			return []Effect{Redirect{Target: target, Replace: true}}
		}
		return []Effect{Redirect{Target: spacesPath, Replace: true}}
	default:
		return []Effect{Redirect{Target: spacesPath, Replace: true}}
	}
}

// bouncePath handles forward navigation into the reservation screen with no
// restorable draft: coming from a space or menu page, the client is sent back
// there instead of rendering an empty reservation.
func bouncePath(prev, next State) (string, bool) {
	if next.Kind != KindReservation {
		return "", false
	}
	if prev.StoreID != next.StoreID {
		return "", false
	}
	if prev.Kind == KindSpaceMenu || prev.Kind == KindSingleSpaceMenu {
		return prev.Path(), true
	}
	return "", false
}

// Key identifies one load sequence. A new key supersedes any in-flight load
// for the same client, so stale results are dropped instead of applied.
type Key struct {
	StoreID int64
	Hour    int
	Path    string
}

// Tracker remembers the current load key per client session.
type Tracker struct {
	mu      sync.Mutex
	current map[string]Key
}

func NewTracker() *Tracker {
	return &Tracker{current: make(map[string]Key)}
}

// Begin records key as the current load for the session and returns it.
func (t *Tracker) Begin(session string, key Key) Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[session] = key
	return key
}

// Current reports whether key is still the session's active load.
func (t *Tracker) Current(session string, key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[session] == key
}
