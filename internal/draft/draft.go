// Package draft owns the client-persisted, not-yet-submitted reservation
// selection. The record survives page reloads via whatever Persistence is
// plugged in (the signed session cookie in production) and expires after TTL
// so a stale selection can never be submitted days later.
package draft

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"o-r.kr/buynow-web/internal/api"
)

// TTL is how long a persisted draft stays restorable. Product constant.
const TTL = 24 * time.Hour

var (
	// ErrMissing means no draft is persisted.
	ErrMissing = errors.New("draft: no persisted reservation")
	// ErrExpired means the persisted draft exceeded TTL; restoring it also
	// deletes the stale record.
	ErrExpired = errors.New("draft: persisted reservation expired")
)

// SpaceRef identifies the designer/space the menu was picked from, when the
// store has more than one.
type SpaceRef struct {
	SpaceID int64  `json:"space_id"`
	Name    string `json:"space_name"`
}

// Record is the persisted in-progress reservation.
type Record struct {
	ID        string    `json:"id"`
	Menu      api.Menu  `json:"menu"`
	Space     *SpaceRef `json:"space,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Persistence stores at most one Record. Implementations: the session cookie
// adapter in internal/middleware, and Memory below for tests.
type Persistence interface {
	Load() (Record, bool)
	Save(Record)
	Delete()
}

// Store enforces the draft lifecycle over a Persistence. At most one draft
// exists at a time; Start overwrites any prior one.
type Store struct {
	mu         sync.Mutex
	p          Persistence
	now        func() time.Time
	ttl        time.Duration
	inProgress bool
	current    *Record
}

// NewStore builds a Store with the default TTL.
func NewStore(p Persistence) *Store {
	return &Store{p: p, now: time.Now, ttl: TTL}
}

// WithClock overrides the time source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithTTL overrides the expiry window.
func (s *Store) WithTTL(ttl time.Duration) *Store {
	s.ttl = ttl
	return s
}

// Start persists a new draft for the given menu (and space, when selected
// from a multi-space store), replacing any prior draft, and marks the
// reservation in progress.
func (s *Store) Start(menu api.Menu, space *SpaceRef) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:        newDraftID(s.now()),
		Menu:      menu,
		Space:     space,
		CreatedAt: s.now(),
	}
	s.p.Save(rec)
	s.current = &rec
	s.inProgress = true
	return rec
}

// Cancel deletes the persisted draft and clears the in-progress state.
// Idempotent.
func (s *Store) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Delete()
	s.current = nil
	s.inProgress = false
}

// Restore reads the persisted draft back. It fails with ErrMissing when
// nothing is persisted and ErrExpired when the record is older than TTL; the
// expired record is deleted as a side effect. After a failed restore the
// in-progress flag is false.
func (s *Store) Restore() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.p.Load()
	if !ok {
		s.current = nil
		s.inProgress = false
		return Record{}, ErrMissing
	}
	if s.now().Sub(rec.CreatedAt) > s.ttl {
		s.p.Delete()
		s.current = nil
		s.inProgress = false
		return Record{}, ErrExpired
	}
	s.current = &rec
	s.inProgress = true
	return rec, nil
}

// InProgress reports whether a reservation attempt is active.
func (s *Store) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress
}

// Current returns the loaded draft without touching persistence.
func (s *Store) Current() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Record{}, false
	}
	return *s.current, true
}

// Memory is an in-process Persistence for tests.
type Memory struct {
	mu  sync.Mutex
	rec *Record
}

func (m *Memory) Load() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Record{}, false
	}
	return *m.rec, true
}

func (m *Memory) Save(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
}

func (m *Memory) Delete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
}

func newDraftID(now time.Time) string {
	return "drf_" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
