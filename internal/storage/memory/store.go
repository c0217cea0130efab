// Package memory implements core.Store in process memory. It backs the
// unit tests of the service and HTTP layers and can be selected with
// DATABASE_DRIVER=memory for local experiments; nothing survives a restart.
//
// A transaction holds the store mutex from begin to end, so transactions
// are fully serialized. Rollback restores a snapshot taken at begin.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/google/uuid"
)

type state struct {
	members  map[int64]core.Member
	items    map[int64]core.InventoryItem
	bookings map[int64]core.Booking
	runs     []core.ImportRun
	nextID   map[string]int64
}

func newState() state {
	return state{
		members:  make(map[int64]core.Member),
		items:    make(map[int64]core.InventoryItem),
		bookings: make(map[int64]core.Booking),
		nextID:   make(map[string]int64),
	}
}

func (st state) clone() state {
	c := state{
		members:  make(map[int64]core.Member, len(st.members)),
		items:    make(map[int64]core.InventoryItem, len(st.items)),
		bookings: make(map[int64]core.Booking, len(st.bookings)),
		runs:     append([]core.ImportRun(nil), st.runs...),
		nextID:   make(map[string]int64, len(st.nextID)),
	}
	for k, v := range st.members {
		c.members[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.bookings {
		c.bookings[k] = v
	}
	for k, v := range st.nextID {
		c.nextID[k] = v
	}
	return c
}

// Store is an in-memory core.Store.
type Store struct {
	mu sync.Mutex
	st state
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store mutex unless ctx already belongs to one of this
// store's transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// EnsureSchema is a no-op; the maps exist from New.
func (s *Store) EnsureSchema(ctx context.Context) error { return ctx.Err() }

func (s *Store) next(table string) int64 {
	s.st.nextID[table]++
	return s.st.nextID[table]
}

// --- import ---

func (s *Store) InsertMember(ctx context.Context, m *core.Member) error {
	defer s.lock(ctx)()
	m.ID = s.next("members")
	s.st.members[m.ID] = *m
	return nil
}

func (s *Store) InsertInventoryItem(ctx context.Context, item *core.InventoryItem) error {
	defer s.lock(ctx)()
	item.ID = s.next("inventory")
	s.st.items[item.ID] = *item
	return nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	defer s.lock(ctx)()
	s.st.runs = append(s.st.runs, run)
	return nil
}

// --- booking ---

func (s *Store) GetMemberForUpdate(ctx context.Context, id int64) (core.Member, error) {
	return s.GetMember(ctx, id)
}

func (s *Store) GetInventoryItemForUpdate(ctx context.Context, id int64) (core.InventoryItem, error) {
	return s.GetInventoryItem(ctx, id)
}

func (s *Store) GetBookingForUpdate(ctx context.Context, id int64) (core.Booking, error) {
	return s.GetBooking(ctx, id)
}

func (s *Store) InsertBooking(ctx context.Context, b *core.Booking) error {
	defer s.lock(ctx)()
	_, okMember := s.st.members[b.MemberID]
	_, okItem := s.st.items[b.InventoryID]
	if !okMember || !okItem {
		return &core.NotFoundError{Entity: core.EntityMemberOrItem}
	}
	b.ID = s.next("bookings")
	s.st.bookings[b.ID] = *b
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id int64) error {
	defer s.lock(ctx)()
	if _, ok := s.st.bookings[id]; !ok {
		return &core.NotFoundError{Entity: core.EntityBooking, ID: id}
	}
	delete(s.st.bookings, id)
	return nil
}

func (s *Store) SetMemberBookingCount(ctx context.Context, memberID int64, count int) error {
	defer s.lock(ctx)()
	m, ok := s.st.members[memberID]
	if !ok {
		return &core.NotFoundError{Entity: core.EntityMember, ID: memberID}
	}
	m.BookingCount = count
	s.st.members[memberID] = m
	return nil
}

func (s *Store) SetRemainingCount(ctx context.Context, itemID int64, count int) error {
	defer s.lock(ctx)()
	item, ok := s.st.items[itemID]
	if !ok {
		return &core.NotFoundError{Entity: core.EntityItem, ID: itemID}
	}
	item.RemainingCount = count
	s.st.items[itemID] = item
	return nil
}

// --- queries ---

func (s *Store) GetMember(ctx context.Context, id int64) (core.Member, error) {
	defer s.lock(ctx)()
	m, ok := s.st.members[id]
	if !ok {
		return core.Member{}, &core.NotFoundError{Entity: core.EntityMember, ID: id}
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]core.Member, error) {
	defer s.lock(ctx)()
	return sortedValues(s.st.members), nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id int64) (core.InventoryItem, error) {
	defer s.lock(ctx)()
	item, ok := s.st.items[id]
	if !ok {
		return core.InventoryItem{}, &core.NotFoundError{Entity: core.EntityItem, ID: id}
	}
	return item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]core.InventoryItem, error) {
	defer s.lock(ctx)()
	return sortedValues(s.st.items), nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (core.Booking, error) {
	defer s.lock(ctx)()
	b, ok := s.st.bookings[id]
	if !ok {
		return core.Booking{}, &core.NotFoundError{Entity: core.EntityBooking, ID: id}
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context) ([]core.Booking, error) {
	defer s.lock(ctx)()
	return sortedValues(s.st.bookings), nil
}

// CountBookings counts bookings matching memberID and itemID; a zero id
// matches any.
func (s *Store) CountBookings(ctx context.Context, memberID, itemID int64) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, b := range s.st.bookings {
		if (memberID == 0 || b.MemberID == memberID) && (itemID == 0 || b.InventoryID == itemID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	defer s.lock(ctx)()
	runs := append([]core.ImportRun(nil), s.st.runs...)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	return runs, nil
}

func (s *Store) GetImportRun(ctx context.Context, id uuid.UUID) (core.ImportRun, error) {
	defer s.lock(ctx)()
	for _, run := range s.st.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return core.ImportRun{}, &core.NotFoundError{Entity: core.EntityImportRun}
}

func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
