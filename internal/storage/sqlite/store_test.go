package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, filepath.Join(t.TempDir(), "bookings.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func seed(t *testing.T, store *Store, bookingCount, remaining int) (core.Member, core.InventoryItem) {
	t.Helper()
	ctx := context.Background()

	m := core.Member{
		Name:         "Ann",
		Surname:      "Lee",
		BookingCount: bookingCount,
		DateJoined:   time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	item := core.InventoryItem{
		Title:          "Kayak",
		Description:    "Two seater",
		RemainingCount: remaining,
		ExpirationDate: time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.InsertMember(ctx, &m))
	require.NoError(t, store.InsertInventoryItem(ctx, &item))
	return m, item
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"bookings.db", "file:bookings.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"},
		{"sqlite://data/b.db", "file:data/b.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"},
		{"file:b.db?cache=shared", "file:b.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DSN(tt.path, 5*time.Second), tt.path)
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestStore_MemberAndItemRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m, item := seed(t, store, 1, 3)

	gotMember, err := store.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, gotMember)

	gotItem, err := store.GetInventoryItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, gotItem)

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	items, err := store.ListInventoryItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetMember(ctx, 42)
	var nf *core.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, core.EntityMember, nf.Entity)

	_, err = store.GetInventoryItem(ctx, 42)
	assert.True(t, core.IsNotFound(err))

	_, err = store.GetBookingForUpdate(ctx, 9999)
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, core.EntityBooking, nf.Entity)

	assert.True(t, core.IsNotFound(store.DeleteBooking(ctx, 9999)))
	assert.True(t, core.IsNotFound(store.SetMemberBookingCount(ctx, 9999, 1)))
	assert.True(t, core.IsNotFound(store.SetRemainingCount(ctx, 9999, 1)))

	_, err = store.GetImportRun(ctx, uuid.New())
	assert.True(t, core.IsNotFound(err))
}

func TestStore_BookingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m, item := seed(t, store, 0, 1)

	b := core.Booking{
		BookedAt:    time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
		MemberID:    m.ID,
		InventoryID: item.ID,
	}
	require.NoError(t, store.InsertBooking(ctx, &b))
	assert.NotZero(t, b.ID)

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	n, err := store.CountBookings(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.CountBookings(ctx, 0, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.DeleteBooking(ctx, b.ID))
	n, err = store.CountBookings(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_InsertBookingUnknownMember(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, item := seed(t, store, 0, 1)

	b := core.Booking{BookedAt: time.Now(), MemberID: 777, InventoryID: item.ID}
	err := store.InsertBooking(ctx, &b)

	var nf *core.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, core.EntityMemberOrItem, nf.Entity)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m, _ := seed(t, store, 0, 1)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.SetMemberBookingCount(ctx, m.ID, 2))

		// Nested calls join the outer transaction.
		return store.WithTx(ctx, func(ctx context.Context) error {
			got, err := store.GetMemberForUpdate(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, got.BookingCount)
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.BookingCount)
}

func TestStore_WithTxCommits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m, item := seed(t, store, 0, 5)

	err := store.WithTx(ctx, func(ctx context.Context) error {
		if err := store.SetMemberBookingCount(ctx, m.ID, 1); err != nil {
			return err
		}
		return store.SetRemainingCount(ctx, item.ID, 4)
	})
	require.NoError(t, err)

	gotMember, err := store.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotMember.BookingCount)

	gotItem, err := store.GetInventoryItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, gotItem.RemainingCount)
}

func TestStore_ImportRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := core.ImportRun{
		ID:              uuid.New(),
		Origin:          core.OriginDirectory,
		StartedAt:       base,
		FinishedAt:      base.Add(time.Second),
		MembersImported: 3,
	}
	newer := core.ImportRun{
		ID:                uuid.New(),
		Origin:            core.OriginUpload,
		StartedAt:         base.Add(500 * time.Millisecond),
		FinishedAt:        base.Add(2 * time.Second),
		InventoryImported: 2,
		InventorySkipped:  1,
	}
	require.NoError(t, store.RecordImportRun(ctx, older))
	require.NoError(t, store.RecordImportRun(ctx, newer))

	runs, err := store.ListImportRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer, runs[0])
	assert.Equal(t, older, runs[1])

	runs, err = store.ListImportRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	got, err := store.GetImportRun(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older, got)
}
