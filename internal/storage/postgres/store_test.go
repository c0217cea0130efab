package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupTestStore starts a disposable PostgreSQL container and applies the
// migrations.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	container, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("bookings"),
		postgresTC.WithUsername("bookings"),
		postgresTC.WithPassword("bookings"),
		postgresTC.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, url, PoolOptions{MaxConns: 8})
	require.NoError(t, err, "Failed to connect to PostgreSQL")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "migrations must be idempotent")
	return store
}

func truncateAll(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.pool.Exec(context.Background(),
		`TRUNCATE bookings, members, inventory, import_runs RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
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

func TestStore(t *testing.T) {
	store := setupTestStore(t)

	t.Run("round trips members and items", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
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
	})

	t.Run("missing rows map to NotFoundError", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)

		err := store.WithTx(ctx, func(txCtx context.Context) error {
			_, err := store.GetMemberForUpdate(txCtx, 42)
			var nf *core.NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, core.EntityMember, nf.Entity)

			_, err = store.GetBookingForUpdate(txCtx, 9999)
			assert.True(t, core.IsNotFound(err))
			return nil
		})
		require.NoError(t, err)

		assert.True(t, core.IsNotFound(store.DeleteBooking(ctx, 9999)))
		_, err = store.GetImportRun(ctx, uuid.New())
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("booking with unknown member violates foreign key", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
		_, item := seed(t, store, 0, 1)

		b := core.Booking{BookedAt: time.Now().UTC(), MemberID: 777, InventoryID: item.ID}
		err := store.InsertBooking(ctx, &b)

		var nf *core.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, core.EntityMemberOrItem, nf.Entity)
	})

	t.Run("WithTx rolls back on error", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
		m, _ := seed(t, store, 0, 1)

		boom := errors.New("boom")
		err := store.WithTx(ctx, func(txCtx context.Context) error {
			require.NoError(t, store.SetMemberBookingCount(txCtx, m.ID, 2))
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := store.GetMember(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.BookingCount)
	})

	t.Run("WithTx rolls back on panic and releases the connection", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
		m, _ := seed(t, store, 0, 1)

		assert.Panics(t, func() {
			_ = store.WithTx(ctx, func(txCtx context.Context) error {
				require.NoError(t, store.SetMemberBookingCount(txCtx, m.ID, 2))
				panic("boom")
			})
		})

		assert.Zero(t, store.pool.Stat().AcquiredConns())
		got, err := store.GetMember(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.BookingCount)
	})

	t.Run("FOR UPDATE serializes concurrent decrements", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
		_, item := seed(t, store, 0, 10)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.WithTx(ctx, func(txCtx context.Context) error {
					it, err := store.GetInventoryItemForUpdate(txCtx, item.ID)
					if err != nil {
						return err
					}
					return store.SetRemainingCount(txCtx, item.ID, it.RemainingCount-1)
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.GetInventoryItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.RemainingCount)
	})

	t.Run("booking lifecycle and counts", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
		m, item := seed(t, store, 0, 1)

		b := core.Booking{
			BookedAt:    time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
			MemberID:    m.ID,
			InventoryID: item.ID,
		}
		require.NoError(t, store.InsertBooking(ctx, &b))

		got, err := store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)

		n, err := store.CountBookings(ctx, m.ID, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, store.DeleteBooking(ctx, b.ID))
		n, err = store.CountBookings(ctx, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("import runs newest first", func(t *testing.T) {
		ctx := context.Background()
		truncateAll(t, store)
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		older := core.ImportRun{ID: uuid.New(), Origin: core.OriginDirectory, StartedAt: base, FinishedAt: base.Add(time.Second)}
		newer := core.ImportRun{ID: uuid.New(), Origin: core.OriginUpload, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(2 * time.Minute)}
		require.NoError(t, store.RecordImportRun(ctx, older))
		require.NoError(t, store.RecordImportRun(ctx, newer))

		runs, err := store.ListImportRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, newer, runs[0])
		assert.Equal(t, older, runs[1])

		got, err := store.GetImportRun(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older, got)
	})
}
