package core

import (
	"context"

	"github.com/google/uuid"
)

// Transactor runs fn inside a single store transaction. The transaction
// travels in the context handed to fn; store calls made with that context
// join it. fn returning an error rolls everything back. Nested calls reuse
// the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ImportStore is what the importer needs from a store.
type ImportStore interface {
	Transactor
	// EnsureSchema creates any missing tables. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error
	InsertMember(ctx context.Context, m *Member) error
	InsertInventoryItem(ctx context.Context, item *InventoryItem) error
	RecordImportRun(ctx context.Context, run ImportRun) error
}

// BookingStore is what the booking manager needs from a store. The
// ForUpdate lookups lock the returned row until the surrounding
// transaction ends and return *NotFoundError when the row is absent.
type BookingStore interface {
	Transactor
	GetMemberForUpdate(ctx context.Context, id int64) (Member, error)
	GetInventoryItemForUpdate(ctx context.Context, id int64) (InventoryItem, error)
	GetBookingForUpdate(ctx context.Context, id int64) (Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	DeleteBooking(ctx context.Context, id int64) error
	SetMemberBookingCount(ctx context.Context, memberID int64, count int) error
	SetRemainingCount(ctx context.Context, itemID int64, count int) error
}

// QueryStore serves the read endpoints.
type QueryStore interface {
	GetMember(ctx context.Context, id int64) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	GetInventoryItem(ctx context.Context, id int64) (InventoryItem, error)
	ListInventoryItems(ctx context.Context) ([]InventoryItem, error)
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListBookings(ctx context.Context) ([]Booking, error)
	CountBookings(ctx context.Context, memberID, itemID int64) (int, error)
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)
	GetImportRun(ctx context.Context, id uuid.UUID) (ImportRun, error)
}

// Store is the full persistence handle. Implementations live under
// internal/storage.
type Store interface {
	ImportStore
	BookingStore
	QueryStore
	Ping(ctx context.Context) error
	Close() error
}
