package core

// booking.go creates and cancels bookings.
//
// Both operations run in one store transaction and lock the rows they touch
// (member then item for create; booking, member, item for cancel), so two
// concurrent requests can never both take the last unit of stock or push a
// member past the limit. Across any sequence of committed operations:
//
//	member.BookingCount == number of bookings for that member
//	item.RemainingCount  == initial stock - number of bookings for that item

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/bookings/internal/clock"
	"github.com/JonMunkholm/bookings/internal/logging"
)

// DefaultMaxBookingsPerMember is the per-member limit of active bookings.
const DefaultMaxBookingsPerMember = 2

// BookingManager enforces booking limits and keeps counters consistent.
type BookingManager struct {
	store        BookingStore
	clock        clock.Clock
	maxPerMember int
}

// NewBookingManager creates a BookingManager. A non-positive maxPerMember
// falls back to DefaultMaxBookingsPerMember.
func NewBookingManager(store BookingStore, clk clock.Clock, maxPerMember int) *BookingManager {
	if maxPerMember <= 0 {
		maxPerMember = DefaultMaxBookingsPerMember
	}
	return &BookingManager{store: store, clock: clk, maxPerMember: maxPerMember}
}

// MaxPerMember returns the configured per-member limit.
func (m *BookingManager) MaxPerMember() int { return m.maxPerMember }

// Create books one unit of itemID for memberID.
//
// Checks run in this order: both rows must exist (*NotFoundError for
// "member or item"), the member must be under the limit, and the item must
// have stock left (*CapacityExceededError). On success the booking is
// inserted, the member's count goes up by one and the item's stock down by
// one, all in the same transaction.
func (m *BookingManager) Create(ctx context.Context, memberID, itemID int64) (Booking, error) {
	logger := logging.WithFields(ctx, "member_id", memberID, "item_id", itemID)

	var booking Booking
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		member, item, err := m.lockPair(ctx, memberID, itemID)
		if err != nil {
			return err
		}

		if member.BookingCount >= m.maxPerMember {
			return &CapacityExceededError{Scope: ScopeMember, ID: memberID, Limit: m.maxPerMember}
		}
		if item.RemainingCount <= 0 {
			return &CapacityExceededError{Scope: ScopeItem, ID: itemID}
		}

		booking = Booking{
			BookedAt:    m.clock.Now(),
			MemberID:    memberID,
			InventoryID: itemID,
		}
		if err := m.store.InsertBooking(ctx, &booking); err != nil {
			return err
		}
		if err := m.store.SetMemberBookingCount(ctx, memberID, member.BookingCount+1); err != nil {
			return err
		}
		return m.store.SetRemainingCount(ctx, itemID, item.RemainingCount-1)
	})
	if err != nil {
		logger.Info("booking rejected", "error", err)
		return Booking{}, err
	}

	logger.Info("booking created", "booking_id", booking.ID)
	return booking, nil
}

// lockPair locks the member and then the item. Either one missing yields
// a single "member or item" NotFoundError.
func (m *BookingManager) lockPair(ctx context.Context, memberID, itemID int64) (Member, InventoryItem, error) {
	member, err := m.store.GetMemberForUpdate(ctx, memberID)
	if err != nil {
		return Member{}, InventoryItem{}, asMemberOrItem(err)
	}
	item, err := m.store.GetInventoryItemForUpdate(ctx, itemID)
	if err != nil {
		return Member{}, InventoryItem{}, asMemberOrItem(err)
	}
	return member, item, nil
}

func asMemberOrItem(err error) error {
	if IsNotFound(err) {
		return &NotFoundError{Entity: EntityMemberOrItem}
	}
	return err
}

// Cancel deletes booking id and returns its unit of stock.
//
// The member's count is decremented but never below zero; a count that was
// already zero is logged as drift and left alone. The item's stock is
// always incremented. A missing booking yields *NotFoundError.
func (m *BookingManager) Cancel(ctx context.Context, id int64) error {
	logger := logging.WithFields(ctx, "booking_id", id)

	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		booking, err := m.store.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}

		member, err := m.store.GetMemberForUpdate(ctx, booking.MemberID)
		if err != nil {
			return err
		}
		item, err := m.store.GetInventoryItemForUpdate(ctx, booking.InventoryID)
		if err != nil {
			return err
		}

		if err := m.store.DeleteBooking(ctx, id); err != nil {
			return err
		}

		count := member.BookingCount - 1
		if count < 0 {
			logger.Warn("member booking count already zero on cancel",
				slog.Int64("member_id", member.ID))
			count = 0
		}
		if err := m.store.SetMemberBookingCount(ctx, member.ID, count); err != nil {
			return err
		}
		return m.store.SetRemainingCount(ctx, item.ID, item.RemainingCount+1)
	})
	if err != nil {
		logger.Info("cancel rejected", "error", err)
		return err
	}

	logger.Info("booking cancelled")
	return nil
}
