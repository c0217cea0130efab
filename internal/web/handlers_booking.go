package web

import (
	"net/http"

	"github.com/JonMunkholm/bookings/internal/core"
)

// bookRequest is the body of POST /book.
type bookRequest struct {
	MemberID    *int64 `json:"member_id"`
	InventoryID *int64 `json:"inventory_id"`
}

// handleBook creates a booking.
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.MemberID == nil || req.InventoryID == nil {
		s.respondError(w, r, core.InvalidRequest("member_id and inventory_id are required"))
		return
	}

	booking, err := s.service.CreateBooking(r.Context(), *req.MemberID, *req.InventoryID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{
		"message":    "Booking successful",
		"booking_id": booking.ID,
	})
}

// handleCancel cancels the booking named in the path.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "booking_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.CancelBooking(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, map[string]string{"message": "Booking cancelled successfully"})
}
