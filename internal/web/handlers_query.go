package web

// handlers_query.go serves the read-only endpoints.

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.service.Members(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, nonNil(members))
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	member, err := s.service.Member(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, member)
}

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.InventoryItems(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, nonNil(items))
}

func (s *Server) handleGetInventoryItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	item, err := s.service.InventoryItem(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.service.Bookings(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, nonNil(bookings))
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	booking, err := s.service.Booking(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, booking)
}

// handleListImports returns recent import runs, newest first.
// Supports ?limit=N (default 50).
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultImportRunsLimit)
	runs, err := s.service.ImportRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, nonNil(runs))
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, r, core.InvalidRequest("invalid import id: %q", raw))
		return
	}
	run, err := s.service.ImportRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, run)
}

// handleHealth reports whether the store answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Health(r.Context()); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
