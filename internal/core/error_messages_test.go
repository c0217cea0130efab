package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
		wantStatus  int
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
			wantStatus:  0,
		},
		{
			name:        "booking not found",
			err:         &NotFoundError{Entity: EntityBooking, ID: 9999},
			wantCode:    "BKG001",
			wantMessage: "Booking not found",
			wantStatus:  http.StatusNotFound,
		},
		{
			name:        "member or item not found",
			err:         fmt.Errorf("create booking: %w", &NotFoundError{Entity: EntityMemberOrItem}),
			wantCode:    "BKG002",
			wantMessage: "Member or item not found",
			wantStatus:  http.StatusNotFound,
		},
		{
			name:        "member lookup not found",
			err:         &NotFoundError{Entity: EntityMember, ID: 3},
			wantCode:    "BKG005",
			wantMessage: "Member not found",
			wantStatus:  http.StatusNotFound,
		},
		{
			name:        "member capacity",
			err:         &CapacityExceededError{Scope: ScopeMember, ID: 1, Limit: 2},
			wantCode:    "BKG003",
			wantMessage: "Maximum bookings reached",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "item capacity",
			err:         &CapacityExceededError{Scope: ScopeItem, ID: 4},
			wantCode:    "BKG004",
			wantMessage: "Item not available",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "member source missing",
			err:         &SourceNotFoundError{Source: "member.csv"},
			wantCode:    "IMP001",
			wantMessage: "member.csv not found",
			wantStatus:  http.StatusNotFound,
		},
		{
			name:        "inventory source missing",
			err:         &SourceNotFoundError{Source: "inventory.csv"},
			wantCode:    "IMP001",
			wantMessage: "inventory.csv not found",
			wantStatus:  http.StatusNotFound,
		},
		{
			name:        "import failed keeps detail",
			err:         &ImportFailedError{Err: errors.New("record on line 3: wrong number of fields")},
			wantCode:    "IMP002",
			wantMessage: "Import failed: record on line 3: wrong number of fields",
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name:        "import failed wins over wrapped deadline",
			err:         &ImportFailedError{Err: context.DeadlineExceeded},
			wantCode:    "IMP002",
			wantMessage: "Import failed: context deadline exceeded",
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name:        "import busy",
			err:         ErrImportBusy,
			wantCode:    "IMP003",
			wantMessage: "Another import is running",
			wantStatus:  http.StatusServiceUnavailable,
		},
		{
			name:        "invalid request with detail",
			err:         InvalidRequest("member_id is required"),
			wantCode:    "REQ001",
			wantMessage: "Invalid request: member_id is required",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "bare invalid request",
			err:         ErrInvalidRequest,
			wantCode:    "REQ001",
			wantMessage: "Invalid request",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "date format",
			err:         &DateFormatError{Field: "date_joined", Value: "31/02/2024"},
			wantCode:    "VAL001",
			wantMessage: "Unsupported date format",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "context cancelled",
			err:         context.Canceled,
			wantCode:    "REQ002",
			wantMessage: "Request cancelled",
			wantStatus:  StatusClientClosedRequest,
		},
		{
			name:        "context deadline",
			err:         fmt.Errorf("lock member: %w", context.DeadlineExceeded),
			wantCode:    "REQ003",
			wantMessage: "Request timed out",
			wantStatus:  http.StatusGatewayTimeout,
		},
		{
			name:        "sqlite busy",
			err:         errors.New("database is locked (5) (SQLITE_BUSY)"),
			wantCode:    "DB001",
			wantMessage: "Database is busy",
			wantStatus:  http.StatusServiceUnavailable,
		},
		{
			name:        "postgres foreign key",
			err:         errors.New(`ERROR: insert or update on table "bookings" violates foreign key constraint`),
			wantCode:    "DB002",
			wantMessage: "Referenced record does not exist",
			wantStatus:  http.StatusConflict,
		},
		{
			name:        "unknown error",
			err:         errors.New("something odd"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
			wantStatus:  http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError().Message = %q, want %q", got.Message, tt.wantMessage)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("MapError().Status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestTypedErrors_Is(t *testing.T) {
	if !errors.Is(fmt.Errorf("wrap: %w", &NotFoundError{Entity: EntityBooking}), ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if !errors.Is(&CapacityExceededError{Scope: ScopeItem}, ErrCapacityExceeded) {
		t.Error("CapacityExceededError should match ErrCapacityExceeded")
	}
	if errors.Is(&CapacityExceededError{Scope: ScopeItem}, ErrNotFound) {
		t.Error("CapacityExceededError should not match ErrNotFound")
	}

	cause := errors.New("disk full")
	if !errors.Is(&ImportFailedError{Err: cause}, cause) {
		t.Error("ImportFailedError should unwrap to its cause")
	}
}
