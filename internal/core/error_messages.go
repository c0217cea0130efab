package core

// error_messages.go maps errors to the messages clients see.
//
// Typed domain errors are matched first with errors.As / errors.Is and
// carry the exact client-facing wording. Raw driver errors that escape the
// storage packages are matched by substring against errorPatterns. Anything
// else becomes ERR000 and the technical error stays in the server log.
//
// # Booking Errors (BKG001-BKG099)
//
//	BKG001 - Booking not found                  404
//	BKG002 - Member or item not found           404
//	BKG003 - Maximum bookings reached           400
//	BKG004 - Item not available                 400
//	BKG005 - Member not found / Item not found  404 (read endpoints)
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - <source> not found                 404
//	IMP002 - Import failed: <detail>            500
//	IMP003 - Another import is running          503
//	IMP004 - Import run not found               404
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request                    400
//	REQ002 - Request cancelled                  499
//	REQ003 - Request timed out                  504
//	VAL001 - Unsupported date format            400
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Database is busy                    503
//	DB002 - Referenced record does not exist    409
//	DB003 - Duplicate record                    409
//	DB004 - Service unavailable                 503 (health)
//
//	ERR000 - An unexpected error occurred       500

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusClientClosedRequest is the nginx convention for a request the
// client abandoned.
const StatusClientClosedRequest = 499

// UserMessage is the client-facing form of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
	Status  int    // HTTP status
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted only for errors that are not typed domain
// errors. First match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database is busy",
			Action:  "Please try again",
			Code:    "DB001",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database is busy",
			Action:  "Please try again",
			Code:    "DB001",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import members and inventory before booking",
			Code:    "DB002",
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "Duplicate record",
			Action:  "Check for duplicate entries",
			Code:    "DB003",
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "Duplicate record",
			Action:  "Check for duplicate entries",
			Code:    "DB003",
			Status:  http.StatusConflict,
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts err into a UserMessage. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		switch notFound.Entity {
		case EntityBooking:
			return UserMessage{Message: "Booking not found", Code: "BKG001", Status: http.StatusNotFound}
		case EntityMemberOrItem:
			return UserMessage{Message: "Member or item not found", Code: "BKG002", Status: http.StatusNotFound}
		case EntityMember:
			return UserMessage{Message: "Member not found", Code: "BKG005", Status: http.StatusNotFound}
		case EntityImportRun:
			return UserMessage{Message: "Import run not found", Code: "IMP004", Status: http.StatusNotFound}
		default:
			return UserMessage{Message: "Item not found", Code: "BKG005", Status: http.StatusNotFound}
		}
	}

	var capacity *CapacityExceededError
	if errors.As(err, &capacity) {
		if capacity.Scope == ScopeMember {
			return UserMessage{
				Message: "Maximum bookings reached",
				Action:  "Cancel an existing booking first",
				Code:    "BKG003",
				Status:  http.StatusBadRequest,
			}
		}
		return UserMessage{Message: "Item not available", Code: "BKG004", Status: http.StatusBadRequest}
	}

	var missing *SourceNotFoundError
	if errors.As(err, &missing) {
		return UserMessage{
			Message: missing.Error(),
			Action:  "Place " + missing.Source + " in the import directory or upload it",
			Code:    "IMP001",
			Status:  http.StatusNotFound,
		}
	}

	if errors.Is(err, ErrImportBusy) {
		return UserMessage{
			Message: "Another import is running",
			Action:  "Please wait a moment and try again",
			Code:    "IMP003",
			Status:  http.StatusServiceUnavailable,
		}
	}

	if errors.Is(err, ErrStoreUnavailable) {
		return UserMessage{Message: "Service unavailable", Code: "DB004", Status: http.StatusServiceUnavailable}
	}

	var failed *ImportFailedError
	if errors.As(err, &failed) {
		return UserMessage{
			Message: fmt.Sprintf("Import failed: %v", failed.Err),
			Code:    "IMP002",
			Status:  http.StatusInternalServerError,
		}
	}

	var dateErr *DateFormatError
	if errors.As(err, &dateErr) {
		return UserMessage{
			Message: "Unsupported date format",
			Action:  "Use YYYY-MM-DDThh:mm:ss or DD/MM/YYYY",
			Code:    "VAL001",
			Status:  http.StatusBadRequest,
		}
	}

	if errors.Is(err, ErrInvalidRequest) {
		return UserMessage{Message: invalidRequestMessage(err), Code: "REQ001", Status: http.StatusBadRequest}
	}
	if errors.Is(err, context.Canceled) {
		return UserMessage{Message: "Request cancelled", Code: "REQ002", Status: StatusClientClosedRequest}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return UserMessage{Message: "Request timed out", Action: "Please try again", Code: "REQ003", Status: http.StatusGatewayTimeout}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// invalidRequestMessage keeps the detail attached to ErrInvalidRequest,
// e.g. "invalid request: booking_id must be a positive integer" becomes
// "Invalid request: booking_id must be a positive integer".
func invalidRequestMessage(err error) string {
	msg := err.Error()
	if msg == ErrInvalidRequest.Error() {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// InvalidRequest wraps ErrInvalidRequest with a detail message.
func InvalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
