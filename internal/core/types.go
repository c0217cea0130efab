package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Member is a person entitled to make bookings.
type Member struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	BookingCount int       `json:"booking_count"`
	DateJoined   time.Time `json:"date_joined"`
}

// InventoryItem is a bookable resource with finite remaining stock.
type InventoryItem struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	RemainingCount int       `json:"remaining_count"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// Booking links one member to one inventory item. Bookings are never
// updated, only created and deleted.
type Booking struct {
	ID          int64     `json:"id"`
	BookedAt    time.Time `json:"booking_datetime"`
	MemberID    int64     `json:"member_id"`
	InventoryID int64     `json:"inventory_id"`
}

// Import origins recorded on ImportRun.
const (
	OriginDirectory = "directory"
	OriginUpload    = "upload"
)

// ImportRun is the persisted summary of a committed import.
type ImportRun struct {
	ID                uuid.UUID `json:"id"`
	Origin            string    `json:"origin"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	MembersImported   int       `json:"members_imported"`
	MembersSkipped    int       `json:"members_skipped"`
	InventoryImported int       `json:"inventory_imported"`
	InventorySkipped  int       `json:"inventory_skipped"`
}

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldCount
	FieldDate
)

// FieldSpec describes one column of an import source.
type FieldSpec struct {
	Name     string    // Header name, matched case-insensitively
	Type     FieldType // How the cell is parsed
	Required bool      // Row is skipped when the value cannot be parsed
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// BuildRecordFunc turns a CSV row into a record ready for insertion.
// A returned error skips the row.
type BuildRecordFunc func(row []string, idx HeaderIndex) (any, error)

// InsertRecordFunc inserts a record produced by BuildRecord.
type InsertRecordFunc func(ctx context.Context, store ImportStore, record any) error

// SourceDefinition contains everything needed to import one source file.
type SourceDefinition struct {
	Key         string // Registry key: "members", "inventory"
	FileName    string // Fixed file name, e.g. "member.csv"
	FormField   string // Multipart part name for uploaded imports
	Order       int    // Passes run in ascending order
	FieldSpecs  []FieldSpec
	BuildRecord BuildRecordFunc
	Insert      InsertRecordFunc
}

// RowFailure is the diagnostic for a row skipped during an import pass.
type RowFailure struct {
	Line   int      `json:"line"`
	Raw    []string `json:"raw"`
	Reason string   `json:"reason"`
}

// PassResult is the fold of one import pass over its source rows.
type PassResult struct {
	Source   string       `json:"source"`
	File     string       `json:"file"`
	Rows     int          `json:"rows"`
	Imported int          `json:"imported"`
	Skipped  int          `json:"skipped"`
	Failures []RowFailure `json:"failures,omitempty"`

	records []any
}

// ImportReport is returned by a completed (or dry-run) import.
type ImportReport struct {
	RunID     uuid.UUID  `json:"run_id"`
	DryRun    bool       `json:"dry_run,omitempty"`
	Members   PassResult `json:"members"`
	Inventory PassResult `json:"inventory"`
}
