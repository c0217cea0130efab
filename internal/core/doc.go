// Package core provides the business logic of the bookings service.
//
// The package is independent of any transport or database. Web handlers,
// commands and tests drive it through [Service], and persistence is reached
// only through the [Store] interfaces implemented under internal/storage.
//
// # Import Sources
//
// Each CSV source is registered at init time using [Register]. A
// [SourceDefinition] describes the fixed file name, its columns and how a
// row becomes a record:
//
//	core.Register(core.SourceDefinition{
//	    Key:      core.SourceMembers,
//	    FileName: "member.csv",
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "name", Type: core.FieldText},
//	        {Name: "date_joined", Type: core.FieldDate, Required: true},
//	    },
//	    BuildRecord: buildMember,
//	    Insert:      insertMember,
//	})
//
// # Import Runs
//
// [Importer.Import] reads every registered source in Order:
//
//  1. The reader is wrapped to skip a BOM and repair invalid UTF-8
//  2. Headers are matched case-insensitively; missing columns read as empty
//  3. Rows whose required cells do not parse are skipped and reported
//  4. All surviving records are inserted in one transaction with an
//     [ImportRun] record, so a failed run leaves nothing behind
//
// A missing source aborts the run before anything is written. Runs are
// bounded by an [ImportLimiter].
//
// # Bookings
//
// [BookingManager] creates and cancels bookings inside a store transaction
// that locks the member and the item rows, keeping booking_count and
// remaining_count in step with the bookings table.
//
// # Error Handling
//
// Domain failures are typed ([NotFoundError], [CapacityExceededError],
// [SourceNotFoundError], [ImportFailedError]). [MapError] turns any error
// into the message, code and HTTP status a client sees:
//
//   - BKG001-BKG005: Booking errors
//   - IMP001-IMP004: Import errors
//   - REQ001-REQ003, VAL001: Request errors
//   - DB001-DB004: Database errors
package core
