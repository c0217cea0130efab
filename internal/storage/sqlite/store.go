// Package sqlite implements core.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo).
//
// The pool is capped at one connection and every transaction begins
// IMMEDIATE, so booking transactions are fully serialized. Row locks are
// therefore implicit: the ForUpdate lookups are plain SELECTs run inside
// that transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/JonMunkholm/bookings/internal/storage/migrations"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store is a SQLite-backed core.Store.
type Store struct {
	db   *sql.DB
	path string
}

var _ core.Store = (*Store)(nil)

// DSN builds the driver connection string for path.
func DSN(path string, busyTimeout time.Duration) string {
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "file:")

	params := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + strings.Join(params, "&")
}

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", DSN(path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// DB returns the underlying handle, used by the migration command.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return migrations.Up(ctx, s.db, migrations.DialectSQLite)
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// --- import ---

func (s *Store) InsertMember(ctx context.Context, m *core.Member) error {
	const stmt = `
INSERT INTO members (name, surname, booking_count, date_joined)
VALUES (?, ?, ?, ?)`

	res, err := s.q(ctx).ExecContext(ctx, stmt, m.Name, m.Surname, m.BookingCount, formatTime(m.DateJoined))
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	m.ID = id
	return nil
}

func (s *Store) InsertInventoryItem(ctx context.Context, item *core.InventoryItem) error {
	const stmt = `
INSERT INTO inventory (title, description, remaining_count, expiration_date)
VALUES (?, ?, ?, ?)`

	res, err := s.q(ctx).ExecContext(ctx, stmt,
		item.Title,
		item.Description,
		item.RemainingCount,
		formatTime(item.ExpirationDate),
	)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	item.ID = id
	return nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	const stmt = `
INSERT INTO import_runs (id, origin, started_at, finished_at,
    members_imported, members_skipped, inventory_imported, inventory_skipped)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q(ctx).ExecContext(ctx, stmt,
		run.ID.String(),
		run.Origin,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.MembersImported,
		run.MembersSkipped,
		run.InventoryImported,
		run.InventorySkipped,
	)
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

// --- booking ---

func (s *Store) GetMemberForUpdate(ctx context.Context, id int64) (core.Member, error) {
	return s.GetMember(ctx, id)
}

func (s *Store) GetInventoryItemForUpdate(ctx context.Context, id int64) (core.InventoryItem, error) {
	return s.GetInventoryItem(ctx, id)
}

func (s *Store) GetBookingForUpdate(ctx context.Context, id int64) (core.Booking, error) {
	return s.GetBooking(ctx, id)
}

func (s *Store) InsertBooking(ctx context.Context, b *core.Booking) error {
	const stmt = `
INSERT INTO bookings (booking_datetime, member_id, inventory_id)
VALUES (?, ?, ?)`

	res, err := s.q(ctx).ExecContext(ctx, stmt, formatTime(b.BookedAt), b.MemberID, b.InventoryID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &core.NotFoundError{Entity: core.EntityMemberOrItem}
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.ID = id
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return requireRow(res, core.EntityBooking, id)
}

func (s *Store) SetMemberBookingCount(ctx context.Context, memberID int64, count int) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE members SET booking_count = ? WHERE id = ?`, count, memberID)
	if err != nil {
		return fmt.Errorf("update member booking count: %w", err)
	}
	return requireRow(res, core.EntityMember, memberID)
}

func (s *Store) SetRemainingCount(ctx context.Context, itemID int64, count int) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE inventory SET remaining_count = ? WHERE id = ?`, count, itemID)
	if err != nil {
		return fmt.Errorf("update remaining count: %w", err)
	}
	return requireRow(res, core.EntityItem, itemID)
}

func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// --- queries ---

const (
	memberColumns    = `id, name, surname, booking_count, date_joined`
	inventoryColumns = `id, title, description, remaining_count, expiration_date`
	bookingColumns   = `id, booking_datetime, member_id, inventory_id`
	importRunColumns = `id, origin, started_at, finished_at,
    members_imported, members_skipped, inventory_imported, inventory_skipped`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (core.Member, error) {
	var (
		m      core.Member
		joined string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Surname, &m.BookingCount, &joined); err != nil {
		return core.Member{}, err
	}
	t, err := parseTime(joined)
	if err != nil {
		return core.Member{}, err
	}
	m.DateJoined = t
	return m, nil
}

func scanInventoryItem(row scanner) (core.InventoryItem, error) {
	var (
		item    core.InventoryItem
		expires string
	)
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &item.RemainingCount, &expires); err != nil {
		return core.InventoryItem{}, err
	}
	t, err := parseTime(expires)
	if err != nil {
		return core.InventoryItem{}, err
	}
	item.ExpirationDate = t
	return item, nil
}

func scanBooking(row scanner) (core.Booking, error) {
	var (
		b      core.Booking
		booked string
	)
	if err := row.Scan(&b.ID, &booked, &b.MemberID, &b.InventoryID); err != nil {
		return core.Booking{}, err
	}
	t, err := parseTime(booked)
	if err != nil {
		return core.Booking{}, err
	}
	b.BookedAt = t
	return b, nil
}

func scanImportRun(row scanner) (core.ImportRun, error) {
	var (
		run               core.ImportRun
		id                string
		started, finished string
	)
	err := row.Scan(&id, &run.Origin, &started, &finished,
		&run.MembersImported, &run.MembersSkipped, &run.InventoryImported, &run.InventorySkipped)
	if err != nil {
		return core.ImportRun{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return core.ImportRun{}, fmt.Errorf("parse import run id %q: %w", id, err)
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return core.ImportRun{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return core.ImportRun{}, err
	}
	return run, nil
}

func (s *Store) GetMember(ctx context.Context, id int64) (core.Member, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err != nil {
		return core.Member{}, notFound(err, core.EntityMember, id)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []core.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) GetInventoryItem(ctx context.Context, id int64) (core.InventoryItem, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`, id)
	item, err := scanInventoryItem(row)
	if err != nil {
		return core.InventoryItem{}, notFound(err, core.EntityItem, id)
	}
	return item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]core.InventoryItem, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+inventoryColumns+` FROM inventory ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	items := []core.InventoryItem{}
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list inventory: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetBooking(ctx context.Context, id int64) (core.Booking, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return core.Booking{}, notFound(err, core.EntityBooking, id)
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context) ([]core.Booking, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := []core.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// CountBookings counts bookings matching memberID and itemID; a zero id
// matches any.
func (s *Store) CountBookings(ctx context.Context, memberID, itemID int64) (int, error) {
	const query = `
SELECT COUNT(*) FROM bookings
WHERE (? = 0 OR member_id = ?) AND (? = 0 OR inventory_id = ?)`

	var n int
	err := s.q(ctx).QueryRowContext(ctx, query, memberID, memberID, itemID, itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+importRunColumns+` FROM import_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	runs := []core.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list import runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) GetImportRun(ctx context.Context, id uuid.UUID) (core.ImportRun, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+importRunColumns+` FROM import_runs WHERE id = ?`, id.String())
	run, err := scanImportRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ImportRun{}, &core.NotFoundError{Entity: core.EntityImportRun}
		}
		return core.ImportRun{}, err
	}
	return run, nil
}
