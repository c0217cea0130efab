// Package postgres implements core.Store on PostgreSQL through a pgx
// connection pool. Booking transactions lock the rows they modify with
// SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/JonMunkholm/bookings/internal/storage/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PoolOptions tunes the pgx pool. Zero values keep the pgx defaults.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a PostgreSQL-backed core.Store.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB // database/sql view of pool, for goose
}

var _ core.Store = (*Store)(nil)

// Open connects to url and verifies the connection.
func Open(ctx context.Context, url string, opts PoolOptions) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: stdlib.OpenDBFromPool(pool)}
}

// DB returns a database/sql handle sharing the pool, used by migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return migrations.Up(ctx, s.db, migrations.DialectPostgres)
}

// --- import ---

func (s *Store) InsertMember(ctx context.Context, m *core.Member) error {
	const stmt = `
INSERT INTO members (name, surname, booking_count, date_joined)
VALUES ($1, $2, $3, $4)
RETURNING id`

	if err := s.queryRow(ctx, stmt, m.Name, m.Surname, m.BookingCount, m.DateJoined).Scan(&m.ID); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *Store) InsertInventoryItem(ctx context.Context, item *core.InventoryItem) error {
	const stmt = `
INSERT INTO inventory (title, description, remaining_count, expiration_date)
VALUES ($1, $2, $3, $4)
RETURNING id`

	err := s.queryRow(ctx, stmt,
		item.Title,
		item.Description,
		item.RemainingCount,
		item.ExpirationDate,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	const stmt = `
INSERT INTO import_runs (id, origin, started_at, finished_at,
    members_imported, members_skipped, inventory_imported, inventory_skipped)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.exec(ctx, stmt,
		run.ID,
		run.Origin,
		run.StartedAt,
		run.FinishedAt,
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
	row := s.queryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMember(row)
	if err != nil {
		return core.Member{}, notFound(err, core.EntityMember, id)
	}
	return m, nil
}

func (s *Store) GetInventoryItemForUpdate(ctx context.Context, id int64) (core.InventoryItem, error) {
	row := s.queryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = $1 FOR UPDATE`, id)
	item, err := scanInventoryItem(row)
	if err != nil {
		return core.InventoryItem{}, notFound(err, core.EntityItem, id)
	}
	return item, nil
}

func (s *Store) GetBookingForUpdate(ctx context.Context, id int64) (core.Booking, error) {
	row := s.queryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if err != nil {
		return core.Booking{}, notFound(err, core.EntityBooking, id)
	}
	return b, nil
}

func (s *Store) InsertBooking(ctx context.Context, b *core.Booking) error {
	const stmt = `
INSERT INTO bookings (booking_datetime, member_id, inventory_id)
VALUES ($1, $2, $3)
RETURNING id`

	if err := s.queryRow(ctx, stmt, b.BookedAt, b.MemberID, b.InventoryID).Scan(&b.ID); err != nil {
		if isForeignKeyViolation(err) {
			return &core.NotFoundError{Entity: core.EntityMemberOrItem}
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id int64) error {
	tag, err := s.exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return requireRow(tag, core.EntityBooking, id)
}

func (s *Store) SetMemberBookingCount(ctx context.Context, memberID int64, count int) error {
	tag, err := s.exec(ctx, `UPDATE members SET booking_count = $1 WHERE id = $2`, count, memberID)
	if err != nil {
		return fmt.Errorf("update member booking count: %w", err)
	}
	return requireRow(tag, core.EntityMember, memberID)
}

func (s *Store) SetRemainingCount(ctx context.Context, itemID int64, count int) error {
	tag, err := s.exec(ctx, `UPDATE inventory SET remaining_count = $1 WHERE id = $2`, count, itemID)
	if err != nil {
		return fmt.Errorf("update remaining count: %w", err)
	}
	return requireRow(tag, core.EntityItem, itemID)
}

func requireRow(tag pgconn.CommandTag, entity string, id int64) error {
	if tag.RowsAffected() == 0 {
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

func scanMember(row pgx.Row) (core.Member, error) {
	var m core.Member
	if err := row.Scan(&m.ID, &m.Name, &m.Surname, &m.BookingCount, &m.DateJoined); err != nil {
		return core.Member{}, err
	}
	m.DateJoined = m.DateJoined.UTC()
	return m, nil
}

func scanInventoryItem(row pgx.Row) (core.InventoryItem, error) {
	var item core.InventoryItem
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &item.RemainingCount, &item.ExpirationDate); err != nil {
		return core.InventoryItem{}, err
	}
	item.ExpirationDate = item.ExpirationDate.UTC()
	return item, nil
}

func scanBooking(row pgx.Row) (core.Booking, error) {
	var b core.Booking
	if err := row.Scan(&b.ID, &b.BookedAt, &b.MemberID, &b.InventoryID); err != nil {
		return core.Booking{}, err
	}
	b.BookedAt = b.BookedAt.UTC()
	return b, nil
}

func scanImportRun(row pgx.Row) (core.ImportRun, error) {
	var run core.ImportRun
	err := row.Scan(&run.ID, &run.Origin, &run.StartedAt, &run.FinishedAt,
		&run.MembersImported, &run.MembersSkipped, &run.InventoryImported, &run.InventorySkipped)
	if err != nil {
		return core.ImportRun{}, err
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return run, nil
}

func (s *Store) GetMember(ctx context.Context, id int64) (core.Member, error) {
	m, err := scanMember(s.queryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		return core.Member{}, notFound(err, core.EntityMember, id)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]core.Member, error) {
	return list(ctx, s, "list members", scanMember, `SELECT `+memberColumns+` FROM members ORDER BY id`)
}

func (s *Store) GetInventoryItem(ctx context.Context, id int64) (core.InventoryItem, error) {
	item, err := scanInventoryItem(s.queryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = $1`, id))
	if err != nil {
		return core.InventoryItem{}, notFound(err, core.EntityItem, id)
	}
	return item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]core.InventoryItem, error) {
	return list(ctx, s, "list inventory", scanInventoryItem, `SELECT `+inventoryColumns+` FROM inventory ORDER BY id`)
}

func (s *Store) GetBooking(ctx context.Context, id int64) (core.Booking, error) {
	b, err := scanBooking(s.queryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return core.Booking{}, notFound(err, core.EntityBooking, id)
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context) ([]core.Booking, error) {
	return list(ctx, s, "list bookings", scanBooking, `SELECT `+bookingColumns+` FROM bookings ORDER BY id`)
}

// CountBookings counts bookings matching memberID and itemID; a zero id
// matches any.
func (s *Store) CountBookings(ctx context.Context, memberID, itemID int64) (int, error) {
	const query = `
SELECT COUNT(*) FROM bookings
WHERE ($1::bigint = 0 OR member_id = $1) AND ($2::bigint = 0 OR inventory_id = $2)`

	var n int
	if err := s.queryRow(ctx, query, memberID, itemID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	return list(ctx, s, "list import runs", scanImportRun,
		`SELECT `+importRunColumns+` FROM import_runs ORDER BY started_at DESC LIMIT $1`, limit)
}

func (s *Store) GetImportRun(ctx context.Context, id uuid.UUID) (core.ImportRun, error) {
	run, err := scanImportRun(s.queryRow(ctx, `SELECT `+importRunColumns+` FROM import_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ImportRun{}, &core.NotFoundError{Entity: core.EntityImportRun}
		}
		return core.ImportRun{}, fmt.Errorf("get import run: %w", err)
	}
	return run, nil
}

func list[T any](ctx context.Context, s *Store, op string, scan func(pgx.Row) (T, error), query string, args ...any) ([]T, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *Store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}
