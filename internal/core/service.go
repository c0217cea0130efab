package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JonMunkholm/bookings/internal/clock"
	"github.com/google/uuid"
)

// DefaultImportTimeout bounds a single import run.
const DefaultImportTimeout = 5 * time.Minute

// DefaultImportRunsLimit is how many runs ImportRuns returns by default.
const DefaultImportRunsLimit = 50

// ServiceConfig holds the tunables the service needs from configuration.
type ServiceConfig struct {
	ImportDir            string
	ImportTimeout        time.Duration
	MaxConcurrentImports int
	ImportWait           time.Duration
	MaxBookingsPerMember int
}

// Service provides the business operations behind the HTTP API.
type Service struct {
	store    Store
	importer *Importer
	bookings *BookingManager
	limiter  *ImportLimiter

	importDir     string
	importTimeout time.Duration
}

// NewService creates a Service on top of store.
func NewService(store Store, clk clock.Clock, cfg ServiceConfig) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if cfg.ImportDir == "" {
		cfg.ImportDir = "."
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}

	limiter := NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportWait)
	return &Service{
		store:         store,
		importer:      NewImporter(store, clk, limiter),
		bookings:      NewBookingManager(store, clk, cfg.MaxBookingsPerMember),
		limiter:       limiter,
		importDir:     cfg.ImportDir,
		importTimeout: cfg.ImportTimeout,
	}
}

// Limiter exposes the import limiter so shutdown can wait for running imports.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// MaxBookingsPerMember returns the configured per-member limit.
func (s *Service) MaxBookingsPerMember() int { return s.bookings.MaxPerMember() }

// ImportFromDir imports member.csv and inventory.csv from the configured
// import directory.
func (s *Service) ImportFromDir(ctx context.Context, dryRun bool) (ImportReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	return s.importer.Import(ctx, DirOpener(os.DirFS(s.importDir)), ImportOptions{
		Origin: OriginDirectory,
		DryRun: dryRun,
	})
}

// ImportFromReaders imports uploaded sources keyed by SourceDefinition.Key.
func (s *Service) ImportFromReaders(ctx context.Context, readers map[string]io.Reader, dryRun bool) (ImportReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	return s.importer.Import(ctx, ReaderOpener(readers), ImportOptions{
		Origin: OriginUpload,
		DryRun: dryRun,
	})
}

// CreateBooking books itemID for memberID.
func (s *Service) CreateBooking(ctx context.Context, memberID, itemID int64) (Booking, error) {
	return s.bookings.Create(ctx, memberID, itemID)
}

// CancelBooking cancels booking id.
func (s *Service) CancelBooking(ctx context.Context, id int64) error {
	return s.bookings.Cancel(ctx, id)
}

// Member returns one member.
func (s *Service) Member(ctx context.Context, id int64) (Member, error) {
	return s.store.GetMember(ctx, id)
}

// Members returns all members ordered by id.
func (s *Service) Members(ctx context.Context) ([]Member, error) {
	return s.store.ListMembers(ctx)
}

// InventoryItem returns one inventory item.
func (s *Service) InventoryItem(ctx context.Context, id int64) (InventoryItem, error) {
	return s.store.GetInventoryItem(ctx, id)
}

// InventoryItems returns all inventory items ordered by id.
func (s *Service) InventoryItems(ctx context.Context) ([]InventoryItem, error) {
	return s.store.ListInventoryItems(ctx)
}

// Booking returns one booking.
func (s *Service) Booking(ctx context.Context, id int64) (Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// Bookings returns all bookings ordered by id.
func (s *Service) Bookings(ctx context.Context) ([]Booking, error) {
	return s.store.ListBookings(ctx)
}

// ImportRuns returns the most recent committed imports, newest first.
func (s *Service) ImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = DefaultImportRunsLimit
	}
	return s.store.ListImportRuns(ctx, limit)
}

// ImportRun returns one committed import.
func (s *Service) ImportRun(ctx context.Context, id uuid.UUID) (ImportRun, error) {
	return s.store.GetImportRun(ctx, id)
}

// Health pings the store.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}
