package core

// import.go loads members and inventory from their CSV sources.
//
// An import is two passes (one per registered source, in Order) followed by
// a single commit:
//
//  1. EnsureSchema creates missing tables.
//  2. Each pass opens its source and folds the rows into records plus
//     RowFailure diagnostics. A bad row is logged and skipped; a missing
//     source aborts the import with *SourceNotFoundError.
//  3. All records and the ImportRun summary are inserted in one
//     transaction. Any failure rolls the whole import back and surfaces as
//     *ImportFailedError.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/JonMunkholm/bookings/internal/clock"
	"github.com/JonMunkholm/bookings/internal/logging"
	"github.com/google/uuid"
)

// Registry keys of the two built-in sources.
const (
	SourceMembers   = "members"
	SourceInventory = "inventory"
)

// ContextCheckInterval is how often (in rows) a pass checks for cancellation.
var ContextCheckInterval = 100

// SourceOpener opens the raw stream for a source. A missing source must be
// reported with an error matching fs.ErrNotExist.
type SourceOpener func(def SourceDefinition) (io.ReadCloser, error)

// DirOpener opens sources by their fixed file names in fsys.
func DirOpener(fsys fs.FS) SourceOpener {
	return func(def SourceDefinition) (io.ReadCloser, error) {
		return fsys.Open(def.FileName)
	}
}

// ReaderOpener serves sources from in-memory readers keyed by
// SourceDefinition.Key, as used for uploaded files.
func ReaderOpener(readers map[string]io.Reader) SourceOpener {
	return func(def SourceDefinition) (io.ReadCloser, error) {
		r, ok := readers[def.Key]
		if !ok || r == nil {
			return nil, fmt.Errorf("%s: %w", def.FileName, fs.ErrNotExist)
		}
		return io.NopCloser(r), nil
	}
}

// ImportOptions tunes a single import run.
type ImportOptions struct {
	Origin string // OriginDirectory or OriginUpload
	DryRun bool   // parse and report without writing
}

// Importer loads members and inventory into an ImportStore.
type Importer struct {
	store   ImportStore
	clock   clock.Clock
	limiter *ImportLimiter
}

// NewImporter creates an Importer. A nil limiter means imports are not
// throttled.
func NewImporter(store ImportStore, clk clock.Clock, limiter *ImportLimiter) *Importer {
	return &Importer{store: store, clock: clk, limiter: limiter}
}

// Import runs both passes using open and commits the result.
func (im *Importer) Import(ctx context.Context, open SourceOpener, opts ImportOptions) (ImportReport, error) {
	if im.limiter != nil {
		if err := im.limiter.Acquire(ctx); err != nil {
			return ImportReport{}, err
		}
		defer im.limiter.Release()
	}

	if opts.Origin == "" {
		opts.Origin = OriginDirectory
	}

	report := ImportReport{RunID: uuid.New(), DryRun: opts.DryRun}
	started := im.clock.Now()
	logger := logging.WithFields(ctx, "import_run", report.RunID.String(), "origin", opts.Origin)
	logger.Info("import started", "dry_run", opts.DryRun)

	if !opts.DryRun {
		if err := im.store.EnsureSchema(ctx); err != nil {
			return report, &ImportFailedError{Err: fmt.Errorf("create schema: %w", err)}
		}
	}

	defs := Sources()
	if len(defs) == 0 {
		return report, &ImportFailedError{Err: errors.New("no import sources registered")}
	}

	passes := make([]PassResult, 0, len(defs))
	for _, def := range defs {
		pass, err := im.runPass(ctx, def, open, logger)
		if err != nil {
			logger.Warn("import aborted", "source", def.Key, "error", err)
			return report, err
		}
		passes = append(passes, pass)
	}

	for _, pass := range passes {
		switch pass.Source {
		case SourceMembers:
			report.Members = pass
		case SourceInventory:
			report.Inventory = pass
		}
	}

	if opts.DryRun {
		logger.Info("import dry run finished",
			"members", report.Members.Imported,
			"inventory", report.Inventory.Imported,
		)
		return report, nil
	}

	run := ImportRun{
		ID:                report.RunID,
		Origin:            opts.Origin,
		StartedAt:         started,
		MembersImported:   report.Members.Imported,
		MembersSkipped:    report.Members.Skipped,
		InventoryImported: report.Inventory.Imported,
		InventorySkipped:  report.Inventory.Skipped,
	}

	err := im.store.WithTx(ctx, func(txCtx context.Context) error {
		for i, def := range defs {
			for _, record := range passes[i].records {
				if err := def.Insert(txCtx, im.store, record); err != nil {
					return fmt.Errorf("insert into %s: %w", def.Key, err)
				}
			}
		}
		run.FinishedAt = im.clock.Now()
		return im.store.RecordImportRun(txCtx, run)
	})
	if err != nil {
		logger.Error("import rolled back", "error", err)
		return report, &ImportFailedError{Err: err}
	}

	logger.Info("import committed",
		"members", run.MembersImported,
		"members_skipped", run.MembersSkipped,
		"inventory", run.InventoryImported,
		"inventory_skipped", run.InventorySkipped,
	)
	return report, nil
}

func (im *Importer) runPass(ctx context.Context, def SourceDefinition, open SourceOpener, logger *slog.Logger) (PassResult, error) {
	rc, err := open(def)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PassResult{}, &SourceNotFoundError{Source: def.FileName}
		}
		return PassResult{}, &ImportFailedError{Err: fmt.Errorf("open %s: %w", def.FileName, err)}
	}
	defer rc.Close()

	pass, err := FoldRows(ctx, def, rc, logger)
	if err != nil {
		return PassResult{}, &ImportFailedError{Err: fmt.Errorf("%s: %w", def.FileName, err)}
	}
	return pass, nil
}

// FoldRows reads one source and folds its rows into records and skipped-row
// diagnostics. Only stream-level failures (unreadable input, malformed CSV,
// cancellation) return an error; row-level failures never do.
func FoldRows(ctx context.Context, def SourceDefinition, r io.Reader, logger *slog.Logger) (PassResult, error) {
	pass := PassResult{Source: def.Key, File: def.FileName}

	counter := WrapForStreaming(r)
	reader := csv.NewReader(counter)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		logger.Warn("import source is empty", "file", def.FileName)
		return pass, nil
	}
	if err != nil {
		return pass, fmt.Errorf("read header: %w", err)
	}

	idx := MakeHeaderIndex(header)
	if missing := MissingColumns(idx, def.FieldSpecs); len(missing) > 0 {
		logger.Warn("import source is missing columns", "file", def.FileName, "columns", missing)
	}

	for {
		if pass.Rows%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return pass, err
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return pass, err
		}
		pass.Rows++

		line, _ := reader.FieldPos(0)
		record, err := def.BuildRecord(row, idx)
		if err != nil {
			pass.Failures = append(pass.Failures, RowFailure{Line: line, Raw: row, Reason: err.Error()})
			logger.Warn("skipping import row",
				"file", def.FileName,
				"line", line,
				"row", row,
				"error", err,
			)
			continue
		}
		pass.records = append(pass.records, record)
	}

	pass.Imported = len(pass.records)
	pass.Skipped = len(pass.Failures)

	logger.Info("import pass parsed",
		"file", def.FileName,
		"rows", pass.Rows,
		"valid", pass.Imported,
		"skipped", pass.Skipped,
		"bytes", counter.BytesRead,
	)
	return pass, nil
}
