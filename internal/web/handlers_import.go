package web

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/JonMunkholm/bookings/internal/logging"
)

// multipartOverhead allows for part headers and boundaries on top of the
// per-file limit.
const multipartOverhead = 1 << 20

// importResponse is returned by POST /import.
type importResponse struct {
	Message string `json:"message"`
	core.ImportReport
}

// handleImport runs a full import. A multipart body supplies the sources
// as form files named after each source's FormField; otherwise they are
// read from the configured import directory.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	dryRun := parseBoolParam(r, "dry_run")

	var (
		report core.ImportReport
		err    error
	)
	if isMultipart(r) {
		report, err = s.importUpload(w, r, dryRun)
	} else {
		report, err = s.service.ImportFromDir(r.Context(), dryRun)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import finished",
		"run_id", report.RunID,
		"dry_run", report.DryRun,
		"members", report.Members.Imported,
		"inventory", report.Inventory.Imported,
	)

	writeJSON(w, importResponse{
		Message:      "Data imported successfully",
		ImportReport: report,
	})
}

// importUpload streams the uploaded parts into the importer. A part that
// is absent surfaces as the usual "<file> not found" error.
func (s *Server) importUpload(w http.ResponseWriter, r *http.Request, dryRun bool) (core.ImportReport, error) {
	defs := core.Sources()
	maxFile := s.cfg.Import.MaxFileSize
	maxSize := maxFile*int64(len(defs)) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.ImportReport{}, core.InvalidRequest("upload exceeds %d bytes", maxSize)
		}
		return core.ImportReport{}, core.InvalidRequest("invalid multipart form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	readers := make(map[string]io.Reader, len(defs))
	for _, def := range defs {
		file, header, err := r.FormFile(def.FormField)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return core.ImportReport{}, core.InvalidRequest("read %s: %v", def.FormField, err)
		}
		defer file.Close()
		if header.Size > maxFile {
			return core.ImportReport{}, core.InvalidRequest("%s exceeds %d bytes", def.FileName, maxFile)
		}
		readers[def.Key] = file
	}

	return s.service.ImportFromReaders(r.Context(), readers, dryRun)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
