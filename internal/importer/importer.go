// Package importer loads events, announcements and registrations from spreadsheets.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/skfed/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet names, matched case-insensitively.
const (
	SheetEvents        = "events"
	SheetAnnouncements = "announcements"
	SheetRegistrations = "registrations"
)

// idNamespace seeds IDs for rows that leave the id column blank, so re-importing
// the same workbook updates rows instead of duplicating them.
var idNamespace = uuid.MustParse("6f1c2a4e-8d2b-4c61-9a55-3f0e7d1b9c20")

// Writer is the subset of storage.Storage the importer needs.
type Writer interface {
	UpsertEvent(ctx context.Context, ev *models.Event) error
	UpsertAnnouncement(ctx context.Context, a *models.Announcement) error
	UpsertRegistration(ctx context.Context, r *models.Registration) error
}

// RowError describes a row that was skipped.
type RowError struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Err   string `json:"error"`
}

func (e RowError) String() string {
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Err)
}

// Result summarizes an import.
type Result struct {
	Events        int        `json:"events"`
	Announcements int        `json:"announcements"`
	Registrations int        `json:"registrations"`
	Skipped       []RowError `json:"skipped,omitempty"`
}

// Importer upserts spreadsheet rows into the store.
type Importer struct {
	store  Writer
	logger *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(im *Importer) {
		if logger != nil {
			im.logger = logger
		}
	}
}

// New creates an Importer writing to store.
func New(store Writer, opts ...Option) *Importer {
	im := &Importer{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Supported reports whether path has an extension the importer reads.
func Supported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// ImportFile imports the workbook at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("unsupported import file %s: only .xlsx is supported", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()
	res, err := im.ImportReader(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	im.logger.Info("Imported workbook",
		zap.String("path", path),
		zap.Int("events", res.Events),
		zap.Int("announcements", res.Announcements),
		zap.Int("registrations", res.Registrations),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// ImportReader imports a workbook from r.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return im.importWorkbook(ctx, f)
}

// importWorkbook processes events first so registrations can reference them by title.
func (im *Importer) importWorkbook(ctx context.Context, f *excelize.File) (*Result, error) {
	sheets := make(map[string]string)
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(strings.TrimSpace(name))] = name
	}
	if sheets[SheetEvents] == "" && sheets[SheetAnnouncements] == "" && sheets[SheetRegistrations] == "" {
		return nil, fmt.Errorf("workbook has none of the sheets %q, %q, %q", SheetEvents, SheetAnnouncements, SheetRegistrations)
	}

	res := &Result{}
	eventIDsByTitle := make(map[string]string)

	if name := sheets[SheetEvents]; name != "" {
		rows, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ev, err := row.event()
			if err == nil {
				err = im.store.UpsertEvent(ctx, ev)
			}
			if err != nil {
				res.skip(SheetEvents, row.num, err)
				continue
			}
			eventIDsByTitle[strings.ToLower(ev.Title)] = ev.ID
			res.Events++
		}
	}

	if name := sheets[SheetAnnouncements]; name != "" {
		rows, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := row.announcement()
			if err == nil {
				err = im.store.UpsertAnnouncement(ctx, a)
			}
			if err != nil {
				res.skip(SheetAnnouncements, row.num, err)
				continue
			}
			res.Announcements++
		}
	}

	if name := sheets[SheetRegistrations]; name != "" {
		rows, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := row.registration(eventIDsByTitle)
			if err == nil {
				err = im.store.UpsertRegistration(ctx, r)
			}
			if err != nil {
				res.skip(SheetRegistrations, row.num, err)
				continue
			}
			res.Registrations++
		}
	}

	for _, s := range res.Skipped {
		im.logger.Warn("Skipped import row", zap.String("sheet", s.Sheet), zap.Int("row", s.Row), zap.String("error", s.Err))
	}
	return res, nil
}

func (r *Result) skip(sheet string, row int, err error) {
	r.Skipped = append(r.Skipped, RowError{Sheet: sheet, Row: row, Err: err.Error()})
}

// derivedID returns a stable ID for a row without one.
func derivedID(kind string, keyParts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(kind+"\x00"+strings.ToLower(strings.Join(keyParts, "\x00")))).String()
}
