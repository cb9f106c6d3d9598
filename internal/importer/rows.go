package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/skfed/internal/models"
	"github.com/xuri/excelize/v2"
)

// sheetRow is one data row keyed by lower-cased header name.
type sheetRow struct {
	num    int
	values map[string]string
}

func (r sheetRow) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.values[k]); v != "" {
			return v
		}
	}
	return ""
}

// readSheet returns the data rows of sheet. The first row is the header; blank rows are dropped.
// Cells are read raw so date cells arrive as serial numbers rather than display text.
func readSheet(f *excelize.File, sheet string) ([]sheetRow, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}
	out := make([]sheetRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		values := make(map[string]string, len(header))
		blank := true
		for j, cell := range cells {
			if j >= len(header) || header[j] == "" {
				continue
			}
			values[header[j]] = cell
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		// Spreadsheet row numbers are 1-based and the header is row 1.
		out = append(out, sheetRow{num: i + 2, values: values})
	}
	return out, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func (r sheetRow) event() (*models.Event, error) {
	ev := &models.Event{
		ID:          r.get("id"),
		Title:       r.get("title", "name"),
		Description: r.get("description"),
		Time:        normalizeTime(r.get("time")),
		Location:    r.get("location", "venue"),
		Category:    r.get("category"),
	}
	if ev.Title == "" {
		return nil, errors.New("missing title")
	}
	date, err := normalizeDate(r.get("date"))
	if err != nil {
		return nil, err
	}
	ev.Date = date
	if ev.ID == "" {
		ev.ID = derivedID(SheetEvents, ev.Title, ev.Date)
	}
	return ev, nil
}

func (r sheetRow) announcement() (*models.Announcement, error) {
	a := &models.Announcement{
		ID:      r.get("id"),
		Title:   r.get("title"),
		Content: r.get("content", "body"),
		Author:  r.get("author"),
	}
	if a.Title == "" {
		return nil, errors.New("missing title")
	}
	if raw := r.get("created_at", "date", "posted"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		a.CreatedAt = t
	}
	if a.ID == "" {
		a.ID = derivedID(SheetAnnouncements, a.Title, a.Author)
	}
	return a, nil
}

func (r sheetRow) registration(eventIDsByTitle map[string]string) (*models.Registration, error) {
	reg := &models.Registration{
		ID:      r.get("id"),
		EventID: r.get("event_id"),
		Name:    r.get("name", "participant"),
		Email:   r.get("email"),
		Status:  strings.ToLower(r.get("status")),
	}
	if reg.EventID == "" {
		if title := r.get("event", "event_title"); title != "" {
			reg.EventID = eventIDsByTitle[strings.ToLower(title)]
			if reg.EventID == "" {
				return nil, fmt.Errorf("unknown event %q", title)
			}
		}
	}
	if reg.EventID == "" {
		return nil, errors.New("missing event_id")
	}
	if reg.ID == "" {
		reg.ID = derivedID(SheetRegistrations, reg.EventID, reg.Email, reg.Name)
	}
	return reg, nil
}

var dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006", "1/2/06", "01-02-06", "2006/01/02", "Jan 2, 2006", "January 2, 2006"}

// normalizeDate converts an Excel serial or a common date string to YYYY-MM-DD.
func normalizeDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", raw, err)
		}
		return t.Format("2006-01-02"), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("invalid date %q", raw)
}

// normalizeTime renders an Excel time fraction as "3:04 PM"; text is kept as typed.
func normalizeTime(raw string) string {
	frac, err := strconv.ParseFloat(raw, 64)
	if err != nil || frac < 0 || frac >= 1 {
		return raw
	}
	minutes := int(frac*24*60 + 0.5)
	return time.Date(2000, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format("3:04 PM")
}

func parseTimestamp(raw string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	for _, layout := range append([]string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"}, dateLayouts...) {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
