package importer

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/internal/storage"
	"github.com/xuri/excelize/v2"
)

type fakeWriter struct {
	events        map[string]models.Event
	announcements map[string]models.Announcement
	registrations map[string]models.Registration
	failEvent     string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		events:        make(map[string]models.Event),
		announcements: make(map[string]models.Announcement),
		registrations: make(map[string]models.Registration),
	}
}

func (w *fakeWriter) UpsertEvent(ctx context.Context, ev *models.Event) error {
	if ev.Title == w.failEvent {
		return errors.New("constraint failed")
	}
	w.events[ev.ID] = *ev
	return nil
}

func (w *fakeWriter) UpsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	w.announcements[a.ID] = *a
	return nil
}

func (w *fakeWriter) UpsertRegistration(ctx context.Context, r *models.Registration) error {
	w.registrations[r.ID] = *r
	return nil
}

// writeWorkbook saves a workbook with the given sheets (name -> rows, header first).
func writeWorkbook(t *testing.T, sheets map[string][][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			r := row
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				t.Fatal(err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "import.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportFile(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Events": {
			{"ID", "Title", "Description", "Date", "Time", "Location", "Category"},
			{"e1", "Basketball Cup", "Inter-barangay league", "2024-05-10", "2:00 PM", "Covered Court", "sports"},
			{"", "Summer Festival", "Music", "6/20/2024", "", "Plaza", "culture"},
			{"e3", "", "no title", "2024-01-01", "", "", ""},
			{},
		},
		"announcements": {
			{"id", "title", "content", "author", "created_at"},
			{"a1", "Budget hearing", "Open to all", "Chair", "2024-01-02 10:00"},
		},
		"Registrations": {
			{"id", "event_id", "event", "name", "email", "status"},
			{"r1", "e1", "", "Ana", "ana@example.com", ""},
			{"", "", "summer festival", "Ben", "ben@example.com", "Confirmed"},
			{"r3", "", "Unknown Event", "Cai", "", ""},
			{"r4", "", "", "Dan", "", ""},
		},
	})

	w := newFakeWriter()
	res, err := New(w).ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Events != 2 || res.Announcements != 1 || res.Registrations != 2 {
		t.Errorf("counts: %+v", res)
	}
	if len(res.Skipped) != 3 {
		t.Fatalf("skipped: got %+v", res.Skipped)
	}
	if res.Skipped[0].Sheet != SheetEvents || res.Skipped[0].Row != 4 {
		t.Errorf("first skip: %+v", res.Skipped[0])
	}

	ev := w.events["e1"]
	if ev.Date != "2024-05-10" || ev.Time != "2:00 PM" || ev.Category != "sports" {
		t.Errorf("e1: %+v", ev)
	}

	var festival models.Event
	for _, e := range w.events {
		if e.Title == "Summer Festival" {
			festival = e
		}
	}
	if festival.ID == "" || festival.Date != "2024-06-20" {
		t.Fatalf("festival: %+v", festival)
	}
	var ben models.Registration
	for _, r := range w.registrations {
		if r.Name == "Ben" {
			ben = r
		}
	}
	if ben.EventID != festival.ID || ben.Status != "confirmed" {
		t.Errorf("registration by title: %+v", ben)
	}

	a := w.announcements["a1"]
	if !a.CreatedAt.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("announcement created_at: %v", a.CreatedAt)
	}
}

func TestImportFile_StableDerivedIDs(t *testing.T) {
	sheets := map[string][][]interface{}{
		"events": {
			{"title", "date"},
			{"Coastal Cleanup", "2023-11-02"},
		},
	}
	w := newFakeWriter()
	im := New(w)
	for i := 0; i < 2; i++ {
		if _, err := im.ImportFile(context.Background(), writeWorkbook(t, sheets)); err != nil {
			t.Fatal(err)
		}
	}
	if len(w.events) != 1 {
		t.Errorf("re-import should update, not duplicate: %d events", len(w.events))
	}
}

func TestImportFile_DateCell(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"events": {
			{"id", "title", "date"},
			{"e1", "Basketball Cup", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)},
		},
	})
	w := newFakeWriter()
	if _, err := New(w).ImportFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if got := w.events["e1"].Date; got != "2024-05-10" {
		t.Errorf("date cell: got %q", got)
	}
}

func TestImportFile_StoreErrorSkipsRow(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"events": {
			{"id", "title"},
			{"e1", "Broken"},
			{"e2", "Fine"},
		},
	})
	w := newFakeWriter()
	w.failEvent = "Broken"
	res, err := New(w).ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Events != 1 || len(res.Skipped) != 1 || res.Skipped[0].Row != 2 {
		t.Errorf("result: %+v", res)
	}
}

func TestImportFile_Errors(t *testing.T) {
	im := New(newFakeWriter())
	if _, err := im.ImportFile(context.Background(), "data.csv"); err == nil {
		t.Error("expected unsupported extension error")
	}
	path := writeWorkbook(t, map[string][][]interface{}{"Budget": {{"a"}, {"b"}}})
	if _, err := im.ImportFile(context.Background(), path); err == nil {
		t.Error("expected error for workbook without known sheets")
	}
}

func TestImportReader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Announcements"); err != nil {
		t.Fatal(err)
	}
	rows := [][]interface{}{
		{"id", "title", "content", "author"},
		{"a1", "Assembly moved", "Now at the gym", "Secretary"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Announcements", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	w := newFakeWriter()
	res, err := New(w).ImportReader(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ImportReader: %v", err)
	}
	if res.Announcements != 1 || w.announcements["a1"].Content != "Now at the gym" {
		t.Errorf("result %+v, stored %+v", res, w.announcements["a1"])
	}

	if _, err := New(w).ImportReader(context.Background(), bytes.NewReader([]byte("not a workbook"))); err == nil {
		t.Error("expected error for non-xlsx input")
	}
}

func TestImportFile_IntoSQLite(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	path := writeWorkbook(t, map[string][][]interface{}{
		"events": {
			{"id", "title", "date", "category"},
			{"e1", "Basketball Cup", "2024-05-10", "sports"},
		},
		"registrations": {
			{"id", "event_id", "name"},
			{"r1", "e1", "Ana"},
			{"r2", "e1", "Ben"},
		},
	})
	ctx := context.Background()
	if _, err := New(store).ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	popular, err := store.PopularEvents(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(popular) != 1 || popular[0].ParticipantCount != 2 {
		t.Errorf("popular: %+v", popular)
	}
}

func TestNormalizeDateAndTime(t *testing.T) {
	dates := map[string]string{
		"":           "",
		"2024-05-10": "2024-05-10",
		"5/10/2024":  "2024-05-10",
		"45422":      "2024-05-10",
	}
	for in, want := range dates {
		got, err := normalizeDate(in)
		if err != nil || got != want {
			t.Errorf("normalizeDate(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := normalizeDate("someday"); err == nil {
		t.Error("expected error for unparseable date")
	}

	times := map[string]string{
		"0.5":     "12:00 PM",
		"0.59375": "2:15 PM",
		"2:00 PM": "2:00 PM",
		"":        "",
	}
	for in, want := range times {
		if got := normalizeTime(in); got != want {
			t.Errorf("normalizeTime(%q) = %q, want %q", in, got, want)
		}
	}
}
