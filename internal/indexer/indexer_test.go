package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/skfed/internal/keyword"
	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/internal/storage"
	"github.com/xuri/excelize/v2"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".xlsx", []string{".xlsx"}, true},
		{".XLSX", []string{".xlsx"}, true},
		{".xlsx", []string{"xlsx"}, true},
		{".csv", []string{".xlsx"}, false},
		{"", []string{".xlsx"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func testIndexer(t *testing.T, dir string) (*Indexer, storage.Storage, *keyword.BleveIndex) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })
	return NewIndexer(store, kwIndex, WithBatchSize(2)), store, kwIndex
}

func writeEventsWorkbook(t *testing.T, path string, titles ...string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "events"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("events", "A1", &[]interface{}{"id", "title", "date"}); err != nil {
		t.Fatal(err)
	}
	for i, title := range titles {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{title + "-id", title, "2024-05-10"}
		if err := f.SetSheetRow("events", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestSync_IndexesAllPagesAndRemovesStale(t *testing.T) {
	idx, store, kw := testIndexer(t, t.TempDir())
	ctx := context.Background()

	for _, ev := range []*models.Event{
		{ID: "e1", Title: "Basketball Cup", Date: "2024-05-10"},
		{ID: "e2", Title: "Summer Festival", Date: "2024-06-20"},
		{ID: "e3", Title: "Coastal Cleanup", Date: "2023-11-02"},
	} {
		if err := store.UpsertEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.UpsertAnnouncement(ctx, &models.Announcement{ID: "a1", Title: "Budget hearing"}); err != nil {
		t.Fatal(err)
	}
	if err := kw.IndexEvent(ctx, &models.Event{ID: "orphan", Title: "Deleted event"}); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Events != 3 || stats.Announcements != 1 || stats.Removed != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if n, _ := kw.DocCount(); n != 4 {
		t.Errorf("DocCount: got %d, want 4", n)
	}
	hits, err := kw.Search(ctx, keyword.KindEvent, "cleanup", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "e3" {
		t.Errorf("hits: %+v", hits)
	}
}

func TestSync_NilKeywordIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	stats, err := NewIndexer(store, nil).Sync(context.Background())
	if err != nil || stats.Events != 0 {
		t.Errorf("got %+v, %v", stats, err)
	}
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	idx, store, kw := testIndexer(t, dir)
	ctx := context.Background()

	path := filepath.Join(dir, "events.xlsx")
	writeEventsWorkbook(t, path, "Basketball Cup", "Summer Festival")

	res, err := idx.ImportFile(ctx, path, []string{".xlsx"})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Events != 2 {
		t.Errorf("imported events: %d", res.Events)
	}
	if n, _ := store.CountEvents(ctx); n != 2 {
		t.Errorf("stored events: %d", n)
	}
	if n, _ := kw.DocCount(); n != 2 {
		t.Errorf("indexed docs: %d", n)
	}

	if _, err := idx.ImportFile(ctx, path, []string{".csv"}); err == nil {
		t.Error("expected error for disallowed extension")
	}
	if _, err := idx.ImportFile(ctx, dir, nil); err == nil {
		t.Error("expected error for directory path")
	}
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	idx, store, kw := testIndexer(t, dir)
	ctx := context.Background()

	imports := filepath.Join(dir, "imports")
	if err := os.MkdirAll(filepath.Join(imports, "2024"), 0755); err != nil {
		t.Fatal(err)
	}
	writeEventsWorkbook(t, filepath.Join(imports, "a.xlsx"), "Basketball Cup")
	writeEventsWorkbook(t, filepath.Join(imports, "2024", "b.xlsx"), "Summer Festival", "Coastal Cleanup")
	if err := os.WriteFile(filepath.Join(imports, "notes.txt"), []byte("ignore me"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imports, "~$a.xlsx"), []byte("lock"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := idx.ImportDirectory(ctx, imports, []string{".xlsx"})
	if err != nil {
		t.Fatalf("ImportDirectory: %v", err)
	}
	if n != 2 {
		t.Errorf("files imported: %d", n)
	}
	if c, _ := store.CountEvents(ctx); c != 3 {
		t.Errorf("stored events: %d", c)
	}
	if c, _ := kw.DocCount(); c != 3 {
		t.Errorf("indexed docs: %d", c)
	}

	if _, err := idx.ImportDirectory(ctx, filepath.Join(imports, "a.xlsx"), nil); err == nil {
		t.Error("expected error for non-directory")
	}
}
