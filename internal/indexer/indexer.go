// Package indexer keeps the keyword index in step with the store and imports workbooks.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/skfed/internal/importer"
	"github.com/hyperjump/skfed/internal/keyword"
	"github.com/hyperjump/skfed/internal/storage"
	"go.uber.org/zap"
)

// defaultBatchSize is how many rows are read from the store per page during Sync.
const defaultBatchSize = 500

// Indexer imports spreadsheets into storage and mirrors storage into the keyword index.
type Indexer struct {
	storage      storage.Storage
	keywordIndex keyword.Index
	importer     *importer.Importer
	batchSize    int
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (sync progress, files imported).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithBatchSize sets the page size used when reading the store during Sync.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer. keywordIndex may be nil, in which case Sync is a no-op
// and imports only write to the store.
func NewIndexer(store storage.Storage, keywordIndex keyword.Index, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:      store,
		keywordIndex: keywordIndex,
		batchSize:    defaultBatchSize,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.importer = importer.New(store, importer.WithLogger(idx.logger))
	return idx
}

// SyncStats reports what Sync did.
type SyncStats struct {
	Events        int `json:"events"`
	Announcements int `json:"announcements"`
	Removed       int `json:"removed"`
}

// Sync indexes every event and announcement in the store and removes index entries
// whose records no longer exist.
func (idx *Indexer) Sync(ctx context.Context) (*SyncStats, error) {
	stats := &SyncStats{}
	if idx.keywordIndex == nil {
		return stats, nil
	}

	liveEvents := make(map[string]struct{})
	for offset := 0; ; offset += idx.batchSize {
		events, err := idx.storage.ListEvents(ctx, offset, idx.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		if err := idx.keywordIndex.IndexBatch(ctx, events, nil); err != nil {
			return nil, fmt.Errorf("failed to index events: %w", err)
		}
		for _, ev := range events {
			liveEvents[ev.ID] = struct{}{}
		}
		stats.Events += len(events)
		if len(events) < idx.batchSize {
			break
		}
	}

	liveAnnouncements := make(map[string]struct{})
	for offset := 0; ; offset += idx.batchSize {
		anns, err := idx.storage.ListAnnouncements(ctx, offset, idx.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list announcements: %w", err)
		}
		if err := idx.keywordIndex.IndexBatch(ctx, nil, anns); err != nil {
			return nil, fmt.Errorf("failed to index announcements: %w", err)
		}
		for _, a := range anns {
			liveAnnouncements[a.ID] = struct{}{}
		}
		stats.Announcements += len(anns)
		if len(anns) < idx.batchSize {
			break
		}
	}

	for kind, live := range map[string]map[string]struct{}{
		keyword.KindEvent:        liveEvents,
		keyword.KindAnnouncement: liveAnnouncements,
	} {
		n, err := idx.removeStale(ctx, kind, live)
		if err != nil {
			return nil, err
		}
		stats.Removed += n
	}

	idx.logger.Debug("indexer sync complete",
		zap.Int("events", stats.Events),
		zap.Int("announcements", stats.Announcements),
		zap.Int("removed", stats.Removed),
	)
	return stats, nil
}

func (idx *Indexer) removeStale(ctx context.Context, kind string, live map[string]struct{}) (int, error) {
	ids, err := idx.keywordIndex.IDs(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed %s ids: %w", kind, err)
	}
	removed := 0
	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		if err := idx.keywordIndex.Delete(ctx, kind, id); err != nil {
			return removed, fmt.Errorf("failed to delete %s %s from keyword index: %w", kind, id, err)
		}
		removed++
	}
	return removed, nil
}

// ImportFile imports the workbook at path and re-syncs the keyword index. If allowedExts
// is non-empty, the file's extension must be in the list (case-insensitive).
func (idx *Indexer) ImportFile(ctx context.Context, path string, allowedExts []string) (*importer.Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	idx.logger.Debug("indexer importing file", zap.String("path", absPath))
	res, err := idx.importer.ImportFile(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if _, err := idx.Sync(ctx); err != nil {
		return res, fmt.Errorf("imported but keyword sync failed: %w", err)
	}
	return res, nil
}

// ImportDirectory walks dir recursively and imports each regular file whose extension
// is in allowedExts, then syncs the keyword index once. Returns the number of files
// imported and the first error encountered, if any.
func (idx *Indexer) ImportDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !importer.Supported(path) || (len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts)) {
			return nil
		}
		// Office lock files (~$book.xlsx) are not workbooks.
		if strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, importErr := idx.importer.ImportFile(ctx, path); importErr != nil {
			return importErr
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if _, err := idx.Sync(ctx); err != nil {
		return n, err
	}
	return n, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
