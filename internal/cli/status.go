package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/skfed/internal/storage"
)

// StatusConfig is the configuration summary carried in a status report.
type StatusConfig struct {
	StorageDriver   string `json:"storage_driver"`
	CompletionModel string `json:"completion_model"`
	SearchBackend   string `json:"search_backend"`
	DatabasePath    string `json:"database_path,omitempty"`
	BleveIndexPath  string `json:"bleve_index_path,omitempty"`
}

// StatusReport is the shape of GET /api/v1/status.
type StatusReport struct {
	Events           int64              `json:"events"`
	Announcements    int64              `json:"announcements"`
	Registrations    int64              `json:"registrations"`
	KeywordIndexDocs *uint64            `json:"keyword_index_docs,omitempty"`
	DiskUsageBytes   *int64             `json:"disk_usage_bytes,omitempty"`
	DiskUsage        *storage.DiskUsage `json:"disk_usage,omitempty"`
	Config           *StatusConfig      `json:"config,omitempty"`
}

const maxPathWidth = 60

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, s *StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "events:             %d\n", s.Events)
	fmt.Fprintf(w, "announcements:      %d\n", s.Announcements)
	fmt.Fprintf(w, "registrations:      %d   # all statuses\n", s.Registrations)
	if s.KeywordIndexDocs != nil {
		fmt.Fprintf(w, "keyword_index_docs: %d\n", *s.KeywordIndexDocs)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + keyword index on disk\n", *s.DiskUsageBytes)
	}
	if s.Config == nil {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "storage_driver:     %s\n", s.Config.StorageDriver)
	fmt.Fprintf(w, "completion_model:   %s\n", s.Config.CompletionModel)
	fmt.Fprintf(w, "search_backend:     %s\n", s.Config.SearchBackend)
	if s.Config.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", shortenPath(s.Config.DatabasePath))
	}
	if s.Config.BleveIndexPath != "" {
		fmt.Fprintf(w, "bleve_index_path:   %s\n", shortenPath(s.Config.BleveIndexPath))
	}
	return nil
}

// shortenPath keeps the tail of long paths, which is the part that differs.
func shortenPath(p string) string {
	runes := []rune(p)
	if len(runes) <= maxPathWidth {
		return p
	}
	return "..." + string(runes[len(runes)-maxPathWidth:])
}
