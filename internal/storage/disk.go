package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage is the on-disk footprint of the local store and keyword index.
type DiskUsage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total returns the combined size.
func (d DiskUsage) Total() int64 { return d.DatabaseBytes + d.IndexBytes }

// MeasureDiskUsage sizes the SQLite database (including its -wal/-shm companions)
// and the keyword index directory. Empty paths contribute 0, as for a Postgres store.
func MeasureDiskUsage(databasePath, indexPath string) (DiskUsage, error) {
	var usage DiskUsage
	if databasePath != "" {
		n, err := DiskUsageBytes(databasePath, databasePath+"-wal", databasePath+"-shm")
		if err != nil {
			return usage, err
		}
		usage.DatabaseBytes = n
	}
	n, err := DiskUsageBytes(indexPath)
	if err != nil {
		return usage, err
	}
	usage.IndexBytes = n
	return usage, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; other errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
