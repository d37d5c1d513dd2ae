package storage

import (
	"os"
	"path/filepath"
)

// FileUsage is the on-disk footprint of one catalog input.
type FileUsage struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Exists bool   `json:"exists"`
}

// DiskUsage returns the size of each path and their total. A path may be a file or a
// directory (recursively summed). Missing paths are reported with Exists false; empty
// paths are skipped.
func DiskUsage(paths ...string) ([]FileUsage, int64, error) {
	var total int64
	out := make([]FileUsage, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				out = append(out, FileUsage{Path: p})
				continue
			}
			return nil, 0, err
		}
		size := info.Size()
		if info.IsDir() {
			if size, err = dirSize(p); err != nil {
				return nil, 0, err
			}
		}
		out = append(out, FileUsage{Path: p, Bytes: size, Exists: true})
		total += size
	}
	return out, total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
