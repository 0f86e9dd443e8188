package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage maps a label (such as "database" or "vision_model") to its size on disk.
type DiskUsage map[string]int64

// Total sums every entry.
func (u DiskUsage) Total() int64 {
	var total int64
	for _, n := range u {
		total += n
	}
	return total
}

// MeasureDiskUsage sizes each labelled path. Directories are summed recursively;
// empty and missing paths report 0. The SQLite -wal and -shm side files are added
// to any path that has them.
func MeasureDiskUsage(paths map[string]string) (DiskUsage, error) {
	usage := make(DiskUsage, len(paths))
	for label, p := range paths {
		var total int64
		for _, candidate := range []string{p, p + "-wal", p + "-shm"} {
			if p == "" {
				break
			}
			n, err := pathSize(candidate)
			if err != nil {
				return nil, err
			}
			total += n
		}
		usage[label] = total
	}
	return usage, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
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
	return total, err
}
