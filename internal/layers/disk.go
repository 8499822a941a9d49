package layers

import (
	"io/fs"
	"os"
	"path/filepath"
)

// StorageBytes returns the on-disk size of the registry database (with its WAL and
// shared-memory files) plus any extra paths such as the full-text index directory.
// Missing paths count as zero.
func StorageBytes(dbPath string, extra ...string) (int64, error) {
	paths := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	if dbPath == "" {
		paths = nil
	}
	var total int64
	for _, p := range append(paths, extra...) {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
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
