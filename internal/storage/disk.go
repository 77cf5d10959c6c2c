package storage

import (
	"os"
	"path/filepath"
)

// DiskUsage returns the bytes used by both artifacts, including temporary
// siblings left behind by an interrupted Save. Missing files count as zero.
func (a Artifacts) DiskUsage() (int64, error) {
	var total int64
	for _, p := range []string{a.VectorPath, a.MetadataPath} {
		if p == "" {
			continue
		}
		n, err := fileSize(p)
		if err != nil {
			return 0, err
		}
		total += n
		temps, err := filepath.Glob(filepath.Join(filepath.Dir(p), "."+filepath.Base(p)+".tmp-*"))
		if err != nil {
			return 0, err
		}
		for _, tmp := range temps {
			n, err := fileSize(tmp)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, nil
	}
	return info.Size(), nil
}
