// Package storage persists a built index as a pair of artifacts: a binary vector
// file and a SQLite metadata database. Both carry the same build id so that a
// vector file from one build can never be paired with metadata from another.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// ErrNotFound is returned by Load when neither artifact exists.
var ErrNotFound = fmt.Errorf("%w: no index artifacts on disk", apperr.ErrIndexNotLoaded)

// normTolerance bounds how far a stored vector's norm may drift from 1.
const normTolerance = 1e-3

// Artifacts names the two files that make up a persisted index.
type Artifacts struct {
	VectorPath   string
	MetadataPath string
}

// Manifest describes one index build.
type Manifest struct {
	BuildID      uuid.UUID
	Count        int
	Dimension    int
	CreatedAt    time.Time
	ChunkSize    int
	ChunkOverlap int
}

// NewManifest returns a manifest with a fresh build id.
func NewManifest(dimension, chunkSize, chunkOverlap int) Manifest {
	return Manifest{
		BuildID:      uuid.New(),
		Dimension:    dimension,
		CreatedAt:    time.Now().UTC(),
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

// Exists reports whether at least one of the artifacts is present.
func (a Artifacts) Exists() bool {
	return fileExists(a.VectorPath) || fileExists(a.MetadataPath)
}

// Save writes vectors and chunks. Entry i of vectors belongs to chunk i. Each
// file is written to a temporary sibling and renamed into place.
func Save(a Artifacts, m Manifest, vectors [][]float32, chunks []models.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("save index: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if a.VectorPath == "" || a.MetadataPath == "" || a.VectorPath == a.MetadataPath {
		return apperr.Configf("index and metadata paths must be set and distinct")
	}
	m.Count = len(vectors)
	for i, v := range vectors {
		if len(v) != m.Dimension {
			return fmt.Errorf("save index: vector %d has dimension %d, expected %d", i, len(v), m.Dimension)
		}
	}

	vecTmp, err := writeTemp(a.VectorPath, func(path string) error {
		return writeVectorFile(path, m, vectors)
	})
	if err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}
	metaTmp, err := writeTemp(a.MetadataPath, func(path string) error {
		return writeMetadata(path, m, chunks)
	})
	if err != nil {
		_ = os.Remove(vecTmp)
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := os.Rename(vecTmp, a.VectorPath); err != nil {
		_ = os.Remove(vecTmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename vector file: %w", err)
	}
	if err := os.Rename(metaTmp, a.MetadataPath); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// Load reads both artifacts and verifies they describe the same build. dimension
// is the expected vector dimension; pass 0 to accept whatever the file declares.
// Any disagreement is reported as *apperr.CorruptionError.
func Load(a Artifacts, dimension int) (Manifest, [][]float32, []models.Chunk, error) {
	vecOK, metaOK := fileExists(a.VectorPath), fileExists(a.MetadataPath)
	switch {
	case !vecOK && !metaOK:
		return Manifest{}, nil, nil, ErrNotFound
	case !vecOK:
		return Manifest{}, nil, nil, apperr.Corruptf(a.VectorPath, "vector file missing but metadata exists")
	case !metaOK:
		return Manifest{}, nil, nil, apperr.Corruptf(a.MetadataPath, "metadata missing but vector file exists")
	}

	header, vectors, err := readVectorFile(a.VectorPath)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	if dimension > 0 && header.Dimension != dimension {
		return Manifest{}, nil, nil, apperr.Corruptf(a.VectorPath,
			"dimension %d does not match configured embedding dimension %d", header.Dimension, dimension)
	}
	for i, v := range vectors {
		if !utils.IsUnit(v, normTolerance) {
			return Manifest{}, nil, nil, apperr.Corruptf(a.VectorPath, "vector %d is not normalized", i)
		}
	}

	m, chunks, err := readMetadata(a.MetadataPath)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	if m.BuildID != header.BuildID {
		return Manifest{}, nil, nil, apperr.Corruptf(a.MetadataPath,
			"build id %s does not match vector file build id %s", m.BuildID, header.BuildID)
	}
	if m.Count != header.Count || len(chunks) != header.Count {
		return Manifest{}, nil, nil, apperr.Corruptf(a.MetadataPath,
			"metadata has %d entries (%d rows), vector file has %d", m.Count, len(chunks), header.Count)
	}
	if m.Dimension != header.Dimension {
		return Manifest{}, nil, nil, apperr.Corruptf(a.MetadataPath,
			"metadata dimension %d does not match vector file dimension %d", m.Dimension, header.Dimension)
	}
	return m, vectors, chunks, nil
}

func writeTemp(target string, write func(path string) error) (string, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(target)+".tmp-"+uuid.NewString())
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes both artifacts. Missing files are not an error.
func Remove(a Artifacts) error {
	var errs []error
	for _, p := range []string{a.VectorPath, a.MetadataPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
