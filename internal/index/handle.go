package index

import (
	"sync/atomic"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
)

// Handle holds the store currently serving queries. Readers take a snapshot with
// Current; a rebuild or reload replaces it with Swap, so in-flight searches keep
// using the store they started with.
type Handle struct {
	current   atomic.Pointer[Store]
	indexType string
}

// NewHandle returns a handle with no store attached.
func NewHandle(indexType string) *Handle {
	return &Handle{indexType: indexType}
}

// Current returns the attached store, or nil.
func (h *Handle) Current() *Store {
	return h.current.Load()
}

// Swap attaches s and returns the previous store.
func (h *Handle) Swap(s *Store) *Store {
	return h.current.Swap(s)
}

// Reload loads artifacts fully and only then swaps them in. On error the
// current store is left attached.
func (h *Handle) Reload(a storage.Artifacts, dimension int) (*Store, error) {
	s, err := Load(h.indexType, a, dimension)
	if err != nil {
		return nil, err
	}
	h.Swap(s)
	return s, nil
}

// Close detaches the current store.
func (h *Handle) Close() {
	h.current.Store(nil)
}

// Health reports the state of the attached store.
func (h *Handle) Health() models.Health {
	s := h.Current()
	if s == nil {
		return models.Health{}
	}
	return models.Health{
		Loaded:     true,
		Entries:    s.Len(),
		Dimensions: s.Dimensions(),
		BuildID:    s.manifest.BuildID.String(),
	}
}
