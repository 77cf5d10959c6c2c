package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/index"
	"github.com/hyperjump/shiori/internal/storage"
)

// ErrNothingIndexed means every discovered note failed. Refresh leaves the
// saved artifacts and the serving store untouched in that case.
var ErrNothingIndexed = errors.New("no note could be indexed")

// Refresh rebuilds the corpus under root, persists it to a and attaches it to
// h when h is not nil. The report is returned even when the build fails.
func (idx *Indexer) Refresh(ctx context.Context, root string, a storage.Artifacts, h *index.Handle) (*Report, error) {
	store, report, err := idx.BuildCorpus(ctx, root)
	if err != nil {
		return report, err
	}
	if report.AllFailed() {
		return report, fmt.Errorf("%w: %d of %d files failed", ErrNothingIndexed, len(report.Failed), report.Files)
	}
	if err := store.Save(a); err != nil {
		return report, fmt.Errorf("save index: %w", err)
	}
	if h != nil {
		h.Swap(store)
	}
	if idx.logger != nil {
		idx.logger.Info("index refreshed",
			zap.Int("entries", store.Len()),
			zap.Int("failed", len(report.Failed)),
			zap.Duration("duration", report.Duration))
	}
	return report, nil
}
