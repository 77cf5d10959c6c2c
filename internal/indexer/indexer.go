package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/index"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/pkg/utils"
)

const (
	defaultConcurrency = 4
	defaultBatchSize   = 100
)

// Indexer builds a complete index from a corpus of notes. Every build starts
// from scratch; there is no incremental update.
type Indexer struct {
	embedder    embedding.Embedder
	extractor   *extract.Extractor
	chunker     *Chunker
	indexType   string
	concurrency int
	batchSize   int
	logger      *zap.Logger // optional; when set, logs per-file events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress and per-file failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithConcurrency bounds how many documents are embedded at once.
func WithConcurrency(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.concurrency = n
		}
	}
}

// WithBatchSize sets how many chunks go into one embedding call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithIndexType selects the vector index implementation (see vector.New).
func WithIndexType(t string) IndexerOption {
	return func(idx *Indexer) { idx.indexType = t }
}

// NewIndexer creates an indexer. extractor decides which files under the corpus
// root are notes.
func NewIndexer(embedder embedding.Embedder, extractor *extract.Extractor, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:    embedder,
		extractor:   extractor,
		chunker:     chunker,
		concurrency: defaultConcurrency,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Extensions returns the file extensions the indexer reads.
func (idx *Indexer) Extensions() []string {
	return idx.extractor.Extensions()
}

// FileError records a document that could not be indexed.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Report summarizes one build.
type Report struct {
	Files    int           `json:"files"`
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Failed   []FileError   `json:"failed,omitempty"`
	Chunks   int           `json:"chunks"`
	Dropped  int           `json:"dropped_chunks,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AllFailed reports whether there were documents and none of them could be indexed.
func (r *Report) AllFailed() bool {
	return len(r.Failed) > 0 && r.Indexed == 0
}

// Discover walks root and returns the note files it would index, in lexical
// order. Hidden directories are skipped.
func (idx *Indexer) Discover(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRoot)
	}
	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.extractor.Accepts(path) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// BuildCorpus indexes every note under root. Files that cannot be read or
// embedded are logged and listed in the report; they do not stop the build.
// Configuration errors and cancellation do.
func (idx *Indexer) BuildCorpus(ctx context.Context, root string) (*index.Store, *Report, error) {
	start := time.Now()
	paths, err := idx.Discover(root)
	if err != nil {
		return nil, nil, err
	}
	absRoot, _ := filepath.Abs(root)
	if idx.logger != nil {
		idx.logger.Info("indexer discovered notes", zap.String("root", absRoot), zap.Int("files", len(paths)))
	}

	docs := make([]func() (models.Document, error), len(paths))
	for i, p := range paths {
		docs[i] = func() (models.Document, error) {
			return idx.load(absRoot, p)
		}
	}
	store, report, err := idx.build(ctx, docs)
	if report != nil {
		report.Duration = time.Since(start)
	}
	return store, report, err
}

// BuildDocuments indexes documents that are already in memory.
func (idx *Indexer) BuildDocuments(ctx context.Context, documents []models.Document) (*index.Store, *Report, error) {
	start := time.Now()
	docs := make([]func() (models.Document, error), len(documents))
	for i, d := range documents {
		docs[i] = func() (models.Document, error) { return d, nil }
	}
	store, report, err := idx.build(ctx, docs)
	if report != nil {
		report.Duration = time.Since(start)
	}
	return store, report, err
}

type docResult struct {
	id      string
	entries []models.IndexEntry
	dropped int
	skipped bool
	err     error
}

func (idx *Indexer) build(ctx context.Context, docs []func() (models.Document, error)) (*index.Store, *Report, error) {
	// One slot per document keeps ordinals in walk order regardless of which
	// goroutine finishes first.
	slots := make([]docResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)
	for i, load := range docs {
		g.Go(func() error {
			doc, err := load()
			if err != nil {
				slots[i] = docResult{id: doc.ID, err: err}
				return nil
			}
			slots[i] = idx.processDocument(gctx, doc)
			if err := slots[i].err; err != nil && isFatal(err) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report := &Report{Files: len(docs)}
	var entries []models.IndexEntry
	for _, r := range slots {
		switch {
		case r.err != nil:
			report.Failed = append(report.Failed, FileError{Path: r.id, Err: r.err})
			if idx.logger != nil {
				idx.logger.Warn("indexer failed to index note", zap.String("path", r.id), zap.Error(r.err))
			}
		case r.skipped:
			report.Skipped++
		default:
			report.Indexed++
			entries = append(entries, r.entries...)
		}
		report.Dropped += r.dropped
	}
	report.Chunks = len(entries)

	// A provider without a configured dimension reports it after the first batch.
	dim := idx.embedder.Dimensions()
	if dim <= 0 && len(entries) > 0 {
		dim = len(entries[0].Embedding)
	}
	if dim <= 0 {
		return nil, report, apperr.Configf("embedding dimension is unknown: set embedding.dimensions or index at least one note")
	}

	manifest := storage.NewManifest(dim, idx.chunker.Size(), idx.chunker.Overlap())
	store, err := index.Build(idx.indexType, entries, manifest)
	if err != nil {
		return nil, report, err
	}
	if idx.logger != nil {
		idx.logger.Info("indexer build complete",
			zap.Int("files", report.Files),
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", len(report.Failed)),
			zap.Int("chunks", report.Chunks))
	}
	return store, report, nil
}

func (idx *Indexer) load(root, path string) (models.Document, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	doc := models.Document{ID: filepath.ToSlash(rel), Path: path}
	text, err := idx.extractor.Extract(path)
	if err != nil {
		return doc, fmt.Errorf("extract content: %w", err)
	}
	if extract.IsBinary(path) {
		text = Preprocess(text)
	}
	doc.Content = text
	return doc, nil
}

func (idx *Indexer) processDocument(ctx context.Context, doc models.Document) docResult {
	res := docResult{id: doc.ID}
	if strings.TrimSpace(doc.Content) == "" {
		res.skipped = true
		if idx.logger != nil {
			idx.logger.Debug("indexer skipping empty note", zap.String("path", doc.ID))
		}
		return res
	}
	chunks := idx.chunker.Collect(doc.ID, doc.Content)
	entries := make([]models.IndexEntry, 0, len(chunks))
	for start := 0; start < len(chunks); start += idx.batchSize {
		batch := chunks[start:min(start+idx.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			res.err = fmt.Errorf("generate embeddings: %w", err)
			return res
		}
		if len(embeddings) != len(batch) {
			res.err = fmt.Errorf("generate embeddings: got %d vectors for %d chunks", len(embeddings), len(batch))
			return res
		}
		for i, emb := range embeddings {
			if utils.L2Norm(emb) == 0 {
				res.dropped++
				if idx.logger != nil {
					idx.logger.Warn("indexer dropping chunk with zero embedding",
						zap.String("path", doc.ID), zap.Int("chunk_index", batch[i].ChunkIndex))
				}
				continue
			}
			entries = append(entries, models.IndexEntry{Embedding: emb, Chunk: batch[i]})
		}
	}
	if res.dropped > 0 {
		// Ordinals and totals describe the chunks that are actually stored.
		for i := range entries {
			entries[i].Chunk.ChunkIndex = i
			entries[i].Chunk.TotalChunks = len(entries)
		}
	}
	res.entries = entries
	if idx.logger != nil {
		idx.logger.Debug("indexer note embedded", zap.String("path", doc.ID), zap.Int("chunks", len(entries)))
	}
	return res
}

func isFatal(err error) bool {
	return errors.Is(err, apperr.ErrConfiguration) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
