// Package store is the bleve-backed search engine behind the search
// pipeline: the index mapping, a catalog of named physical indexes, document
// ingestion, the spelling suggester, collection alias resolution and the
// index write lock.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/search"
)

// ErrIndexNotFound is returned when a physical index does not exist.
var ErrIndexNotFound = errors.New("index not found")

// ErrCatalogClosed is returned by every operation after Close.
var ErrCatalogClosed = errors.New("catalog is closed")

var indexNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Catalog holds the named physical indexes. With an empty directory every
// index lives in memory; otherwise each index is a bleve directory under it.
// Catalog implements search.EngineClient.
type Catalog struct {
	mu      sync.RWMutex
	dir     string
	mapping *mapping.IndexMappingImpl
	indexes map[string]bleve.Index
	logger  *slog.Logger
	closed  bool
}

// Ensure Catalog implements search.EngineClient.
var _ search.EngineClient = (*Catalog)(nil)

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogLogger sets the catalog logger.
func WithCatalogLogger(l *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCatalog creates a catalog rooted at dir, or an in-memory one when dir
// is empty.
func NewCatalog(dir string, opts ...CatalogOption) (*Catalog, error) {
	im, err := BuildMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	c := &Catalog{
		dir:     dir,
		mapping: im,
		indexes: make(map[string]bleve.Index),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, amerrors.IOError(fmt.Sprintf("failed to create data directory %s", dir), err)
		}
	}
	return c, nil
}

// Mapping returns the index mapping shared by every index.
func (c *Catalog) Mapping() *mapping.IndexMappingImpl {
	return c.mapping
}

// Create opens the named index, creating it when it does not exist yet.
func (c *Catalog) Create(name string) error {
	_, err := c.open(name, true)
	return err
}

// Names lists the indexes known to the catalog: open ones plus, for a
// disk-backed catalog, every index directory.
func (c *Catalog) Names() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrCatalogClosed
	}

	seen := make(map[string]struct{}, len(c.indexes))
	for name := range c.indexes {
		seen[name] = struct{}{}
	}
	if c.dir != "" {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return nil, fmt.Errorf("read data directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() && indexNamePattern.MatchString(e.Name()) {
				seen[e.Name()] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether the named index is open or present on disk.
func (c *Catalog) Exists(name string) bool {
	if !indexNamePattern.MatchString(name) {
		return false
	}

	c.mu.RLock()
	_, ok := c.indexes[name]
	c.mu.RUnlock()
	if ok || c.dir == "" {
		return ok
	}

	info, err := os.Stat(filepath.Join(c.dir, name))
	return err == nil && info.IsDir()
}

// Index adds or replaces docs in the named index, creating it if needed.
// It returns the number of documents written.
func (c *Catalog) Index(ctx context.Context, name string, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	idx, err := c.open(name, true)
	if err != nil {
		return 0, err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := doc.Validate(); err != nil {
			return 0, amerrors.ValidationError(err.Error(), nil)
		}
		if err := batch.Index(doc.DocID(), doc.Fields()); err != nil {
			return 0, fmt.Errorf("failed to index document %s: %w", doc.DocID(), err)
		}
	}

	if err := idx.Batch(batch); err != nil {
		return 0, batchError(name, "failed to execute batch", err)
	}
	return len(docs), nil
}

// Delete removes documents from the named index.
func (c *Catalog) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	idx, err := c.open(name, false)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return batchError(name, "failed to delete documents", err)
	}
	return nil
}

// batchError classifies a failed index write. A full disk is fatal for the
// index and reported as such.
func batchError(name, msg string, err error) *amerrors.AmanError {
	if errors.Is(err, syscall.ENOSPC) {
		return amerrors.New(amerrors.ErrCodeDiskFull, "no space left on device writing index "+name, err).
			WithDetail("index", name)
	}
	return amerrors.New(amerrors.ErrCodeIndexFailed, msg, err).WithDetail("index", name)
}

// DocCount returns the number of documents in the named index.
func (c *Catalog) DocCount(name string) (uint64, error) {
	idx, err := c.open(name, false)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Search runs req against one physical index.
func (c *Catalog) Search(ctx context.Context, name string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	idx, err := c.open(name, false)
	if err != nil {
		return nil, err
	}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}
	return res, nil
}

// Close closes every open index. It is idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for name, idx := range c.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.indexes = nil
	return errors.Join(errs...)
}

// open returns the named index, opening it from disk on first use. create
// allows a missing index to be created.
func (c *Catalog) open(name string, create bool) (bleve.Index, error) {
	if !indexNamePattern.MatchString(name) {
		return nil, amerrors.New(amerrors.ErrCodeInvalidPath,
			fmt.Sprintf("invalid index name %q", name), nil).
			WithSuggestion("Index names use lower-case letters, digits, '.', '_' and '-'")
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrCatalogClosed
	}
	idx, ok := c.indexes[name]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCatalogClosed
	}
	if idx, ok := c.indexes[name]; ok {
		return idx, nil
	}

	var err error
	if c.dir == "" {
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
		}
		idx, err = bleve.NewMemOnly(c.mapping)
	} else {
		idx, err = c.openDisk(filepath.Join(c.dir, name), create)
	}
	if err != nil {
		return nil, err
	}

	c.indexes[name] = idx
	return idx, nil
}

// openDisk opens an on-disk index, clearing and recreating it when its
// metadata is corrupt.
func (c *Catalog) openDisk(path string, create bool) (bleve.Index, error) {
	if validErr := validateIndexIntegrity(path); validErr != nil {
		c.logger.Warn("index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))

		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
		}
		c.logger.Info("index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, please reindex"))
	}

	idx, err := bleve.Open(path)
	switch {
	case err == nil:
		return idx, nil
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, filepath.Base(path))
		}
		idx, err = bleve.New(path, c.mapping)
	case isCorruptionError(err):
		c.logger.Warn("index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("index corrupted at %s and cannot be cleared", path), removeErr)
		}
		if !create {
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("index at %s was corrupt and has been cleared", path), err).
				WithSuggestion("Reindex the collection with 'amansearch index'")
		}
		idx, err = bleve.New(path, c.mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index %s: %w", path, err)
	}
	return idx, nil
}

// validateIndexIntegrity checks an existing index directory before opening
// it. A missing directory is fine; a missing or unparseable index_meta.json
// is corruption.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError reports whether err from bleve.Open indicates a damaged
// index rather than, say, a permission problem.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}
