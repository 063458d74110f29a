package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/search"
)

// AliasFile is the on-disk alias table maintained by the indexing side:
//
//	aliases:
//	  docs: [docs_2026_10]
//	  all: [docs_2026_10, news_2026_09]
type AliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// AliasResolver maps collection handles to physical indexes. Handles come
// from the static configuration and from an optional alias file; the file
// wins when both define a handle. A handle that is neither configured nor
// aliased resolves to itself when allowDirect is set and the catalog has an
// index by that name.
// AliasResolver implements search.IndexResolver.
type AliasResolver struct {
	mu      sync.RWMutex
	static  map[string][]string
	aliases map[string][]string
	path    string
	direct  func(name string) bool
	logger  *slog.Logger
}

// Ensure AliasResolver implements search.IndexResolver.
var _ search.IndexResolver = (*AliasResolver)(nil)

// ResolverOption configures an AliasResolver.
type ResolverOption func(*AliasResolver)

// WithAliasFile loads aliases from path. A missing file is treated as empty.
func WithAliasFile(path string) ResolverOption {
	return func(r *AliasResolver) {
		r.path = path
	}
}

// WithDirectIndexes lets a handle name an index directly when exists
// reports that it does.
func WithDirectIndexes(exists func(name string) bool) ResolverOption {
	return func(r *AliasResolver) {
		r.direct = exists
	}
}

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *AliasResolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewAliasResolver creates a resolver over the configured collections.
func NewAliasResolver(collections map[string][]string, opts ...ResolverOption) (*AliasResolver, error) {
	r := &AliasResolver{
		static:  copyAliases(collections),
		aliases: map[string][]string{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.path != "" {
		if err := r.Reload(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve implements search.IndexResolver.
func (r *AliasResolver) Resolve(_ context.Context, handle string) ([]string, error) {
	r.mu.RLock()
	indexes, ok := r.aliases[handle]
	if !ok {
		indexes, ok = r.static[handle]
	}
	r.mu.RUnlock()

	if ok && len(indexes) > 0 {
		return append([]string(nil), indexes...), nil
	}
	if r.direct != nil && r.direct(handle) {
		return []string{handle}, nil
	}
	return nil, amerrors.UnknownCollectionError(handle)
}

// Handles lists every configured or aliased handle.
func (r *AliasResolver) Handles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.static)+len(r.aliases))
	for h := range r.static {
		seen[h] = struct{}{}
	}
	for h := range r.aliases {
		seen[h] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Reload re-reads the alias file. On a parse error the previous table is
// kept and the error returned.
func (r *AliasResolver) Reload() error {
	if r.path == "" {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.mu.Lock()
		r.aliases = map[string][]string{}
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return amerrors.ConfigError(fmt.Sprintf("failed to read alias file %s", r.path), err)
	}

	var af AliasFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return amerrors.ConfigError(fmt.Sprintf("invalid alias file %s", r.path), err)
	}
	for handle, indexes := range af.Aliases {
		if len(indexes) == 0 {
			return amerrors.ConfigError(fmt.Sprintf("alias %q in %s has no indexes", handle, r.path), nil)
		}
	}

	r.mu.Lock()
	r.aliases = copyAliases(af.Aliases)
	r.mu.Unlock()

	r.logger.Debug("aliases_loaded",
		slog.String("path", r.path),
		slog.Int("count", len(af.Aliases)))
	return nil
}

// Watch reloads the alias file whenever it changes, until ctx is done.
// The parent directory is watched so editors that replace the file are
// picked up.
func (r *AliasResolver) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create alias watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(r.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("alias_reload_failed",
					slog.String("path", r.path),
					slog.String("error", err.Error()))
				continue
			}
			r.logger.Info("aliases_reloaded",
				slog.String("path", r.path),
				slog.String("op", event.Op.String()))
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("alias_watch_error", slog.String("error", err.Error()))
		}
	}
}

func copyAliases(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
