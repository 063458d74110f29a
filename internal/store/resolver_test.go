package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
)

func writeAliases(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAliasResolver_Static(t *testing.T) {
	r, err := NewAliasResolver(map[string][]string{
		"docs": {"docs_v1", "docs_v2"},
	})
	require.NoError(t, err)

	indexes, err := r.Resolve(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs_v1", "docs_v2"}, indexes)

	// And: callers cannot mutate the table
	indexes[0] = "mutated"
	again, err := r.Resolve(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs_v1", again[0])
}

func TestAliasResolver_Unknown(t *testing.T) {
	r, err := NewAliasResolver(nil)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeUnknownCollection, amerrors.GetCode(err))
}

func TestAliasResolver_DirectIndexes(t *testing.T) {
	r, err := NewAliasResolver(nil, WithDirectIndexes(func(name string) bool {
		return name == "raw_index"
	}))
	require.NoError(t, err)

	indexes, err := r.Resolve(context.Background(), "raw_index")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw_index"}, indexes)

	_, err = r.Resolve(context.Background(), "other")
	assert.Error(t, err)
}

func TestAliasResolver_FileOverridesStatic(t *testing.T) {
	// Given: a static handle and an alias file redefining it
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	writeAliases(t, path, "aliases:\n  docs: [docs_2026_10]\n  news: [news_a, news_b]\n")

	r, err := NewAliasResolver(map[string][]string{
		"docs":  {"docs_old"},
		"forms": {"forms_v1"},
	}, WithAliasFile(path))
	require.NoError(t, err)

	// Then: the file wins and static-only handles still resolve
	indexes, err := r.Resolve(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs_2026_10"}, indexes)

	indexes, err = r.Resolve(context.Background(), "forms")
	require.NoError(t, err)
	assert.Equal(t, []string{"forms_v1"}, indexes)

	assert.Equal(t, []string{"docs", "forms", "news"}, r.Handles())
}

func TestAliasResolver_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	r, err := NewAliasResolver(map[string][]string{"docs": {"docs_v1"}}, WithAliasFile(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, r.Handles())
}

func TestAliasResolver_Reload(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  bool
		wantDocs []string
	}{
		{"valid update", "aliases:\n  docs: [docs_v2]\n", false, []string{"docs_v2"}},
		{"invalid YAML keeps previous", "aliases: [unclosed\n", true, []string{"docs_v1"}},
		{"empty alias keeps previous", "aliases:\n  docs: []\n", true, []string{"docs_v1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "aliases.yaml")
			writeAliases(t, path, "aliases:\n  docs: [docs_v1]\n")

			r, err := NewAliasResolver(nil, WithAliasFile(path))
			require.NoError(t, err)

			writeAliases(t, path, tt.content)
			err = r.Reload()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
			} else {
				require.NoError(t, err)
			}

			indexes, err := r.Resolve(context.Background(), "docs")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDocs, indexes)
		})
	}
}

func TestAliasResolver_InvalidFileAtStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	writeAliases(t, path, "aliases: [unclosed\n")

	_, err := NewAliasResolver(nil, WithAliasFile(path))
	require.Error(t, err)
}

func TestAliasResolver_Watch(t *testing.T) {
	// Given: a watched alias file
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	writeAliases(t, path, "aliases:\n  docs: [docs_v1]\n")

	r, err := NewAliasResolver(nil, WithAliasFile(path))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	// When: the file is rewritten (retried until the watcher is registered)
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("aliases:\n  docs: [docs_v2]\n"), 0o644); err != nil {
			return false
		}
		indexes, err := r.Resolve(context.Background(), "docs")
		return err == nil && len(indexes) == 1 && indexes[0] == "docs_v2"
	}, 5*time.Second, 50*time.Millisecond)

	// Then: cancelling stops the watcher
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestAliasResolver_WatchWithoutFile(t *testing.T) {
	r, err := NewAliasResolver(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Watch(ctx), context.Canceled)
}
