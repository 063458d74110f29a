package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionsCmd_JSON(t *testing.T) {
	// Given: a configured handle over one loaded and one missing index,
	// plus an index no handle names
	env := newTestEnv(t, "collections:\n  travel: [docs, archive]\n")
	_, err := env.run(t, nil, "index", "docs", env.writeDocuments(t))
	require.NoError(t, err)
	_, err = env.run(t, nil, "index", "scratch", env.writeDocuments(t))
	require.NoError(t, err)

	// When: listing collections as JSON
	out, err := env.run(t, nil, "collections", "--json")
	require.NoError(t, err)

	// Then: the handle lists both indexes and the stray index is its own entry
	var infos []CollectionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	assert.Equal(t, []CollectionInfo{
		{Handle: "travel", Indexes: []IndexInfo{
			{Name: "docs", Documents: 3},
			{Name: "archive", Missing: true},
		}},
		{Handle: "scratch", Indexes: []IndexInfo{{Name: "scratch", Documents: 3}}},
	}, infos)
}

func TestCollectionsCmd_Empty(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, nil, "collections")

	require.NoError(t, err)
	assert.Contains(t, out, "No collections")
}

func TestCollectionsCmd_Text(t *testing.T) {
	env := newTestEnv(t, "collections:\n  travel: [docs]\n")
	_, err := env.run(t, nil, "index", "docs", env.writeDocuments(t))
	require.NoError(t, err)

	out, err := env.run(t, nil, "collections")

	require.NoError(t, err)
	assert.Contains(t, out, "travel")
	assert.Contains(t, out, "docs (3)")
}
