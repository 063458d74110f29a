package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansearch/internal/telemetry"
)

func TestCollectStats(t *testing.T) {
	// Given: a telemetry store with today's counts and an old day
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)
	ms, err := telemetry.OpenSQLiteMetricsStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer func() { _ = ms.Close() }()

	today := now.Format(time.DateOnly)
	old := now.AddDate(0, 0, -10).Format(time.DateOnly)
	require.NoError(t, ms.SaveQueryTypeCounts(today, map[telemetry.QueryType]int64{
		telemetry.QueryTypeKeyword: 3,
		telemetry.QueryTypeBrowse:  1,
	}))
	require.NoError(t, ms.SaveQueryTypeCounts(old, map[telemetry.QueryType]int64{telemetry.QueryTypeSite: 50}))
	require.NoError(t, ms.SaveLatencyCounts(today, map[telemetry.LatencyBucket]int64{telemetry.BucketP10: 4}))
	require.NoError(t, ms.UpsertTermCounts(map[string]int64{"passport": 2, "forms": 1}))
	require.NoError(t, ms.AddZeroResultQuery("zzzqqq", now))

	// When: collecting the last week
	stats, err := collectStats(ms, 7, now)
	require.NoError(t, err)

	// Then: only days in range are counted
	assert.Equal(t, 7, stats.Days)
	assert.Equal(t, int64(4), stats.TotalQueries)
	assert.Equal(t, map[string]int64{"keyword": 3, "browse": 1}, stats.QueryTypeCounts)
	assert.Equal(t, map[string]int64{"p10": 4}, stats.LatencyDistribution)
	require.NotEmpty(t, stats.TopTerms)
	assert.Equal(t, StatsTermCount{Term: "passport", Count: 2}, stats.TopTerms[0])
	assert.Equal(t, []string{"zzzqqq"}, stats.ZeroResultQueries)
}

func TestCollectStats_Empty(t *testing.T) {
	ms, err := telemetry.OpenSQLiteMetricsStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer func() { _ = ms.Close() }()

	stats, err := collectStats(ms, 0, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Days, "non-positive days means today only")
	assert.Zero(t, stats.TotalQueries)
	assert.NotNil(t, stats.ZeroResultQueries)
	assert.NotNil(t, stats.TopTerms)
}

func TestStatsCmd_NoTelemetry(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, nil, "stats")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no telemetry recorded yet")
}

func TestStatsCmd_RecordsSearches(t *testing.T) {
	// Given: an index and two searches with telemetry enabled
	env := newTestEnv(t, "telemetry:\n  enabled: true\n")
	_, err := env.run(t, nil, "index", "docs", env.writeDocuments(t))
	require.NoError(t, err)
	_, err = env.run(t, nil, "search", "-c", "docs", "passport")
	require.NoError(t, err)
	_, err = env.run(t, nil, "search", "-c", "docs", "--tag", "travel")
	require.NoError(t, err)

	// When: reading stats as JSON
	out, err := env.run(t, nil, "stats", "--json", "--days", "2")
	require.NoError(t, err)

	// Then: both searches were flushed on exit
	var stats StatsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.QueryTypeCounts["keyword"])
	assert.Equal(t, int64(1), stats.QueryTypeCounts["browse"])
	assert.Contains(t, stats.TopTerms, StatsTermCount{Term: "passport", Count: 1})
}

func TestStatsCmd_TextOutput(t *testing.T) {
	env := newTestEnv(t, "")
	ms, err := telemetry.OpenSQLiteMetricsStore(filepath.Join(env.dataDir, "telemetry.db"))
	require.NoError(t, err)
	require.NoError(t, ms.SaveQueryTypeCounts(time.Now().Format(time.DateOnly),
		map[telemetry.QueryType]int64{telemetry.QueryTypePhrase: 1234}))
	require.NoError(t, ms.Close())

	out, err := env.run(t, nil, "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "phrase")
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatCount(tt.in))
	}
}
