package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansearch/internal/output"
	"github.com/Aman-CERP/amansearch/internal/telemetry"
)

const statsListLimit = 10

// StatsOutput is the JSON output format for query stats.
type StatsOutput struct {
	Days                int              `json:"days"`
	TotalQueries        int64            `json:"total_queries"`
	QueryTypeCounts     map[string]int64 `json:"query_type_counts"`
	TopTerms            []StatsTermCount `json:"top_terms"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
}

// StatsTermCount represents a term and its frequency.
type StatsTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query telemetry",
		Long: `Display persisted query telemetry:
  - Query type distribution (browse, keyword, phrase, site)
  - Top query terms
  - Recent zero-result queries
  - Latency distribution`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, days, time.Now())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool, days int, now time.Time) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.TelemetryDBPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no telemetry recorded yet (%s)\nRun some searches with telemetry enabled first", path)
	}

	ms, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		return fmt.Errorf("failed to open telemetry: %w", err)
	}
	defer func() { _ = ms.Close() }()

	stats, err := collectStats(ms, days, now)
	if err != nil {
		return fmt.Errorf("failed to read telemetry: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	printStats(output.New(cmd.OutOrStdout()), stats)
	return nil
}

// collectStats reads the last days of telemetry, today included.
func collectStats(ms *telemetry.SQLiteMetricsStore, days int, now time.Time) (*StatsOutput, error) {
	if days <= 0 {
		days = 1
	}
	to := now.Format(time.DateOnly)
	from := now.AddDate(0, 0, -(days - 1)).Format(time.DateOnly)

	typeCounts, err := ms.GetQueryTypeCounts(from, to)
	if err != nil {
		return nil, err
	}
	latencies, err := ms.GetLatencyCounts(from, to)
	if err != nil {
		return nil, err
	}
	topTerms, err := ms.GetTopTerms(statsListLimit)
	if err != nil {
		return nil, err
	}
	zero, err := ms.GetZeroResultQueries(statsListLimit)
	if err != nil {
		return nil, err
	}

	stats := &StatsOutput{
		Days:                days,
		QueryTypeCounts:     make(map[string]int64, len(typeCounts)),
		TopTerms:            make([]StatsTermCount, 0, len(topTerms)),
		ZeroResultQueries:   zero,
		LatencyDistribution: make(map[string]int64, len(latencies)),
	}
	if stats.ZeroResultQueries == nil {
		stats.ZeroResultQueries = []string{}
	}
	for qt, n := range typeCounts {
		stats.QueryTypeCounts[string(qt)] = n
		stats.TotalQueries += n
	}
	for b, n := range latencies {
		stats.LatencyDistribution[string(b)] = n
	}
	for _, tc := range topTerms {
		stats.TopTerms = append(stats.TopTerms, StatsTermCount{Term: tc.Term, Count: tc.Count})
	}
	return stats, nil
}

func printStats(out *output.Writer, stats *StatsOutput) {
	out.Statusf("📊", "Query telemetry, last %d day(s)", stats.Days)
	out.KeyValue("Total queries", formatCount(uint64(stats.TotalQueries)))

	if len(stats.QueryTypeCounts) > 0 {
		out.Newline()
		out.Status("🔤", "Query types")
		for _, k := range sortedKeys(stats.QueryTypeCounts) {
			out.KeyValue(k, stats.QueryTypeCounts[k])
		}
	}
	if len(stats.LatencyDistribution) > 0 {
		out.Newline()
		out.Status("⏱", "Latency")
		for _, k := range sortedKeys(stats.LatencyDistribution) {
			out.KeyValue(k, stats.LatencyDistribution[k])
		}
	}
	if len(stats.TopTerms) > 0 {
		out.Newline()
		out.Status("🔝", "Top terms")
		for _, tc := range stats.TopTerms {
			out.KeyValue(tc.Term, tc.Count)
		}
	}
	if len(stats.ZeroResultQueries) > 0 {
		out.Newline()
		out.Status("🕳", "Recent zero-result queries")
		for _, q := range stats.ZeroResultQueries {
			out.Status("", "  "+q)
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatCount renders n with thousands separators.
func formatCount(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
