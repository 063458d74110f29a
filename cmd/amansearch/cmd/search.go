package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/output"
	"github.com/Aman-CERP/amansearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	collections []string
	language    string
	size        int
	offset      int
	include     []string
	tags        []string
	ignoreTags  []string
	facets      []string // field=value
	minChanged  string
	maxChanged  string
	minCreated  string
	maxCreated  string
	sortByDate  bool
	jsonOutput  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search one or more collections",
		Long: `Search one or more collections.

The query supports quoted phrases and site: operators:
  "exact phrase"            match the words adjacent and in order
  site:docs.example.com     restrict to a host, optionally with a path
  -site:example.com/blog    exclude a host or path

Without a query every document matching the filters is returned, newest
first when --sort-date is set.`,
		Example: `  amansearch search -c docs "billing report"
  amansearch search -c docs -c blog 'invoice site:docs.example.com/billing'
  amansearch search -c docs --tag finance --facet extension=pdf --json
  amansearch search -c docs --since 2026-01-01 --sort-date`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.collections, "collection", "c", nil, "Collection handle to search (repeatable)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Result language (default en)")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "Page size (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Extra stored fields to return")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Require a tag (repeatable, any may match)")
	cmd.Flags().StringSliceVar(&opts.ignoreTags, "ignore-tag", nil, "Exclude a tag (repeatable)")
	cmd.Flags().StringArrayVar(&opts.facets, "facet", nil, "Facet filter field=value (repeatable, OR within a field)")
	cmd.Flags().StringVar(&opts.minChanged, "since", "", "Changed on or after (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.maxChanged, "until", "", "Changed on or before (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.minCreated, "created-since", "", "Created on or after (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.maxCreated, "created-until", "", "Created on or before (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.sortByDate, "sort-date", false, "Order by changed date, newest first")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the response as JSON")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req, err := opts.request(query, cfg.Search.DefaultSize)
	if err != nil {
		return err
	}

	a, err := openApp(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("search_started",
		slog.String("query", query),
		slog.Any("handles", req.Handles),
		slog.Int("size", req.Size))

	start := time.Now()
	resp, err := a.engine.Search(cmd.Context(), req)
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.Int("total", resp.Total),
		slog.Duration("duration", time.Since(start)))

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	output.New(cmd.OutOrStdout()).Results(resp, req.Offset)
	return nil
}

// request builds the engine request from the flags.
func (o searchOptions) request(query string, defaultSize int) (search.Request, error) {
	req := search.Request{
		Handles:    o.collections,
		Language:   o.language,
		Query:      query,
		Size:       o.size,
		Offset:     o.offset,
		Include:    o.include,
		Tags:       o.tags,
		IgnoreTags: o.ignoreTags,
		SortByDate: o.sortByDate,
	}
	if req.Size == 0 {
		req.Size = defaultSize
	}

	facets, err := parseFacets(o.facets)
	if err != nil {
		return search.Request{}, err
	}
	req.Facets = facets

	bounds := []struct {
		flag  string
		value string
		dst   **time.Time
	}{
		{"since", o.minChanged, &req.MinTimestamp},
		{"until", o.maxChanged, &req.MaxTimestamp},
		{"created-since", o.minCreated, &req.MinTimestampCreated},
		{"created-until", o.maxCreated, &req.MaxTimestampCreated},
	}
	for _, b := range bounds {
		if b.value == "" {
			continue
		}
		ts, err := parseTimeFlag(b.value)
		if err != nil {
			return search.Request{}, amerrors.ValidationError(
				fmt.Sprintf("--%s: %q is not RFC3339 or YYYY-MM-DD", b.flag, b.value), err)
		}
		*b.dst = &ts
	}
	return req, nil
}

// parseFacets turns field=value pairs into the request facet map.
func parseFacets(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	facets := make(map[string][]string)
	for _, p := range pairs {
		field, value, ok := strings.Cut(p, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, amerrors.ValidationError(fmt.Sprintf("--facet %q must be field=value", p), nil)
		}
		facets[field] = append(facets[field], strings.TrimSpace(value))
	}
	return facets, nil
}

func parseTimeFlag(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	return time.Parse(time.DateOnly, v)
}
