package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/output"
	"github.com/Aman-CERP/amansearch/internal/store"
	"github.com/Aman-CERP/amansearch/internal/ui"
)

const defaultBatchSize = 500

// indexOptions holds CLI flags for index.
type indexOptions struct {
	batchSize int
	deleteIDs []string
	wait      bool
	plain     bool
	noColor   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <index-name> [file]",
		Short: "Load JSON documents into a physical index",
		Long: `Load documents into a physical index, creating it if needed.

Documents are JSON objects, one per line or concatenated, read from the file
argument or from stdin. Documents with an existing id are replaced.
domain_name, url_path and extension are derived from path.

Only one process may write to an index at a time; a second indexer fails
fast unless --wait is given.`,
		Example: `  amansearch index docs-en pages.jsonl
  cat pages.jsonl | amansearch index docs-en
  amansearch index docs-en --delete page-17 --delete page-18`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C stops between batches and releases the lock.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			return runIndex(ctx, cmd, args[0], file, opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", defaultBatchSize, "Documents per write batch")
	cmd.Flags().StringSliceVar(&opts.deleteIDs, "delete", nil, "Delete documents by id instead of loading (repeatable)")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Wait for another indexer to release the index")
	cmd.Flags().BoolVar(&opts.plain, "no-tui", false, "Plain line output instead of the interactive progress view")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, name, file string, opts indexOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	lock := store.NewIndexLock(cfg.DataDir, name)
	if opts.wait {
		err = lock.Lock()
	} else {
		err = lock.TryLock()
	}
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	catalog, err := store.NewCatalog(cfg.DataDir, store.WithCatalogLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	if len(opts.deleteIDs) > 0 {
		if err := catalog.Delete(ctx, name, opts.deleteIDs); err != nil {
			return err
		}
		slog.Info("documents_deleted", slog.String("index", name), slog.Int("count", len(opts.deleteIDs)))
		out.Successf("Deleted %d document(s) from %s", len(opts.deleteIDs), name)
		return nil
	}

	var in io.Reader = cmd.InOrStdin()
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return amerrors.FileError("open", file, err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
		ui.WithIndexName(name)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageReading})
	docs, err := store.ReadDocuments(in)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		out.Warning("No documents to index")
		return nil
	}

	slog.Info("index_started", slog.String("index", name), slog.Int("documents", len(docs)))

	written, err := indexBatches(ctx, catalog, name, docs, opts.batchSize, func(done int) {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageWriting, Current: done, Total: len(docs)})
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		slog.Error("index_failed",
			slog.String("index", name),
			slog.Int("written", written),
			slog.String("error", err.Error()))
		return err
	}

	count, _ := catalog.DocCount(name)
	duration := time.Since(start)
	slog.Info("index_complete",
		slog.String("index", name),
		slog.Int("written", written),
		slog.Uint64("doc_count", count),
		slog.Duration("duration", duration))
	renderer.Complete(ui.CompletionStats{
		Index:    name,
		Written:  written,
		DocCount: count,
		Duration: duration,
	})
	return nil
}

// indexBatches writes docs in batches, reporting progress after each.
func indexBatches(ctx context.Context, catalog *store.Catalog, name string, docs []store.Document, batchSize int, progress func(done int)) (int, error) {
	batchSize = effectiveBatchSize(batchSize)

	written := 0
	for start := 0; start < len(docs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+batchSize, len(docs))
		n, err := catalog.Index(ctx, name, docs[start:end])
		if err != nil {
			return written, err
		}
		written += n
		progress(written)
	}
	return written, nil
}

func effectiveBatchSize(n int) int {
	if n <= 0 {
		return defaultBatchSize
	}
	return n
}
