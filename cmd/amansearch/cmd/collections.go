package cmd

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansearch/internal/output"
)

// CollectionInfo describes one handle and the indexes behind it.
type CollectionInfo struct {
	Handle  string      `json:"handle"`
	Indexes []IndexInfo `json:"indexes"`
}

// IndexInfo is one physical index with its document count.
type IndexInfo struct {
	Name      string `json:"name"`
	Documents uint64 `json:"documents"`
	Missing   bool   `json:"missing,omitempty"`
}

func newCollectionsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collection handles and their indexes",
		Long: `List every configured or aliased collection handle with the physical
indexes it resolves to and their document counts. Indexes on disk that no
handle names are listed under their own name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCollections(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runCollections(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	infos, err := a.collections(cmd)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	out := output.New(cmd.OutOrStdout())
	if len(infos) == 0 {
		out.Status("📭", "No collections. Add handles under 'collections' or run 'amansearch index'.")
		return nil
	}
	for _, info := range infos {
		parts := make([]string, 0, len(info.Indexes))
		for _, idx := range info.Indexes {
			if idx.Missing {
				parts = append(parts, idx.Name+" (missing)")
				continue
			}
			parts = append(parts, idx.Name+" ("+formatCount(idx.Documents)+")")
		}
		out.KeyValue(info.Handle, strings.Join(parts, ", "))
	}
	return nil
}

// collections resolves every handle, then adds unreferenced indexes.
func (a *app) collections(cmd *cobra.Command) ([]CollectionInfo, error) {
	names, err := a.catalog.Names()
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool)

	var infos []CollectionInfo
	for _, handle := range a.resolver.Handles() {
		indexes, err := a.resolver.Resolve(cmd.Context(), handle)
		if err != nil {
			return nil, err
		}
		info := CollectionInfo{Handle: handle}
		for _, name := range indexes {
			referenced[name] = true
			info.Indexes = append(info.Indexes, a.indexInfo(name))
		}
		infos = append(infos, info)
	}

	for _, name := range names {
		if !referenced[name] {
			infos = append(infos, CollectionInfo{Handle: name, Indexes: []IndexInfo{a.indexInfo(name)}})
		}
	}
	return infos, nil
}

func (a *app) indexInfo(name string) IndexInfo {
	if !a.catalog.Exists(name) {
		return IndexInfo{Name: name, Missing: true}
	}
	count, err := a.catalog.DocCount(name)
	if err != nil {
		return IndexInfo{Name: name, Missing: true}
	}
	return IndexInfo{Name: name, Documents: count}
}
