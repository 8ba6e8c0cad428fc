package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rag-pipeline-go/internal/index"
	"rag-pipeline-go/internal/prompt"
	"rag-pipeline-go/internal/service"
)

func newIngestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract, chunk and index local files",
		Long: `Extract text from each file, split it into overlapping word chunks,
save the chunks and rebuild the vector index.

Examples:
  ragctl ingest handbook.pdf notes.docx
  ragctl --mock ingest README.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]service.UploadedFile, 0, len(args))
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, service.UploadedFile{FileName: filepath.Base(path), Reader: f})
			}
			report, err := c.app.IngestSvc.Ingest(cmd.Context(), files)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
}

func newIndexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from stored chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := c.app.IndexSvc.Reindex(cmd.Context())
			if err != nil {
				if errors.Is(err, index.ErrNoChunks) {
					return fmt.Errorf("no chunks found in %s, ingest documents first", c.app.Config.Storage.ChunksDir)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %s\n", n, c.app.Index.Dir())
			return nil
		},
	}
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		k     int
		docID string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Nearest-neighbour search over the persisted index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.app.LoadIndex() {
				return errors.New("index not built, run `ragctl index` first")
			}
			hits, err := c.app.IndexSvc.Search(cmd.Context(), args[0], k, index.Filters{DocID: docID})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			for i, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (score %.4f) %s\n", i+1, h.ChunkID, h.Score, truncate(h.Text, 120))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", index.DefaultTopK, "number of results")
	cmd.Flags().StringVar(&docID, "doc", "", "restrict results to one doc_id")
	return cmd
}

func newQueryCmd(c *cli) *cobra.Command {
	var (
		docIDs   []string
		template string
	)
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run a full RAG query and print the structured result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.LoadIndex()
			if len(docIDs) == 0 {
				docIDs = []string{"default"}
			}
			result, err := c.app.Orchestrator.Run(cmd.Context(), args[0], docIDs, template)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringSliceVar(&docIDs, "doc", nil, "doc_id to scope the query (repeatable)")
	cmd.Flags().StringVar(&template, "template", string(prompt.DefaultTemplate), "template type: qa, gap or checklist")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
