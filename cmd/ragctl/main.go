// Package main implements ragctl, an operator CLI that runs the ingestion,
// indexing and query pipeline in-process using the same wiring as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rag-pipeline-go/internal/app"
	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/pkg/log"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli 在子命令之间共享配置与组装好的依赖。
type cli struct {
	configPath string
	mock       bool
	verbose    bool
	app        *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Operate the RAG pipeline from the command line",
		Long: `ragctl ingests documents, rebuilds the vector index, runs vector searches
and full RAG queries without going through the HTTP server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
			log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "./configs/config.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&c.mock, "mock", false, "force mock mode (no network calls)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "print pipeline logs to stdout")

	root.AddCommand(newIngestCmd(c), newIndexCmd(c), newSearchCmd(c), newQueryCmd(c))
	return root
}

func (c *cli) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.mock {
		cfg.MockMode = true
	}
	if c.verbose {
		log.Init(cfg.Log.Level, "console", "")
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise pipeline: %w", err)
	}
	c.app = a
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
