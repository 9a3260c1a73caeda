package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsrig/rootcause/config"
	"github.com/opsrig/rootcause/internal/index"
	"github.com/opsrig/rootcause/internal/ingest"
)

func ingestCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Load documents from files or directories into the search index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Retrieval.IndexPath == "" {
				return fmt.Errorf("retrieval.index_path must be set to ingest documents")
			}

			ix, err := index.Open(cfg.Retrieval.IndexPath, cfg.Retrieval.TopK)
			if err != nil {
				return err
			}
			defer ix.Close()

			in := ingest.New(ix)
			total := 0
			for _, path := range args {
				n, err := in.IngestPath(path)
				if err != nil {
					return err
				}
				total += n
			}
			count, _ := ix.Count()
			fmt.Printf("indexed %d chunk(s); index now holds %d document(s)\n", total, count)
			return nil
		},
	}
	return cmd
}
