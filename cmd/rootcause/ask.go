package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsrig/rootcause/config"
	srv "github.com/opsrig/rootcause/internal/server"
)

func askCMD() *cobra.Command {
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one query through the analysis pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			tracker, _, cleanup, err := srv.BuildTracker(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ag, ix, err := srv.BuildAgent(cfg, tracker)
			if err != nil {
				return err
			}
			defer ix.Close()

			query := strings.Join(args, " ")
			result, err := ag.Process(ctx, query)
			if err != nil {
				return err
			}

			fmt.Println(result.Response)
			fmt.Println()
			for _, idx := range result.CitationIndices {
				if idx < 0 || idx >= len(result.Documents) {
					continue
				}
				doc := result.Documents[idx]
				source, _ := doc.Metadata["source"].(string)
				fmt.Printf("  [%d] %s\n", idx, source)
			}
			fmt.Printf("\nconfidence: %.2f  trace: %s\n", result.Confidence, result.TraceID)
			return nil
		},
	}
	return ask
}
