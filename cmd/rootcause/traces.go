package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsrig/rootcause/config"
	srv "github.com/opsrig/rootcause/internal/server"
)

func tracesCMD() *cobra.Command {
	traces := &cobra.Command{
		Use:   "traces",
		Short: "Inspect recorded workflow traces",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent completed traces",
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

			recent := tracker.RecentTraces(ctx, limit)
			for _, tr := range recent {
				finished := "running"
				if tr.EndTime != nil {
					finished = tr.EndTime.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%s  %-19s  steps=%d  %s\n", tr.TraceID, finished, len(tr.Steps), tr.Query)
			}
			if len(recent) == 0 {
				fmt.Println("no traces recorded")
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 10, "maximum number of traces to list")

	show := &cobra.Command{
		Use:   "show [trace-id]",
		Short: "Print one trace as JSON",
		Args:  cobra.ExactArgs(1),
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

			tr := tracker.GetTrace(ctx, args[0])
			if tr == nil {
				return fmt.Errorf("trace %s not found", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tr)
		},
	}

	traces.AddCommand(list, show)
	return traces
}
