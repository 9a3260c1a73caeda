package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "rootcause",
		Short: "Traced retrieval-augmented root cause analysis",
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(serveCMD(), askCMD(), ingestCMD(), tracesCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
