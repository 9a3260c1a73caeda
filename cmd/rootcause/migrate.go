package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsrig/rootcause/config"
	srv "github.com/opsrig/rootcause/internal/server"
)

func migrateCMD() *cobra.Command {
	var (
		dir       string
		direction string
		steps     int
	)
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn := getenv("DATABASE_URL", "")
			if dsn == "" {
				dsn, err = cfg.Tracking.Postgres.DSN()
				if err != nil {
					return fmt.Errorf("no database configured: %w", err)
				}
			}
			if err := srv.Migrate(dir, dsn, direction, steps); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
	migrate.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source URL")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
