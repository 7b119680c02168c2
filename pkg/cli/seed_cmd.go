package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sec-agent/internal/app"
	"sec-agent/internal/config"
	"sec-agent/internal/db"
)

func newSeedCmd(g *globals) *cobra.Command {
	var (
		configPath string
		count      int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the local log database and fill it with sample events",
		Long: `Create the configured database, apply its schema and insert a week of
random security events plus three planted incidents (a port scan, an SSH brute
force and a data exfiltration). A table that already has rows is left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := g.logger(cmd)
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Store.SeedSample = false

			database, err := app.OpenDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			n, err := db.Seed(cmd.Context(), database.WriteDB, db.SeedOptions{Table: cfg.Store.Table, Count: count}, logger)
			if err != nil {
				return err
			}
			out := map[string]any{"path": cfg.Store.Path, "table": cfg.Store.Table, "inserted": n}
			if ok, err := printStructured(cmd.OutOrStdout(), getOutputFormat(cmd), out); ok {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %d events into %s (%s)\n", n, cfg.Store.Table, cfg.Store.Path)
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $CONFIG_FILE)")
	cmd.Flags().IntVar(&count, "count", 1000, "Number of background events")
	return cmd
}
