package cli

import (
	"context"
	"fmt"
	"os"

	"wisefido-schedule/internal/config"

	"owl-common/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <file.sql>",
		Short: "Apply a schema file to the configured database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read migration file: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewPostgresDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin transaction: %w", err)
			}
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to apply %s: %w", args[0], err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit migration: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s to %s\n", args[0], cfg.Database.Database)
			return nil
		},
	}
}
