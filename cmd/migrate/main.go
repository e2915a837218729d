// Command migrate inspects and changes the database schema.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"socialapp/internal/config"
	"socialapp/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply, revert and inspect schema migrations",
		SilenceUsage: true,
	}
	root.AddCommand(
		schemaCmd("up", "Apply pending SQL migrations", cobra.NoArgs,
			func(ctx context.Context, cmd *cobra.Command, db *gorm.DB, _ *config.Config, _ []string) error {
				if err := database.RunMigrations(ctx, db); err != nil {
					return err
				}
				cmd.Println("sql migrations applied")
				return nil
			}),
		schemaCmd("auto", "Run gorm AutoMigrate over every model", cobra.NoArgs,
			func(ctx context.Context, cmd *cobra.Command, db *gorm.DB, cfg *config.Config, _ []string) error {
				cfg.DBSchemaMode = database.SchemaModeAuto
				if err := database.ApplySchema(ctx, db, cfg); err != nil {
					return err
				}
				cmd.Println("auto-migration applied")
				return nil
			}),
		schemaCmd("status", "Show the schema plan and pending migrations", cobra.NoArgs, printStatus),
		schemaCmd("down <version>", "Revert one applied migration", cobra.ExactArgs(1),
			func(ctx context.Context, cmd *cobra.Command, db *gorm.DB, _ *config.Config, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				if err := database.RollbackMigration(ctx, db, version); err != nil {
					return err
				}
				cmd.Printf("rolled back migration %06d\n", version)
				return nil
			}),
	)
	return root
}

type schemaAction func(ctx context.Context, cmd *cobra.Command, db *gorm.DB, cfg *config.Config, args []string) error

// schemaCmd wraps action with config loading and a connection that does not
// apply the schema on its own.
func schemaCmd(use, short string, args cobra.PositionalArgs, action schemaAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			return action(cmd.Context(), cmd, db, cfg, argv)
		},
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	cmd.Printf("mode:        %s\n", status.Mode)
	cmd.Printf("environment: %s\n", status.Environment)
	cmd.Printf("sql:         %t\n", status.WillRunSQL)
	cmd.Printf("automigrate: %t\n", status.WillRunAutoMigrate)
	cmd.Printf("applied:     %d\n", len(status.AppliedVersions))
	for _, m := range status.PendingMigrations {
		cmd.Printf("pending:     %s\n", m)
	}
	return nil
}
