package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/postgres"
)

// migrationStatus is the printable form of postgres.Migration.
type migrationStatus struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

func migrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema (uses DATABASE_URL)",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					if err := m.Migrate(cmd.Context()); err != nil {
						return err
					}
					return c.printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					if err := m.Rollback(cmd.Context()); err != nil {
						return err
					}
					return c.printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					return c.printStatus(cmd, m)
				})
			},
		},
	)
	return cmd
}

func (c *cli) withMigrator(ctx context.Context, fn func(*postgres.Migrator) error) error {
	db := c.cfg.Database
	if db.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = 2
	opts.MinConns = 0
	if db.QueryTimeout > 0 {
		opts.QueryTimeout = db.QueryTimeout
	}

	conn, err := postgres.Connect(ctx, db.URL, opts)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close()
	return fn(postgres.NewMigrator(conn))
}

func (c *cli) printStatus(cmd *cobra.Command, m *postgres.Migrator) error {
	migrations, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}
	out := make([]migrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := migrationStatus{Version: mig.Version, Name: mig.Name, Applied: mig.IsApplied}
		if mig.IsApplied {
			st.AppliedAt = mig.AppliedAt.UTC().Format(time.DateTime)
		}
		out = append(out, st)
	}
	return c.print(cmd, out)
}
