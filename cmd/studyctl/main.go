// Command studyctl runs operator tasks against the StudyFlow database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"studyflow-backend/internal/config"
	"studyflow-backend/internal/db"
	"studyflow-backend/internal/logging"
)

type flags struct {
	LogLevel string
	Driver   string
	DSN      string
}

func main() {
	cfg := config.Load()
	f := &flags{}

	app := &cli.Command{
		Name:      "studyctl",
		Usage:     "Operate a StudyFlow installation",
		UsageText: "studyctl [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Value:       "warn",
				Destination: &f.LogLevel,
			},
			&cli.StringFlag{
				Name:        "driver",
				Usage:       "database driver (postgres, sqlite3)",
				Value:       cfg.DBDriver,
				Destination: &f.Driver,
			},
			&cli.StringFlag{
				Name:        "dsn",
				Usage:       "connection string (defaults to the server's DB_* settings)",
				Value:       cfg.ConnString(),
				Destination: &f.DSN,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, _, err := logging.New(f.LogLevel, "")
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			return ctx, nil
		},
		Commands: []*cli.Command{
			migrateCmd(f),
			makeAdminCmd(f),
			usersCmd(f),
			rosterCmd(cfg),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func (f *flags) open(ctx context.Context) (*sql.DB, error) {
	database, err := db.Connect(f.Driver, f.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Migrate(ctx, database, f.Driver); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

func migrateCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create missing tables and indexes",
		Action: func(ctx context.Context, c *cli.Command) error {
			database, err := f.open(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			_, _ = fmt.Fprintln(c.Root().Writer, "✅ Schema is up to date")
			return nil
		},
	}
}
