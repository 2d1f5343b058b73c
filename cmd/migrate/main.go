package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type flags struct {
	cmd     string
	dir     string
	name    string
	version string
}

// dbCommand runs against the issuer store. The catalog schema is owned elsewhere and never migrated here.
type dbCommand func(ctx context.Context, sqlDB *sql.DB, driver string, f flags) error

var dbCommands = map[string]dbCommand{
	"up":     gooseCommand("up"),
	"down":   gooseCommand("down"),
	"redo":   gooseCommand("redo"),
	"status": gooseCommand("status"),
	"version": func(ctx context.Context, sqlDB *sql.DB, driver string, f flags) error {
		if f.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, driver, f.version)
	},
	"current": func(ctx context.Context, sqlDB *sql.DB, driver string, _ flags) error {
		v, err := migrate.Version(ctx, sqlDB, driver)
		if err != nil {
			return err
		}
		fmt.Println("issuer store schema version:", v)
		return nil
	},
}

func gooseCommand(name string) dbCommand {
	return func(ctx context.Context, sqlDB *sql.DB, driver string, _ flags) error {
		return migrate.Run(ctx, sqlDB, driver, name)
	}
}

func main() {
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "one of: create, validate, "+strings.Join(commandNames(), ", "))
	flag.StringVar(&f.dir, "dir", migrate.DefaultDir, "migrations directory on disk (create, validate)")
	flag.StringVar(&f.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&f.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", f.cmd, err)
		os.Exit(1)
	}
}

func run(f flags) error {
	switch f.cmd {
	case "create":
		if f.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(f.dir, f.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(f.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	command, ok := dbCommands[f.cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", f.cmd)
	}

	cfg, err := config.LoadIssuerDB()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Configured() {
		return errors.New("issuer store DSN is not set; nothing to migrate")
	}

	logg := logger.New(logger.Options{ServiceName: "migrate", Format: "console", Output: os.Stderr})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": f.cmd, "driver": cfg.Driver})

	client, err := db.New(ctx, db.IssuerOptions(cfg), logg)
	if err != nil {
		return err
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	if err := command(ctx, sqlDB, client.Driver(), f); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.done")
	return nil
}

func commandNames() []string {
	names := make([]string, 0, len(dbCommands))
	for name := range dbCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
