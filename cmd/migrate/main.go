package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		dir      string
		logLevel string
	)
	flag.StringVar(&dir, "path", "", "migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(args, resolveDir(dir), log); err != nil {
		log.Fatal("migrate failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(args []string, dir string, log *zap.Logger) error {
	command := args[0]
	args = args[1:]

	// create and list work on the migrations directory alone.
	switch command {
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("usage: migrate create <name> [description]")
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		p, err := migration.Create(dir, args[0], description)
		if err != nil {
			return err
		}
		log.Info("migration created",
			zap.String("version", p.Version),
			zap.String("up", p.UpPath),
			zap.String("down", p.DownPath),
		)
		return nil

	case "list":
		names, err := migration.List(dir)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			log.Info("no migrations found", zap.String("dir", dir))
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "step":
		n, err := intArg(args, "usage: migrate step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)

	case "goto":
		n, err := intArg(args, "usage: migrate goto <version>")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("version must not be negative")
		}
		return m.To(uint(n))

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("no migrations applied")
			return nil
		}
		log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil

	case "force":
		n, err := intArg(args, "usage: migrate force <version>")
		if err != nil {
			return err
		}
		return m.Force(n)

	case "drop":
		if !hasFlag(args, "-confirm") && !hasFlag(args, "--confirm") {
			return fmt.Errorf("drop destroys all data; rerun as 'migrate drop -confirm'")
		}
		return m.Drop()

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// resolveDir falls back to ./migrations, then to the directory two
// levels above the binary (the repo root when built into bin/migrate).
func resolveDir(dir string) string {
	if dir == "" {
		dir = defaultMigrationsDir
		if _, err := os.Stat(dir); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsDir)
				if _, err := os.Stat(candidate); err == nil {
					dir = candidate
				}
			}
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func intArg(args []string, hint string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s", hint)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", args[0])
	}
	return n, nil
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func usage() {
	fmt.Println(`SyncBridge schema migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    apply all pending migrations
  down                  roll back all migrations
  step <n>              apply n migrations (negative rolls back)
  goto <version>        migrate to a specific version
  version               show the current schema version
  force <version>       overwrite the recorded version (recovery only)
  drop -confirm         drop every database object (DANGEROUS)
  create <name> [desc]  create a new up/down migration pair
  list                  list available migrations

Flags:
  -path string          migrations directory (default: ./migrations)
  -log-level string     debug, info, warn or error (default: info)

The database connection comes from the same SYNCBRIDGE_* environment
variables the server reads.`)
}
