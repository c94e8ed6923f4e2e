package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/infrastructure/config"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
	"github.com/biblioteca/backend/internal/infrastructure/migration"
	"github.com/biblioteca/backend/migrations"
)

func main() {
	var (
		dir      string
		logLevel string
	)
	flag.StringVar(&dir, "dir", "migrations", "Directory for new migration files (create only)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// create and list work without a database
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate create <name>")
		}
		f, err := migration.Create(dir, args[1])
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.Uint("version", f.Version),
			zap.String("up_file", f.UpPath),
			zap.String("down_file", f.DownPath),
		)
		return
	case "list":
		names, err := migration.List(migrations.FS)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal("Migrations target PostgreSQL; sqlite schemas are created by auto-migrate",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "step":
		var n int
		if n, err = intArg(args); err == nil {
			err = m.Steps(n)
		}
	case "force":
		var v int
		if v, err = intArg(args); err == nil {
			err = m.Force(v)
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		if version, dirty, err = m.Version(); err == nil {
			log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a numeric argument", args[0])
	}
	return strconv.Atoi(args[1])
}

func printUsage() {
	fmt.Println(`Biblioteca schema migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                Apply all pending migrations
  down              Roll back all migrations
  step <n>          Apply n migrations (positive=up, negative=down)
  version           Show the applied version
  force <version>   Mark a version as applied (recovers a dirty schema)
  create <name>     Scaffold the next numbered migration pair in -dir
  list              List the embedded migrations

Environment:
  LIB_DATABASE_HOST, LIB_DATABASE_PORT, LIB_DATABASE_USER,
  LIB_DATABASE_PASSWORD, LIB_DATABASE_DBNAME, LIB_DATABASE_SSLMODE`)
}
