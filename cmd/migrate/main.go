// Command migrate manages the retail database: it creates or drops the base
// schema and applies the SQL patches that follow it.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/erp/retail/internal/infrastructure/config"
	"github.com/erp/retail/internal/infrastructure/logger"
	"github.com/erp/retail/internal/infrastructure/migration"
	"github.com/erp/retail/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// command is one CLI verb. Verbs that set needsMigrator receive an open
// migrator; the others work on the configuration alone.
type command struct {
	summary       string
	needsMigrator bool
	run           func(env *cliEnv, args []string) error
}

type cliEnv struct {
	cfg      *config.Config
	log      *zap.Logger
	dir      string
	migrator *migration.Migrator
}

var commands = map[string]command{
	"create-schema": {summary: "Create every table and index", run: createSchema},
	"drop-schema":   {summary: "Drop every table (DANGEROUS)", run: dropSchema},
	"list":          {summary: "List available patches", run: listPatches},
	"up": {summary: "Apply all pending patches", needsMigrator: true, run: func(env *cliEnv, _ []string) error {
		return env.migrator.Up()
	}},
	"down":    {summary: "Roll back n patches (all when n is omitted)", needsMigrator: true, run: down},
	"version": {summary: "Show current patch version", needsMigrator: true, run: version},
	"patch":   {summary: "Apply patches up to and including <name>", needsMigrator: true, run: patch},
}

// commandOrder fixes the order of the usage text
var commandOrder = []string{"create-schema", "drop-schema", "up", "down", "version", "patch", "list"}

func main() {
	dir := flag.String("path", "", "migrations directory (default: database.migrations_path or ./migrations)")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", TimeFormat: time.DateTime})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	env := &cliEnv{cfg: cfg, log: log.With(zap.String("command", args[0]))}
	if env.dir, err = migrationsDir(*dir, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Invalid migrations path", zap.Error(err))
	}

	if cmd.needsMigrator {
		db, err := openDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		if env.migrator, err = migration.New(db, env.dir, env.log); err != nil {
			_ = db.Close()
			log.Fatal("Failed to create migrator", zap.Error(err))
		}
	}

	err = cmd.run(env, args[1:])
	if env.migrator != nil {
		_ = env.migrator.Close()
	}
	if err != nil {
		env.log.Fatal("Command failed", zap.Error(err))
	}
}

func migrationsDir(flagValue, configured string) (string, error) {
	for _, candidate := range []string{flagValue, configured, defaultMigrationsPath} {
		if candidate != "" {
			return filepath.Abs(candidate)
		}
	}
	return "", nil
}

// openDB opens a dedicated connection: closing the migrator closes it
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func withDatabase(env *cliEnv, fn func(*persistence.Database) error) error {
	db, err := persistence.NewDatabase(&env.cfg.Database, &env.cfg.Log, env.log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func createSchema(env *cliEnv, _ []string) error {
	return withDatabase(env, func(db *persistence.Database) error {
		if err := db.CreateSchema(); err != nil {
			return err
		}
		env.log.Info("Schema created", zap.Int("tables", len(persistence.Entities())))
		return nil
	})
}

func dropSchema(env *cliEnv, _ []string) error {
	return withDatabase(env, func(db *persistence.Database) error {
		if err := db.DropSchema(); err != nil {
			return err
		}
		env.log.Warn("Schema dropped")
		return nil
	})
}

func listPatches(env *cliEnv, _ []string) error {
	patches, err := migration.ListPatches(env.dir)
	if err != nil {
		return err
	}
	for _, p := range patches {
		fmt.Println("  -", p)
	}
	return nil
}

func down(env *cliEnv, args []string) error {
	steps := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		steps = n
	}
	return env.migrator.Down(steps)
}

func version(env *cliEnv, _ []string) error {
	v, dirty, err := env.migrator.Version()
	if err != nil {
		return err
	}
	if v == 0 {
		env.log.Info("No patches applied")
		return nil
	}
	env.log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

func patch(env *cliEnv, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("patch name required: migrate patch <name>")
	}
	return env.migrator.Patch(args[0])
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Retail database migration tool")
	fmt.Fprintln(out, "\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(out, "  %-15s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nConnection settings come from config.toml or RETAIL_DATABASE_* variables.")
}
