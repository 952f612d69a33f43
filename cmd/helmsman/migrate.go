package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/harborai/helmsman/config"
	"github.com/harborai/helmsman/internal/migration"
)

// =============================================================================
// 数据库迁移子命令
// =============================================================================

// runMigrate 分发 migrate 子命令。goto/force 先取位置参数里的版本号,
// 其余参数统一走 migrateFlags 解析。
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	sub, subargs := args[0], args[1:]

	switch sub {
	case "help", "-h", "--help":
		printMigrateUsage()
		return
	case "up", "down", "status", "version", "info", "steps", "goto", "force", "reset":
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", sub)
		printMigrateUsage()
		os.Exit(1)
	}

	// goto/force 的首个参数是目标版本, steps 的首个参数是步数
	var numericArg int64
	if sub == "goto" || sub == "force" || sub == "steps" {
		if len(subargs) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: helmsman migrate %s <n>\n", sub)
			os.Exit(1)
		}
		v, err := strconv.ParseInt(subargs[0], 10, 32)
		if err != nil || (sub == "goto" && v < 0) {
			fmt.Fprintf(os.Stderr, "Invalid number: %s\n", subargs[0])
			os.Exit(1)
		}
		numericArg = v
		subargs = subargs[1:]
	}

	flags := newMigrateFlags("migrate " + sub)
	if err := flags.fs.Parse(subargs); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	migrator, err := flags.newMigrator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator, os.Stdout)
	ctx := context.Background()

	switch sub {
	case "up":
		err = cli.RunUp(ctx)
	case "down":
		if *flags.all {
			err = cli.RunDownAll(ctx)
		} else {
			err = cli.RunDown(ctx)
		}
	case "status":
		err = cli.RunStatus(ctx)
	case "version":
		err = cli.RunVersion(ctx)
	case "info":
		err = cli.RunInfo(ctx)
	case "steps":
		err = cli.RunSteps(ctx, int(numericArg))
	case "goto":
		err = cli.RunGoto(ctx, uint(numericArg))
	case "force":
		err = cli.RunForce(ctx, int(numericArg))
	case "reset":
		err = cli.RunDownAll(ctx)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", sub, err)
		os.Exit(1)
	}
}

// migrateFlags 是全部迁移子命令共享的连接参数
type migrateFlags struct {
	fs         *flag.FlagSet
	configPath *string
	dbType     *string
	dbURL      *string
	all        *bool
}

func newMigrateFlags(name string) *migrateFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &migrateFlags{
		fs:         fs,
		configPath: fs.String("config", "", "Path to config file"),
		dbType:     fs.String("db-type", "", "Database type (postgres, mysql, sqlite)"),
		dbURL:      fs.String("db-url", "", "Database connection URL"),
		all:        fs.Bool("all", false, "Rollback all migrations (down only)"),
	}
}

// newMigrator 优先使用显式的 --db-type/--db-url, 否则读应用配置
func (f *migrateFlags) newMigrator() (*migration.DefaultMigrator, error) {
	if *f.dbType != "" && *f.dbURL != "" {
		return migration.NewMigratorFromURL(*f.dbType, *f.dbURL)
	}

	loader := config.NewLoader()
	if *f.configPath != "" {
		loader = loader.WithConfigPath(*f.configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if *f.dbType != "" {
		cfg.Database.Driver = *f.dbType
	}

	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  helmsman migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration (--all rolls back everything)
  status    Show migration status
  version   Show current migration version
  info      Show migration progress summary
  steps     Apply (positive n) or rollback (negative n) n migrations
  goto      Migrate to a specific version
  force     Force set migration version (use with caution)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  helmsman migrate up
  helmsman migrate up --config /etc/helmsman/config.yaml
  helmsman migrate down --all
  helmsman migrate status
  helmsman migrate steps -1
  helmsman migrate goto 1
  helmsman migrate force 0`)
}
