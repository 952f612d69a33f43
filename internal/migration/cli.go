package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// =============================================================================
// 🖥️ 命令行封装
// =============================================================================

// CLI 把迁移操作包装成带进度输出的子命令实现
type CLI struct {
	migrator Migrator
	out      io.Writer
}

// NewCLI 创建命令行封装, out 为 nil 时写到标准输出
func NewCLI(migrator Migrator, out io.Writer) *CLI {
	if out == nil {
		out = os.Stdout
	}
	return &CLI{migrator: migrator, out: out}
}

// reportVersion 打印一次操作后的当前版本
func (c *CLI) reportVersion(ctx context.Context, verb string) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s. Current version: %d\n", verb, info.CurrentVersion)
	return nil
}

// RunUp 应用全部待执行迁移
func (c *CLI) RunUp(ctx context.Context) error {
	fmt.Fprintln(c.out, "Running migrations...")
	if err := c.migrator.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return c.reportVersion(ctx, "Migrations complete")
}

// RunDown 回滚最近一次迁移
func (c *CLI) RunDown(ctx context.Context) error {
	fmt.Fprintln(c.out, "Rolling back last migration...")
	if err := c.migrator.Down(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return c.reportVersion(ctx, "Rollback complete")
}

// RunDownAll 回滚全部迁移
func (c *CLI) RunDownAll(ctx context.Context) error {
	fmt.Fprintln(c.out, "Rolling back all migrations...")
	if err := c.migrator.DownAll(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	fmt.Fprintln(c.out, "All migrations rolled back.")
	return nil
}

// RunSteps 执行 n 步迁移
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	if n > 0 {
		fmt.Fprintf(c.out, "Applying %d migration(s)...\n", n)
	} else {
		fmt.Fprintf(c.out, "Rolling back %d migration(s)...\n", -n)
	}
	if err := c.migrator.Steps(ctx, n); err != nil {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return c.reportVersion(ctx, "Complete")
}

// RunGoto 迁到指定版本
func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	fmt.Fprintf(c.out, "Migrating to version %d...\n", version)
	if err := c.migrator.Goto(ctx, version); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(c.out, "Migration complete. Current version: %d\n", version)
	return nil
}

// RunForce 强制写入版本号
func (c *CLI) RunForce(ctx context.Context, version int) error {
	fmt.Fprintf(c.out, "Forcing version to %d...\n", version)
	if err := c.migrator.Force(ctx, version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	fmt.Fprintf(c.out, "Version forced to %d\n", version)
	return nil
}

// RunVersion 打印当前版本
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}

	if version == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}

	if dirty {
		fmt.Fprintf(c.out, "Current version: %d (dirty)\n", version)
	} else {
		fmt.Fprintf(c.out, "Current version: %d\n", version)
	}
	return nil
}

// RunStatus 按表格打印每条迁移的状态与汇总
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, statusLabel(s))
	}
	w.Flush()

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

func statusLabel(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "Dirty"
	case s.Applied:
		return "Applied"
	default:
		return "Pending"
	}
}

// RunInfo 打印迁移整体进度
func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("get info: %w", err)
	}

	fmt.Fprintln(c.out, "Migration Information:")
	fmt.Fprintf(c.out, "  Current Version:    %d\n", info.CurrentVersion)
	fmt.Fprintf(c.out, "  Dirty:              %v\n", info.Dirty)
	fmt.Fprintf(c.out, "  Total Migrations:   %d\n", info.TotalMigrations)
	fmt.Fprintf(c.out, "  Applied Migrations: %d\n", info.AppliedMigrations)
	fmt.Fprintf(c.out, "  Pending Migrations: %d\n", info.PendingMigrations)
	return nil
}
