package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/leafsii/hugo/internal/config"
	"github.com/leafsii/hugo/internal/db"
)

// execFunc replaces the running process, as syscall.Exec does
type execFunc func(argv0 string, argv []string, envv []string) error

// shellCommand returns the interactive client and its arguments for the
// named database. The psql session gets the record table as :table.
func shellCommand(cfg *config.Config, name string, args []string) (string, []string) {
	if cfg.Database.Driver == db.DriverPostgres {
		bin := cfg.Shell.PsqlBin
		argv := []string{bin, cfg.Database.PostgresDSN, "-v", "table=" + cfg.Database.PostgresTable(name)}
		return bin, append(argv, args...)
	}

	bin := cfg.Shell.SQLiteBin
	argv := []string{bin, cfg.Database.SQLitePath(name)}
	return bin, append(argv, args...)
}

func (c *CLI) shell(cfg *config.Config, name string, args []string) error {
	if cfg.Database.Driver != db.DriverPostgres {
		if err := ensureDataDir(cfg); err != nil {
			return err
		}
	}

	bin, argv := shellCommand(cfg, name, args)
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	if err := c.exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("shell: exec %s: %w", path, err)
	}
	return nil
}

func ensureDataDir(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Database.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return nil
}
