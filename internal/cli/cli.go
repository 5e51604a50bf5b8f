// Package cli maps command lines onto store operations: it parses
// arguments, opens the named database, runs one operation inside one
// transaction, prints the outcome and picks the exit status.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/leafsii/hugo/internal/config"
	"github.com/leafsii/hugo/internal/db"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/kv"
	"github.com/leafsii/hugo/internal/log"
	"github.com/leafsii/hugo/internal/metrics"
	"github.com/leafsii/hugo/internal/store"
	"go.uber.org/zap"
)

// Exit statuses
const (
	ExitOK    = 0
	ExitFalse = 1
	ExitError = 2
)

const serviceName = "hugo"

var Version string

// ErrInvalidArgument is returned for a malformed command line
var ErrInvalidArgument = errors.New("invalid argument")

func version() string {
	if Version != "" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}

	return info.Main.Version
}

type CLI struct {
	stdout    io.Writer
	stderr    io.Writer
	exec      execFunc
	newLogger func(env, level string) (*zap.SugaredLogger, error)
}

func NewCLI(stdout, stderr io.Writer) *CLI {
	return &CLI{
		stdout:    stdout,
		stderr:    stderr,
		exec:      syscall.Exec,
		newLogger: log.NewSugar,
	}
}

func (c *CLI) Run(args []string) int {
	opts, err := parseFlags(args[1:])
	if err != nil {
		return c.fail(err)
	}
	if opts.showHelp {
		fmt.Fprint(c.stdout, usage)
		return ExitOK
	}
	if opts.showVersion {
		fmt.Fprintf(c.stdout, "hugo version %s; %s\n", version(), runtime.Version())
		return ExitOK
	}

	cfg, err := config.Load()
	if err != nil {
		return c.fail(err)
	}

	if opts.op == nil {
		if err := c.shell(cfg, opts.database, opts.shellArgs); err != nil {
			return c.fail(err)
		}
		return ExitOK
	}

	logger, err := c.newLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return c.fail(err)
	}
	defer logger.Sync()

	m, err := metrics.Setup(serviceName)
	if err != nil {
		logger.Warnw("Metrics disabled", "error", err)
		m = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := c.execute(ctx, cfg, logger, m, opts)
	if m != nil {
		c.pushMetrics(cfg, logger, m)
	}
	if err != nil {
		if interfaces.IsStorageError(err) {
			logger.Errorw("Storage failure", "database", opts.database, "driver", cfg.Database.Driver, "error", err)
		}
		return c.fail(err)
	}

	for _, line := range out.Lines {
		fmt.Fprintln(c.stdout, line)
	}
	if out.OK {
		return ExitOK
	}
	return ExitFalse
}

// execute opens the database, runs the operation in one transaction and
// compacts the store after a committed gc.
func (c *CLI) execute(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, m *metrics.Metrics, opts options) (kv.Outcome, error) {
	d, err := openDatabase(cfg, opts.database, logger)
	if err != nil {
		return kv.Outcome{}, err
	}
	defer d.Close()

	if err := db.ConnectAndMigrate(ctx, d); err != nil {
		return kv.Outcome{}, err
	}

	var out kv.Outcome
	err = d.Transaction(ctx, func(ctx context.Context, tx interfaces.Conn) error {
		svc := kv.NewService(
			store.ForDatabase(d, tx, logger),
			kv.WithLocation(cfg.Location()),
			kv.WithLogger(logger),
			kv.WithMetrics(m),
		)
		var err error
		out, err = svc.Execute(ctx, opts.op)
		return err
	})
	if err != nil {
		return kv.Outcome{}, err
	}

	if _, ok := opts.op.(kv.GC); ok {
		if err := d.Compact(ctx); err != nil {
			return kv.Outcome{}, err
		}
		logger.Debugw("Compacted database", "database", opts.database)
	}

	return out, nil
}

func openDatabase(cfg *config.Config, name string, logger *zap.SugaredLogger) (*db.Database, error) {
	if cfg.Database.Driver == db.DriverPostgres {
		return db.NewDatabase(&db.Config{
			Type:   db.DriverPostgres,
			DSN:    cfg.Database.PostgresDSN,
			Table:  cfg.Database.PostgresTable(name),
			Logger: logger,
		})
	}

	if err := ensureDataDir(cfg); err != nil {
		return nil, err
	}
	return db.NewDatabase(&db.Config{
		Type:   db.DriverSQLite,
		DSN:    cfg.Database.SQLitePath(name),
		Logger: logger,
	})
}

// pushMetrics is best effort: a failure never changes the exit status
func (c *CLI) pushMetrics(cfg *config.Config, logger *zap.SugaredLogger, m *metrics.Metrics) {
	defer m.Shutdown(context.Background())

	if cfg.Metrics.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Metrics.PushTimeout)
	defer cancel()

	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, serviceName); err != nil {
		logger.Warnw("Failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
	}
}

func (c *CLI) fail(err error) int {
	fmt.Fprintf(c.stderr, "%v\n\n", err)
	fmt.Fprint(c.stderr, usage)
	return ExitError
}
