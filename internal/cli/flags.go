package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leafsii/hugo/internal/kv"
	"github.com/spf13/pflag"
)

type options struct {
	showVersion bool
	showHelp    bool

	database string
	command  string

	// op is nil for shell, which runs outside the store
	op        kv.Operation
	shellArgs []string
}

type subcommand struct {
	name    string
	aliases []string
	// minArgs and maxArgs bound the positionals; maxArgs < 0 means unbounded
	minArgs int
	maxArgs int
	ttl     bool
	refresh bool
	build   func(args []string, ttl *string, refresh bool) kv.Operation
}

var subcommands = []subcommand{
	{name: "has", aliases: []string{"h"}, minArgs: 1, maxArgs: 1, ttl: true, refresh: true,
		build: func(a []string, ttl *string, refresh bool) kv.Operation {
			return kv.Has{Key: a[0], Options: kv.Options{TTL: ttl, Refresh: refresh}}
		}},
	{name: "get", aliases: []string{"g"}, minArgs: 1, maxArgs: 2, ttl: true, refresh: true,
		build: func(a []string, ttl *string, refresh bool) kv.Operation {
			return kv.Get{Key: a[0], Default: optional(a, 1), Options: kv.Options{TTL: ttl, Refresh: refresh}}
		}},
	{name: "set", aliases: []string{"s"}, minArgs: 1, maxArgs: 2, ttl: true,
		build: func(a []string, ttl *string, _ bool) kv.Operation {
			return kv.Set{Key: a[0], Value: optional(a, 1), TTL: ttl}
		}},
	{name: "inc", aliases: []string{"i"}, minArgs: 1, maxArgs: 2, ttl: true, refresh: true,
		build: func(a []string, ttl *string, refresh bool) kv.Operation {
			return kv.Modify{Key: a[0], Delta: optional(a, 1), Options: kv.Options{TTL: ttl, Refresh: refresh}}
		}},
	{name: "dec", aliases: []string{"d"}, minArgs: 1, maxArgs: 2, ttl: true, refresh: true,
		build: func(a []string, ttl *string, refresh bool) kv.Operation {
			return kv.Modify{Key: a[0], Delta: optional(a, 1), Subtract: true, Options: kv.Options{TTL: ttl, Refresh: refresh}}
		}},
	{name: "unset", aliases: []string{"remove", "rm"}, minArgs: 1, maxArgs: 1,
		build: func(a []string, _ *string, _ bool) kv.Operation {
			return kv.Remove{Key: a[0]}
		}},
	{name: "check", aliases: []string{"c"}, minArgs: 1, maxArgs: 2, ttl: true, refresh: true,
		build: func(a []string, ttl *string, refresh bool) kv.Operation {
			return kv.Check{Key: a[0], Value: optional(a, 1), Options: kv.Options{TTL: ttl, Refresh: refresh}}
		}},
	{name: "swap", minArgs: 1, maxArgs: 2, ttl: true, refresh: true,
		build: func(a []string, ttl *string, refresh bool) kv.Operation {
			return kv.Swap{Key: a[0], Value: optional(a, 1), Options: kv.Options{TTL: ttl, Refresh: refresh}}
		}},
	{name: "ttl", minArgs: 1, maxArgs: 2,
		build: func(a []string, _ *string, _ bool) kv.Operation {
			return kv.TTL{Key: a[0], Value: optional(a, 1)}
		}},
	{name: "import", minArgs: 1, maxArgs: 1,
		build: func(a []string, _ *string, _ bool) kv.Operation {
			return kv.Import{Path: a[0]}
		}},
	{name: "gc", minArgs: 0, maxArgs: 0,
		build: func([]string, *string, bool) kv.Operation {
			return kv.GC{}
		}},
	{name: "shell", minArgs: 0, maxArgs: -1},
}

func lookupSubcommand(name string) (subcommand, bool) {
	for _, sc := range subcommands {
		if sc.name == name {
			return sc, true
		}
		for _, alias := range sc.aliases {
			if alias == name {
				return sc, true
			}
		}
	}
	return subcommand{}, false
}

func optional(args []string, i int) *string {
	if i >= len(args) {
		return nil
	}
	return &args[i]
}

// parseFlags reads `[global flags] <database> <subcommand> [flags] [args...]`
func parseFlags(args []string) (options, error) {
	opt := options{}

	fs := pflag.NewFlagSet("hugo", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.BoolVar(&opt.showVersion, "version", false, "print version and exit")
	fs.BoolVarP(&opt.showHelp, "help", "h", false, "show usage")

	if err := fs.Parse(args); err != nil {
		return options{}, invalidArgument("%v", err)
	}
	if opt.showVersion || opt.showHelp {
		return opt, nil
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return options{}, invalidArgument("database name is required")
	}
	if len(rest) < 2 {
		return options{}, invalidArgument("subcommand is required")
	}

	opt.database = rest[0]
	if err := validateDatabaseName(opt.database); err != nil {
		return options{}, err
	}

	sc, ok := lookupSubcommand(rest[1])
	if !ok {
		return options{}, fmt.Errorf("%w: %s", kv.ErrUnknownOperation, rest[1])
	}
	opt.command = sc.name

	if sc.name == "shell" {
		opt.shellArgs = rest[2:]
		return opt, nil
	}

	var (
		ttl     string
		refresh bool
	)
	sfs := pflag.NewFlagSet(sc.name, pflag.ContinueOnError)
	sfs.SetOutput(io.Discard)
	if sc.ttl {
		sfs.StringVarP(&ttl, "ttl", "t", "", "expiry: `2 years 3d 4h`, `2030-01-01 12:00:00` or `2030/01/01`")
	}
	if sc.refresh {
		sfs.BoolVarP(&refresh, "refresh", "r", false, "re-arm the expiry of a found key (needs --ttl)")
	}
	if err := sfs.Parse(rest[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return options{showHelp: true}, nil
		}
		return options{}, invalidArgument("%s: %v", sc.name, err)
	}

	positional := sfs.Args()
	if len(positional) < sc.minArgs || (sc.maxArgs >= 0 && len(positional) > sc.maxArgs) {
		return options{}, invalidArgument("%s: wrong number of arguments", sc.name)
	}

	var ttlPtr *string
	if sfs.Changed("ttl") {
		ttlPtr = &ttl
	}
	opt.op = sc.build(positional, ttlPtr, refresh)
	return opt, nil
}

// validateDatabaseName keeps a name inside the data directory
func validateDatabaseName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return invalidArgument("bad database name %q", name)
	}
	return nil
}

func invalidArgument(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, a...))
}
