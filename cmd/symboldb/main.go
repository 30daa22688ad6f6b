// Command symboldb is the CLI front end spec §6 describes as an
// external collaborator: subcommand dispatch, global flag parsing, and
// signal-driven cancellation, grounded directly on
// cmd/cctool/main.go's flag.FlagSet-plus-subcommand-table shell
// (generalized here to pflag for the GNU-style long flags spec §6
// names, e.g. `--exclude-name`).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/release-engineering/symboldb/internal/config"
)

// exit codes, spec §6: "0 success, 1 runtime failure, 2 usage error".
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type subcmd func(ctx context.Context, cfg config.Config, args []string) error

var subcommands = map[string]subcmd{
	"create-schema":         cmdCreateSchema,
	"load-rpm":              cmdLoadRPM,
	"create-set":            cmdCreateSet,
	"update-set-from-repo":  cmdUpdateSetFromRepo,
	"download-repo":         cmdDownloadRepo,
	"show-soname-conflicts": cmdShowSonameConflicts,
	"expire":                cmdExpire,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	fs := pflag.NewFlagSet("symboldb", pflag.ContinueOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "usage: symboldb [flags] <subcommand> [args...]")
		fs.PrintDefaults()
		fmt.Fprintln(out, "\nsubcommands:")
		for _, name := range []string{
			"create-schema", "load-rpm <path...>", "create-set <name> <path...>",
			"update-set-from-repo <name> <url...>", "download-repo <url...>",
			"show-soname-conflicts <set>", "expire",
		} {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}
	config.Flags(fs, &cfg)
	if err := fs.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	switch {
	case cfg.Quiet:
		log = log.Level(zerolog.ErrorLevel)
	case cfg.Verbose:
		log = log.Level(zerolog.DebugLevel)
	default:
		log = log.Level(zerolog.InfoLevel)
	}
	zlog.Set(&log)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, ok := subcommands[rest[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "symboldb: unknown subcommand %q\n", rest[0])
		fs.Usage()
		return exitUsage
	}

	if err := cmd(ctx, cfg, rest[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "symboldb: %s: %v\n", rest[0], err)
		// Subcommands report argument errors as "usage: ..." errors.
		if strings.HasPrefix(err.Error(), "usage: ") {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}
