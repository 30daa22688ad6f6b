package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/fatih/color"
	"github.com/quay/zlog"

	"github.com/release-engineering/symboldb/internal/closure"
	"github.com/release-engineering/symboldb/internal/config"
	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/download"
	"github.com/release-engineering/symboldb/internal/downloader"
	"github.com/release-engineering/symboldb/internal/filecache"
	"github.com/release-engineering/symboldb/internal/ids"
	"github.com/release-engineering/symboldb/internal/ingest"
	"github.com/release-engineering/symboldb/internal/schema"
	"github.com/release-engineering/symboldb/internal/urlcache"
)

func connect(ctx context.Context, cfg config.Config) (*db.Pool, error) {
	return db.Connect(ctx, cfg.ConnString(), "symboldb")
}

// cmdCreateSchema applies the two SQL scripts spec §6 names verbatim:
// the base table definitions followed by the index script.
func cmdCreateSchema(ctx context.Context, cfg config.Config, _ []string) error {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema.Base); err != nil {
		return fmt.Errorf("applying base schema: %w", err)
	}
	if _, err := pool.Exec(ctx, schema.Index); err != nil {
		return fmt.Errorf("applying index schema: %w", err)
	}
	return nil
}

// cmdLoadRPM loads each archive in args via rpm_load, spec §6's
// `load-rpm <path...>`.
func cmdLoadRPM(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: load-rpm <path...>")
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	var failed int
	for _, path := range args {
		pid, err := ingest.Load(ctx, pool, path)
		if err != nil {
			zlog.Error(ctx).Str("path", path).Err(err).Msg("load-rpm: failed")
			fmt.Fprintf(os.Stderr, "symboldb: %s: %v\n", path, err)
			failed++
			continue
		}
		zlog.Info(ctx).Str("path", path).Str("package", pid.String()).Msg("load-rpm: loaded")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d packages failed to load", failed, len(args))
	}
	return nil
}

// cmdCreateSet loads every archive in args, then replaces the named
// set's membership with the resulting package ids and recomputes its
// ELF closure, spec §6's `create-set <name> <path...>`.
func cmdCreateSet(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: create-set <name> <path...>")
	}
	name, paths := args[0], args[1:]
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	var pids []ids.PackageID
	for _, path := range paths {
		pid, err := ingest.Load(ctx, pool, path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		pids = append(pids, pid)
	}
	return updateNamedSet(ctx, pool, name, pids)
}

// updateNamedSet replaces set name's membership with pids in one
// transaction and, if that changed anything, recomputes its ELF
// closure (spec §4.13 step 6, shared by create-set and
// update-set-from-repo).
func updateNamedSet(ctx context.Context, pool *db.Pool, name string, pids []ids.PackageID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	setID, err := schema.InternPackageSet(ctx, tx, name)
	if err != nil {
		return err
	}
	changed, err := schema.UpdatePackageSet(ctx, tx, setID, pids)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if changed {
		zlog.Info(ctx).Str("set", name).Msg("recomputing elf closure")
		if err := closure.Recompute(ctx, pool, setID); err != nil {
			return fmt.Errorf("recomputing closure: %w", err)
		}
	}
	return nil
}

// cmdUpdateSetFromRepo indexes each repository URL in args[1:] and
// loads every package it lists into the named set, spec §6's
// `update-set-from-repo <name> <url...>`.
func cmdUpdateSetFromRepo(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: update-set-from-repo <name> <url...>")
	}
	name, urls := args[0], args[1:]
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.Cache, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	cache := filecache.New(cfg.Cache, pool)
	dl := downloader.New(&urlcache.Store{DB: pool})

	c := download.NewConsolidator()
	for _, u := range urls {
		if err := download.Repo(ctx, dl, u, c); err != nil {
			return fmt.Errorf("indexing %s: %w", u, err)
		}
	}

	opts := download.Options{
		Load:                 true,
		IgnoreDownloadErrors: cfg.IgnoreDownloadErrors,
	}
	if cfg.ExcludeName != "" {
		re, err := regexp.Compile(cfg.ExcludeName)
		if err != nil {
			return fmt.Errorf("parsing --exclude-name: %w", err)
		}
		opts.ExcludeName = re
	}
	result, err := download.DownloadRepo(ctx, pool, cache, dl, c, opts)
	if err != nil {
		return err
	}
	return updateNamedSet(ctx, pool, name, result.PackageIDs)
}

// cmdDownloadRepo indexes and downloads every package from the given
// repository URLs without requiring a named set, spec §6's
// `download-repo <url...>`.
func cmdDownloadRepo(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: download-repo <url...>")
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.Cache, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	cache := filecache.New(cfg.Cache, pool)
	dl := downloader.New(&urlcache.Store{DB: pool})

	c := download.NewConsolidator()
	for _, u := range args {
		if err := download.Repo(ctx, dl, u, c); err != nil {
			return fmt.Errorf("indexing %s: %w", u, err)
		}
	}

	opts := download.Options{
		Load:                 cfg.SetName != "",
		SetName:              cfg.SetName,
		IgnoreDownloadErrors: cfg.IgnoreDownloadErrors,
	}
	if cfg.ExcludeName != "" {
		re, err := regexp.Compile(cfg.ExcludeName)
		if err != nil {
			return fmt.Errorf("parsing --exclude-name: %w", err)
		}
		opts.ExcludeName = re
	}
	result, err := download.DownloadRepo(ctx, pool, cache, dl, c, opts)
	if err != nil {
		return err
	}
	fmt.Printf("downloaded %d packages, %d failed\n", result.Downloaded, len(result.Failed))
	return nil
}

// conflictReport accumulates closure.Conflicts callbacks for display,
// backing `show-soname-conflicts`.
type conflictReport struct {
	missing   []missingDep
	conflicts []conflictDep
}

type missingDep struct {
	file ids.FileID
	name string
}

type conflictDep struct {
	file       ids.FileID
	name       string
	candidates []ids.FileID
}

func (r *conflictReport) Missing(file ids.FileID, name string) {
	r.missing = append(r.missing, missingDep{file: file, name: name})
}

func (r *conflictReport) Conflict(file ids.FileID, name string, candidates []ids.FileID) {
	r.conflicts = append(r.conflicts, conflictDep{file: file, name: name, candidates: candidates})
}

// fileLabel renders "<package>: <path>" for a file id, used to make the
// conflict report human-readable (spec §6's `show-soname-conflicts`).
func fileLabel(ctx context.Context, q db.Queryer, id ids.FileID) string {
	const query = `SELECT p.name, f.name FROM file f JOIN package p ON p.id = f.package_id WHERE f.id = $1`
	var pkg, name string
	if err := q.QueryRow(ctx, query, int64(id)).Scan(&pkg, &name); err != nil {
		return id.String()
	}
	return pkg + ": " + name
}

// cmdShowSonameConflicts recomputes the named set's closure while
// collecting conflict reports, then prints a human-readable summary,
// highlighted when stdout is a terminal (spec §6's
// `show-soname-conflicts <set>`).
func cmdShowSonameConflicts(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show-soname-conflicts <set>")
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	setID, err := schema.InternPackageSet(ctx, pool, args[0])
	if err != nil {
		return err
	}
	report := &conflictReport{}
	if err := closure.RecomputeWithConflicts(ctx, pool, setID, report); err != nil {
		return err
	}

	sort.Slice(report.missing, func(i, j int) bool { return report.missing[i].name < report.missing[j].name })
	sort.Slice(report.conflicts, func(i, j int) bool { return report.conflicts[i].name < report.conflicts[j].name })

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	for _, m := range report.missing {
		red.Printf("missing: ")
		fmt.Printf("%s needs %s, no provider found\n", fileLabel(ctx, pool, m.file), m.name)
	}
	for _, c := range report.conflicts {
		yellow.Printf("conflict: ")
		bold.Printf("%s", c.name)
		fmt.Printf(" (needed by %s)\n", fileLabel(ctx, pool, c.file))
		for i, cand := range c.candidates {
			marker := "  "
			if i == 0 {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, fileLabel(ctx, pool, cand))
		}
	}
	fmt.Printf("%d missing, %d conflicts\n", len(report.missing), len(report.conflicts))
	return nil
}

// cmdExpire runs the operator-invoked expiration cascade, spec §3.4:
// the URL cache first, then orphan packages, then orphan contents, then
// orphan Java classes — always in that order.
func cmdExpire(ctx context.Context, cfg config.Config, _ []string) error {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := &urlcache.Store{DB: pool}
	expiredURLs, err := store.Expire(ctx)
	if err != nil {
		return fmt.Errorf("expiring url cache: %w", err)
	}
	expiredPackages, err := schema.ExpireOrphanPackages(ctx, pool)
	if err != nil {
		return fmt.Errorf("expiring orphan packages: %w", err)
	}
	expiredContents, err := schema.ExpireOrphanContents(ctx, pool)
	if err != nil {
		return fmt.Errorf("expiring orphan file contents: %w", err)
	}
	expiredClasses, err := schema.ExpireOrphanJavaClasses(ctx, pool)
	if err != nil {
		return fmt.Errorf("expiring orphan java classes: %w", err)
	}
	zlog.Info(ctx).
		Int64("urls", expiredURLs).
		Int64("packages", expiredPackages).
		Int64("contents", expiredContents).
		Int64("classes", expiredClasses).
		Msg("expire: done")
	return nil
}
