package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/zapbox/internal/config"
	"github.com/matheus3301/zapbox/internal/lock"
	"github.com/matheus3301/zapbox/internal/profile"
	"github.com/matheus3301/zapbox/internal/store"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	db, release := openStore(name)
	defer release()

	switch args[0] {
	case "stats":
		cmdStats(db, *jsonFlag)
	case "queue":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: zapboxctl queue <list|cleanup>")
			os.Exit(1)
		}
		cmdQueue(db, args[1], *jsonFlag)
	case "clear-tenant":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: zapboxctl clear-tenant <id>")
			os.Exit(1)
		}
		cmdClearTenant(db, args[1])
	case "verify":
		cmdVerify(name, db, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: zapboxctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  stats              Show per-table row counts")
	fmt.Fprintln(os.Stderr, "  queue list         Show pending and failed sync-queue entries")
	fmt.Fprintln(os.Stderr, "  queue cleanup      Remove completed and old failed entries")
	fmt.Fprintln(os.Stderr, "  clear-tenant <id>  Wipe one tenant's cached data")
	fmt.Fprintln(os.Stderr, "  verify             Run the schema consistency check")
}

// openStore acquires the profile lock and opens the cache database. The lock
// guards against racing a running daemon on the single connection.
func openStore(name string) (*store.DB, func()) {
	if err := profile.EnsureDir(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	lk, err := lock.Acquire(profile.Dir(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	db, err := store.Open(profile.CacheDBPath(name))
	if err != nil {
		_ = lk.Release()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.Init(zap.NewNop()); err != nil {
		_ = db.Close()
		_ = lk.Release()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return db, func() {
		_ = db.Close()
		_ = lk.Release()
	}
}

func cmdStats(db *store.DB, jsonOut bool) {
	counts, err := db.TableCounts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(counts)
		return
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Printf("%-16s %d\n", t, counts[t])
	}
}

func cmdQueue(db *store.DB, subcmd string, jsonOut bool) {
	switch subcmd {
	case "list":
		pending, err := db.PendingOps(100)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			outputJSON(pending)
			return
		}
		if len(pending) == 0 {
			fmt.Println("No pending operations.")
			return
		}
		for _, op := range pending {
			fmt.Printf("%-38s %-10s %-8s retries %d/%d\n",
				op.OpID, op.Entity, op.Operation, op.RetryCount, op.MaxRetries)
		}
	case "cleanup":
		cfg, err := config.Load(profile.ConfigPath())
		if err != nil {
			cfg = config.Default()
		}
		removed, err := db.CleanupQueue(cfg.Queue.FailedRetention())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d entries.\n", removed)
	default:
		fmt.Fprintf(os.Stderr, "unknown queue subcommand: %s\n", subcmd)
		os.Exit(1)
	}
}

func cmdClearTenant(db *store.DB, tenant string) {
	if err := db.ClearTenant(tenant); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cleared cached data for tenant %s.\n", tenant)
}

func cmdVerify(name string, db *store.DB, jsonOut bool) {
	// Re-open so the consistency check runs against the file fresh; the
	// handle used for the other commands already latched its Init pass.
	_ = db.Close()

	fresh, err := store.Open(profile.CacheDBPath(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = fresh.Close() }()

	start := time.Now()
	report, err := fresh.Init(zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		outputJSON(map[string]any{
			"schema_version": report.MigrationVersion,
			"dirty":          report.Dirty,
			"degraded":       report.Degraded,
			"search":         report.SearchAvailable,
			"healed":         report.Healed,
			"failed_steps":   len(report.Failed()),
		})
		return
	}
	fmt.Printf("Schema version: %d\n", report.MigrationVersion)
	fmt.Printf("Degraded:       %v\n", report.Degraded)
	fmt.Printf("Full-text:      %v\n", report.SearchAvailable)
	if len(report.Healed) > 0 {
		fmt.Printf("Healed tables:  %v\n", report.Healed)
	}
	for _, step := range report.Failed() {
		fmt.Printf("Failed step:    %s: %v\n", step.Name, step.Err)
	}
	fmt.Printf("Verified in %s.\n", time.Since(start).Round(time.Millisecond))
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
