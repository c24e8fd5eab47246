// Command oncotarget is the entry point for the literature-mining and
// target-prioritization engine: it applies migrations and serves the
// discovery/query/scoring/feedback/approval HTTP API (§6).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/oncotarget/engine/internal/infra/sqlite"
	"github.com/oncotarget/engine/internal/server"
	"github.com/oncotarget/engine/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return runServe(args[1:], out)
		case "migrate":
			return runMigrate(args[1:], out)
		}
	}

	fs := flag.NewFlagSet("oncotarget", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	// Default: print version.
	fmt.Fprintln(out, version.String()) //nolint:errcheck
	return 0
}

func runServe(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	defaultPort := 8080
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			defaultPort = p
		}
	}
	port := fs.Int("port", defaultPort, "HTTP port")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbPath := os.Getenv("DATABASE_URL")
	if dbPath == "" {
		dbPath = "./data/oncotarget.db"
	}

	db, err := sqlite.NewDB(dbPath)
	if err != nil {
		fmt.Fprintf(out, "db init failed: %v\n", err) //nolint:errcheck
		return 1
	}
	if err := sqlite.MigrateUp(db); err != nil {
		fmt.Fprintf(out, "migrations failed: %v\n", err) //nolint:errcheck
		_ = db.Close()
		return 1
	}

	cfg := server.DefaultConfig()
	cfg.Port = *port
	srv := server.NewServer(db, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(out, "server failed: %v\n", err) //nolint:errcheck
			_ = srv.Shutdown(context.Background())
			return 1
		}
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(out, "shutdown failed: %v\n", err) //nolint:errcheck
			return 1
		}
	}

	return 0
}

func runMigrate(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbPath := os.Getenv("DATABASE_URL")
	if dbPath == "" {
		dbPath = "./data/oncotarget.db"
	}

	db, err := sqlite.NewDB(dbPath)
	if err != nil {
		fmt.Fprintf(out, "db init failed: %v\n", err) //nolint:errcheck
		return 1
	}
	defer db.Close()

	if err := sqlite.MigrateUp(db); err != nil {
		fmt.Fprintf(out, "migrations failed: %v\n", err) //nolint:errcheck
		return 1
	}

	fmt.Fprintln(out, "migrations applied") //nolint:errcheck
	return 0
}

func printHelp(out io.Writer) {
	helpText := `oncotarget - literature-mining and target-prioritization engine

Usage:
  oncotarget [options]

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  serve        Start the HTTP API (discovery/query/scoring/feedback/approval)
  migrate      Run database migrations

Examples:
  oncotarget --version
  oncotarget serve --port 8080
  oncotarget migrate`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
