package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"

	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/db"
)

const usage = `usage: migrate [flags] up|down|version|force
  up       apply all pending migrations
  down     roll back -steps migrations (default 1)
  version  print the current schema version
  force    set the version to -version without running migrations`

func main() {
	var (
		steps   = flag.Int("steps", 1, "number of migrations to roll back with down")
		version = flag.Int("version", -1, "schema version to record with force")
	)
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	m, err := db.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("init migrator: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("close migrator: source=%v db=%v", srcErr, dbErr)
		}
	}()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := db.Up(m); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Println("schema is up to date")
	case "down":
		if *steps <= 0 {
			log.Fatal("-steps must be positive")
		}
		if err := m.Steps(-*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate down: %v", err)
		}
		log.Printf("rolled back %d migration(s)", *steps)
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		fmt.Printf("version %d (dirty=%v)\n", v, dirty)
	case "force":
		if *version < 0 {
			log.Fatal("force requires -version")
		}
		if err := m.Force(*version); err != nil {
			log.Fatalf("force version: %v", err)
		}
		log.Printf("forced version %d", *version)
	default:
		log.Printf("unknown command %q", cmd)
		flag.Usage()
		os.Exit(2)
	}
}
