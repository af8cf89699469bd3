package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/gigconnect/internal/adapters/postgres"
	"github.com/robertarktes/gigconnect/internal/config"
)

const usage = `usage: migrate [command] [args]

commands:
  up            apply all pending migrations (default)
  up-to V       apply migrations up to version V
  down          roll back the latest migration
  down-to V     roll back to version V
  redo          roll back and reapply the latest migration
  reset         roll back all migrations
  status        print the state of every migration
  version       print the current schema version
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command, args := "up", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, command, args...); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
}
