package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/config"
	"github.com/OussamaRhimi/tender-mvp/internal/db"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
)

// migrate applies the embedded schema migrations, e.g. `migrate up` or `migrate status`.
func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|version|reset]")
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, cancel := config.WithTimeout(2 * time.Minute)
	defer cancel()

	if err := db.RunMigrations(ctx, cfg.DBURL, command); err != nil {
		log.Error("migration failed", "command", command, "err", err)
		os.Exit(1)
	}

	log.Info("migration finished", "command", command)
}
