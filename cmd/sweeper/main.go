// Command sweeper runs one pass of the exam window sweep and exits. Useful
// under cron or as a manual kick when the gateway is not running.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/examhall/examhall/internal/config"
	"github.com/examhall/examhall/internal/db"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/schedule"
)

func main() {
	loop := flag.Bool("loop", false, "keep sweeping on SWEEP_INTERVAL instead of exiting")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh)
	sw := schedule.NewSweeper(store)

	if *loop {
		sw.Run(context.Background(), cfg.SweepInterval)
		return
	}
	opened, closed, err := sw.Sweep(context.Background())
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
	log.Printf("sweep done: opened %d, closed %d", opened, closed)
}
