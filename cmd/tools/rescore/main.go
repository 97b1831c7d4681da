package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"github.com/david/bidsense/internal/app"
)

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml")
	batch := flag.Int("batch", 0, "Opportunities per batch (default: batch.size setting)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configFile, *batch); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile string, batch int) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()

	if batch <= 0 {
		batch = env.Settings.Batch.Size
	}

	sr, err := env.Pipeline().Rescore(ctx, batch)
	if sr.ID != uuid.Nil {
		fmt.Printf("Run %s: %s (scanned %d, updated %d, errors %d)\n",
			sr.ID, sr.Status, sr.ItemsScanned, sr.ItemsUpdated, sr.Errors)
	}
	return err
}
