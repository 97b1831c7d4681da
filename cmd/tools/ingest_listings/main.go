package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/david/bidsense/internal/app"
)

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml")
	feed := flag.String("feed", "", "JSON array of listings (local path or URL)")
	flag.Parse()

	if *feed == "" {
		log.Fatal("Please provide a listings file using -feed flag")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configFile, *feed); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile, feed string) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()

	listings, err := app.NewFiles().Listings(ctx, feed)
	if err != nil {
		return err
	}

	pipeline := env.Pipeline()
	created, updated, failed := 0, 0, 0
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := pipeline.IngestListing(ctx, l)
		if err != nil {
			env.Log.Error("listing failed", zap.String("external_id", l.ExternalID), zap.Error(err))
			failed++
			continue
		}
		if res.Created {
			created++
		} else {
			updated++
		}
	}

	env.Log.Info("listings ingested",
		zap.String("feed", feed),
		zap.Int("found", len(listings)),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("errors", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d listings failed", failed, len(listings))
	}
	return nil
}
