package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/bidsense/internal/app"
)

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml")
	limit := flag.Int("limit", 10, "Number of recent runs to show")
	flag.Parse()

	if err := run(context.Background(), *configFile, *limit); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile string, limit int) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()

	runs, err := env.Store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Status", "Scanned", "Updated", "Errors", "Duration", "Started At", "Policy"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		digest := r.PolicyDigest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		t.AppendRow(table.Row{r.ID.String()[:8], r.Status, r.ItemsScanned, r.ItemsUpdated, r.Errors, duration, r.StartedAt.Format("2006-01-02 15:04:05"), digest})
	}
	t.Render()
	return nil
}
