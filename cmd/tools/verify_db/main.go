package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/bidsense/internal/app"
	"github.com/david/bidsense/internal/db"
	"github.com/david/bidsense/internal/models"
)

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml")
	flag.Parse()

	if err := run(context.Background(), *configFile); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile string) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return fmt.Errorf("unable to open store: %w", err)
	}
	defer env.Close()

	var total, scored, decided, human, withDue, withBudget, stale int
	byStatus := map[string]int{}
	byTier := map[string]int{}
	digest := env.Policy.Digest()

	after := uuid.Nil
	for {
		page, err := env.Store.ListOpportunities(ctx, db.ListParams{AfterID: after, Limit: env.Settings.Batch.Size})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, o := range page {
			total++
			byStatus[o.Status]++
			if o.Record.DueDate != nil {
				withDue++
			}
			if o.Record.Budget != nil {
				withBudget++
			}
			if o.Score != nil {
				scored++
				if o.Score.PolicyDigest != digest {
					stale++
				}
			}
			if o.Decision != nil {
				decided++
				byTier[string(o.Decision.Tier)]++
				if o.Decision.Actor == models.ActorHuman {
					human++
				}
			}
		}
		after = page[len(page)-1].ID
	}

	fmt.Printf("Driver: %s\n", env.Settings.Store.Driver)
	fmt.Printf("Total opportunities: %d\n", total)
	fmt.Printf("With due date: %d\n", withDue)
	fmt.Printf("With budget: %d\n", withBudget)
	fmt.Printf("Scored: %d (%d under a different policy)\n", scored, stale)
	fmt.Printf("Decided: %d (%d by a reviewer)\n\n", decided, human)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Group", "Value", "Count"})
	for status, n := range byStatus {
		t.AppendRow(table.Row{"status", status, n})
	}
	for tier, n := range byTier {
		t.AppendRow(table.Row{"decision", tier, n})
	}
	t.SortBy([]table.SortBy{{Number: 1}, {Number: 2}})
	t.Render()
	return nil
}
