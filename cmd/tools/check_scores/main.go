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
	status := flag.String("status", "", "Filter by status (open, closed, needs_review)")
	tier := flag.String("tier", "", `Filter by decision ("Select to Bid", Hold, Ignore)`)
	category := flag.String("category", "", "Filter by category")
	minScore := flag.Float64("min-score", 0, "Only show scores at or above this value")
	limit := flag.Int("limit", 50, "Maximum rows")
	show := flag.String("id", "", "Show the full breakdown of one opportunity")
	flag.Parse()

	var id uuid.UUID
	if *show != "" {
		parsed, err := uuid.Parse(*show)
		if err != nil {
			log.Fatalf("invalid -id: %v", err)
		}
		id = parsed
	}
	params := db.ListParams{Limit: *limit, Status: *status, Tier: *tier, Category: *category}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-score" {
			params.MinScore = minScore
		}
	})

	if err := run(context.Background(), *configFile, id, params); err != nil {
		log.Fatal(err)
	}
}

// run renders the breakdown of id when set, otherwise the filtered list.
func run(ctx context.Context, configFile string, id uuid.UUID, params db.ListParams) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()

	if id != uuid.Nil {
		opp, err := env.Store.GetOpportunity(ctx, id)
		if err != nil {
			return err
		}
		renderBreakdown(opp)
		return nil
	}

	opps, err := env.Store.ListOpportunities(ctx, params)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Agency", "Category", "Score", "Decision", "By", "Status"})
	for _, o := range opps {
		score, decision, actor := "-", "-", "-"
		if o.Score != nil {
			score = fmt.Sprintf("%.2f", o.Score.FinalScore)
		}
		if o.Decision != nil {
			decision, actor = string(o.Decision.Tier), o.Decision.Actor
		}
		t.AppendRow(table.Row{o.ID.String(), truncate(o.Record.Title, 48), truncate(o.Record.Agency, 32), o.Record.Category, score, decision, actor, o.Status})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Rows", len(opps)})
	t.Render()
	return nil
}

func renderBreakdown(o *models.Opportunity) {
	fmt.Printf("%s\n%s | %s | %s\n\n", o.Record.Title, o.Record.Agency, o.Record.Category, o.Status)
	if o.Score == nil {
		fmt.Println("Not scored.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Component", "Weight"})
	t.AppendRow(table.Row{"base", o.Score.Base})
	for _, c := range o.Score.Components {
		t.AppendRow(table.Row{c.Name, c.Weight})
	}
	t.AppendFooter(table.Row{"Final", o.Score.FinalScore})
	t.Render()

	if p := o.Score.Profit; p != nil {
		if p.MarginRatio != nil {
			fmt.Printf("Profit: margin %.1f%% (%s)\n", *p.MarginRatio*100, p.Baseline)
		} else {
			fmt.Printf("Profit: %s\n", p.Note)
		}
	}
	if d := o.Decision; d != nil {
		fmt.Printf("Decision: %s by %s at %s\nReason: %s\n", d.Tier, d.Actor, d.DecidedAt.Format("2006-01-02 15:04"), d.Reason)
	}
	fmt.Printf("Policy: %s\n", o.Score.PolicyDigest)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
