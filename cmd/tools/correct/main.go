package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/david/bidsense/internal/app"
	"github.com/david/bidsense/internal/models"
)

// fieldValues collects repeated -set field=value flags.
type fieldValues map[string]string

func (f fieldValues) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f fieldValues) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected field=value, got %q", s)
	}
	f[strings.TrimSpace(name)] = value
	return nil
}

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml")
	idFlag := flag.String("id", "", "Opportunity ID")
	actor := flag.String("actor", "", "Who is making the change (default: human)")
	decision := flag.String("decision", "", `Override the decision ("Select to Bid", Hold, Ignore)`)
	reason := flag.String("reason", "", "Reason recorded with -decision")
	corrections := fieldValues{}
	flag.Var(corrections, "set", "Corrected field value as field=value (repeatable)")
	flag.Parse()

	id, err := uuid.Parse(*idFlag)
	if err != nil {
		log.Fatalf("Please provide a valid opportunity ID using -id flag: %v", err)
	}
	if *decision == "" && len(corrections) == 0 {
		log.Fatal("nothing to do: pass -set field=value and/or -decision")
	}

	if err := run(context.Background(), *configFile, id, corrections, *actor, *decision, *reason); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile string, id uuid.UUID, corrections fieldValues, actor, decision, reason string) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()
	pipeline := env.Pipeline()

	if len(corrections) > 0 {
		recorded, err := pipeline.RecordCorrections(ctx, id, corrections, actor)
		if err != nil {
			return err
		}
		for _, c := range recorded {
			fmt.Printf("%s: %q -> %q\n", c.Field, c.ExtractedValue, c.CorrectedValue)
		}
		fmt.Printf("%d correction(s) recorded\n", len(recorded))
	}

	if decision != "" {
		d, err := pipeline.SetDecision(ctx, id, models.Tier(decision), reason)
		if err != nil {
			return err
		}
		fmt.Printf("Decision set to %s (%s)\n", d.Tier, d.Reason)
	}
	return nil
}
