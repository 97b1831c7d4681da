package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/david/bidsense/internal/app"
	"github.com/david/bidsense/internal/models"
)

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml")
	idFlag := flag.String("id", "", "Only export corrections for this opportunity")
	out := flag.String("out", "", "Destination path or URL (default: stdout)")
	flag.Parse()

	opportunityID := uuid.Nil
	if *idFlag != "" {
		id, err := uuid.Parse(*idFlag)
		if err != nil {
			log.Fatalf("invalid -id: %v", err)
		}
		opportunityID = id
	}

	if err := run(context.Background(), *configFile, opportunityID, *out); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile string, opportunityID uuid.UUID, out string) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()

	corrections, err := env.Store.ListCorrections(ctx, opportunityID)
	if err != nil {
		return err
	}
	if corrections == nil {
		corrections = []models.Correction{}
	}
	data, err := json.MarshalIndent(corrections, "", "  ")
	if err != nil {
		return err
	}

	if out == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := app.NewFiles().Write(ctx, out, data); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d correction(s) to %s\n", len(corrections), out)
	return nil
}
